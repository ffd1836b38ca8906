//go:build unit

package data

import (
	"encoding/json"
	"testing"
)

func TestParsePageType(t *testing.T) {
	testCases := []struct {
		input   string
		want    PageType
		wantErr bool
	}{
		{"blog.blogpage", TypeBlogPage, false},
		{"blog.BlogPage", TypeBlogPage, false},
		{"home.homepage", TypeHomePage, false},
		{"blog", "", true},
		{"blog.", "", true},
		{".blogpage", "", true},
		{"blog.blogpage.extra", "", true},
		{"shop.product", "", true},
	}
	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParsePageType(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParsePageType(%q) err = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("ParsePageType(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}

	if TypeBlogPage.ContentType() != "blog.blogpage" {
		t.Errorf("unexpected content type %q", TypeBlogPage.ContentType())
	}
}

func TestStreamBody_ScanPreservesOrder(t *testing.T) {
	raw := `[{"type":"heading","value":"A","id":"1"},{"type":"embed","value":"https://example.com/v"},{"type":"image","value":null}]`
	var body StreamBody
	if err := body.Scan([]byte(raw)); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(body) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(body))
	}
	wantTypes := []BlockType{BlockHeading, BlockEmbed, BlockImage}
	for i, want := range wantTypes {
		if body[i].Type != want {
			t.Errorf("block %d: expected type %s, got %s", i, want, body[i].Type)
		}
	}

	var empty StreamBody
	if err := empty.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected an empty non-nil body, got %#v", empty)
	}
}

func TestDate(t *testing.T) {
	d := NewDate(2024, 1, 1)
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `"2024-01-01"` {
		t.Errorf("expected \"2024-01-01\", got %s", raw)
	}

	var scanned Date
	if err := scanned.Scan([]byte("2024-03-05")); err != nil {
		t.Fatal(err)
	}
	if scanned.String() != "2024-03-05" {
		t.Errorf("expected 2024-03-05, got %s", scanned)
	}
	if err := scanned.Scan("2024-03-06T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if scanned.String() != "2024-03-06" {
		t.Errorf("expected 2024-03-06, got %s", scanned)
	}

	var zero Date
	raw, _ = json.Marshal(zero)
	if string(raw) != "null" {
		t.Errorf("expected null for a zero date, got %s", raw)
	}
}

func TestBlogPage_ApplySnapshot(t *testing.T) {
	p, err := NewPreviewable(TypeBlogPage)
	if err != nil {
		t.Fatal(err)
	}
	snapshot := &PageSnapshot{Title: "Draft", Slug: "draft", Date: NewDate(2024, 5, 1),
		Body: StreamBody{HeadingBlock("Heading")}}
	if err := p.ApplySnapshot(snapshot); err != nil {
		t.Fatalf("ApplySnapshot failed: %v", err)
	}
	bp := p.(*BlogPage)
	if bp.ID != 0 {
		t.Errorf("expected id 0 for an unsaved snapshot, got %d", bp.ID)
	}
	if bp.Title != "Draft" || len(bp.Body) != 1 {
		t.Errorf("unexpected page: %+v", bp)
	}

	if err := p.ApplySnapshot(&PageSnapshot{Title: "No date"}); err == nil {
		t.Error("expected an error for a snapshot without a date")
	}
}

func TestNextPathStep(t *testing.T) {
	testCases := map[string]string{
		"":             "0001",
		"0001":         "0002",
		"00010009":     "0001000A",
		"0001000Z":     "00010010",
	}
	for last, want := range testCases {
		got, err := nextPathStep(last)
		if err != nil {
			t.Fatalf("nextPathStep(%q) failed: %v", last, err)
		}
		if got != want[len(want)-pathStepLen:] {
			t.Errorf("nextPathStep(%q) = %q, want %q", last, got, want[len(want)-pathStepLen:])
		}
	}
}
