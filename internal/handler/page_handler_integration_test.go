//go:build integration

package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"headless-cms/internal/api"
	"headless-cms/internal/assets"
	"headless-cms/internal/blocks"
	"headless-cms/internal/config"
	"headless-cms/internal/data"
	"headless-cms/internal/embed"
	"headless-cms/internal/logger"
	"headless-cms/internal/middleware"
	"headless-cms/internal/richtext"
	"headless-cms/internal/service"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

type testApp struct {
	Router   *chi.Mux
	Pages    *data.SQLPageRepository
	Images   *data.ImageRepository
	Previews *data.PreviewRepository
}

// setupIntegrationTest initializes a full application stack for testing.
func setupIntegrationTest(t *testing.T) *testApp {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := data.Schema("sqlite")
	if err != nil {
		t.Fatal(err)
	}
	db.MustExec(schema)

	oembed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("url"), "broken") {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintf(w, `{"type":"video","html":"<iframe src=\"%s\"></iframe>"}`, r.URL.Query().Get("url"))
	}))
	t.Cleanup(oembed.Close)

	log := logger.New(config.LogConfig{Level: "debug", Format: "console"}, &strings.Builder{})
	pageRepository := data.NewSQLPageRepository(db)
	imageRepository := data.NewImageRepository(db)
	previewRepository := data.NewPreviewRepository(db)
	pageService := service.NewPageService(pageRepository, previewRepository, log)

	resolver, err := embed.NewResolver(config.EmbedConfig{
		Timeout: time.Second,
		Providers: []config.ProviderConfig{
			{Name: "Test", Endpoint: oembed.URL, URLs: []string{"https://video.test/*"}},
		},
	}, nil, log, embed.WithHTTPClient(oembed.Client()))
	if err != nil {
		t.Fatal(err)
	}
	serializer := blocks.NewSerializer(imageRepository, assets.NewPipeline("/media/"), resolver,
		richtext.NewRenderer(pageService), log, blocks.Config{EmbedMaxWidth: 612})
	pages := api.NewSerializer(serializer, pageService, "http://api.test/api/v2/pages", "https://site.test")

	apiRouter := NewAPIRouter("/api/v2", middleware.Error(log))
	apiRouter.Register(PagesEndpoint, NewPageHandler(pageService, pages, 20, log))
	apiRouter.Register(PreviewEndpoint, NewPreviewHandler(pageService, pages))
	router := NewRouter(apiRouter, NewSeoHandler(pageService, pages, "http://api.test"))

	return &testApp{Router: router, Pages: pageRepository, Images: imageRepository, Previews: previewRepository}
}

// seed builds a home page with a live post, a hidden live post and a draft.
func seed(t *testing.T, app *testApp) (home *data.Page, live, draft *data.BlogPage) {
	t.Helper()
	ctx := context.Background()

	home = &data.Page{Type: data.TypeHomePage, Title: "Home", Slug: "home"}
	if err := app.Pages.CreatePage(ctx, home, nil); err != nil {
		t.Fatal(err)
	}
	img := &data.Image{Title: "Sea", File: "original_images/sea.jpg", Width: 2000, Height: 1000}
	if err := app.Images.CreateImage(ctx, img); err != nil {
		t.Fatal(err)
	}

	live = &data.BlogPage{
		Page: data.Page{Title: "First Post", Slug: "first-post", ShowInMenus: true},
		Date: data.NewDate(2024, 1, 1),
		Body: data.StreamBody{
			data.HeadingBlock("Test Heading"),
			data.ParagraphBlock("<p>Test paragraph with <b>bold</b> text</p>"),
			data.ImageBlock(img.ID),
			data.EmbedBlock("https://video.test/v/1"),
			data.EmbedBlock("https://video.test/broken"),
		},
	}
	hidden := &data.BlogPage{
		Page: data.Page{Title: "Hidden Post", Slug: "hidden-post"},
		Date: data.NewDate(2024, 1, 5),
		Body: data.StreamBody{},
	}
	draft = &data.BlogPage{
		Page: data.Page{Title: "Draft Post", Slug: "draft-post", ShowInMenus: true},
		Date: data.NewDate(2024, 1, 3),
		Body: data.StreamBody{data.ParagraphBlock(`This is a "test" with 'quotes'`)},
	}
	for _, p := range []*data.BlogPage{live, hidden, draft} {
		if err := app.Pages.CreateBlogPage(ctx, p, &home.ID); err != nil {
			t.Fatal(err)
		}
	}
	for _, id := range []int64{home.ID, live.ID, hidden.ID} {
		if err := app.Pages.Publish(ctx, id, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)); err != nil {
			t.Fatal(err)
		}
	}
	return home, live, draft
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	return rr
}

func TestHandlers_Integration_Detail(t *testing.T) {
	app := setupIntegrationTest(t)
	_, live, draft := seed(t, app)

	byID := get(t, app.Router, fmt.Sprintf("/api/v2/pages/%d/", live.ID))
	bySlug := get(t, app.Router, "/api/v2/pages/first-post/")
	if byID.Code != http.StatusOK || bySlug.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d and %d", byID.Code, bySlug.Code)
	}
	if byID.Body.String() != bySlug.Body.String() {
		t.Errorf("expected identical content by id and slug")
	}

	var detail struct {
		ID   int64  `json:"id"`
		Date string `json:"date"`
		Body []struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"body"`
	}
	if err := json.Unmarshal(byID.Body.Bytes(), &detail); err != nil {
		t.Fatalf("invalid detail json: %v", err)
	}
	if detail.Date != "2024-01-01" {
		t.Errorf("expected date 2024-01-01, got %s", detail.Date)
	}
	if len(detail.Body) != len(live.Body) {
		t.Fatalf("expected %d blocks, got %d", len(live.Body), len(detail.Body))
	}
	for i, b := range detail.Body {
		if b.Type != string(live.Body[i].Type) {
			t.Errorf("block %d: expected type %s, got %s", i, live.Body[i].Type, b.Type)
		}
	}
	if string(detail.Body[0].Value) != `"Test Heading"` {
		t.Errorf("unexpected heading %s", detail.Body[0].Value)
	}
	if string(detail.Body[1].Value) != `"<p>Test paragraph with <b>bold</b> text</p>"` {
		t.Errorf("unexpected paragraph %s", detail.Body[1].Value)
	}

	var img blocks.ImageValue
	if err := json.Unmarshal(detail.Body[2].Value, &img); err != nil {
		t.Fatalf("invalid image value: %v", err)
	}
	if img.Medium == nil || img.Medium.Width != 1600 || img.Medium.URL != "/media/images/sea.width-1600.jpg" {
		t.Errorf("unexpected medium rendition %+v", img.Medium)
	}
	if !strings.Contains(string(detail.Body[3].Value), `<iframe src=\"https://video.test/v/1\">`) {
		t.Errorf("unexpected embed %s", detail.Body[3].Value)
	}
	if string(detail.Body[4].Value) != "null" {
		t.Errorf("expected the failed embed to be null, got %s", detail.Body[4].Value)
	}

	if rr := get(t, app.Router, fmt.Sprintf("/api/v2/pages/%d/", draft.ID)); rr.Code != http.StatusNotFound {
		t.Errorf("expected draft by id to be 404, got %d", rr.Code)
	}
	if rr := get(t, app.Router, "/api/v2/pages/draft-post/"); rr.Code != http.StatusNotFound {
		t.Errorf("expected draft by slug to be 404, got %d", rr.Code)
	}
}

func TestHandlers_Integration_Listing(t *testing.T) {
	app := setupIntegrationTest(t)
	home, _, _ := seed(t, app)

	var listing api.Listing
	rr := get(t, app.Router, "/api/v2/pages/?type=blog.BlogPage")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
		t.Fatal(err)
	}
	if listing.Meta.TotalCount != 2 {
		t.Errorf("expected 2 live blog pages, got %d", listing.Meta.TotalCount)
	}
	for _, item := range listing.Items {
		if item.Meta.Type != "blog.BlogPage" {
			t.Errorf("expected only blog pages, got %s", item.Meta.Type)
		}
	}

	if rr := get(t, app.Router, "/api/v2/pages/?type=news.NewsPage"); rr.Code != http.StatusBadRequest {
		t.Errorf("expected unknown type to be 400, got %d", rr.Code)
	}

	var homeDetail struct {
		Posts []api.Item `json:"posts"`
	}
	rr = get(t, app.Router, fmt.Sprintf("/api/v2/pages/%d/", home.ID))
	if err := json.Unmarshal(rr.Body.Bytes(), &homeDetail); err != nil {
		t.Fatal(err)
	}
	if len(homeDetail.Posts) != 1 || homeDetail.Posts[0].Meta.Slug != "first-post" {
		t.Errorf("expected only the live post shown in menus, got %+v", homeDetail.Posts)
	}

	rr = get(t, app.Router, "/api/v2/pages/find/?html_path=/first-post/")
	if rr.Code != http.StatusFound {
		t.Errorf("expected find to redirect, got %d", rr.Code)
	}
}

func TestHandlers_Integration_ListingWindow(t *testing.T) {
	app := setupIntegrationTest(t)
	home, _, _ := seed(t, app)
	ctx := context.Background()

	// 25 more live posts on top of the 3 live seeded pages.
	for i := 0; i < 25; i++ {
		p := &data.BlogPage{
			Page: data.Page{Title: fmt.Sprintf("Post %d", i), Slug: fmt.Sprintf("post-%d", i)},
			Date: data.NewDate(2024, 2, 1),
			Body: data.StreamBody{},
		}
		if err := app.Pages.CreateBlogPage(ctx, p, &home.ID); err != nil {
			t.Fatal(err)
		}
		if err := app.Pages.Publish(ctx, p.ID, time.Now()); err != nil {
			t.Fatal(err)
		}
	}

	for path, wantItems := range map[string]int{
		"/api/v2/pages/":                   20,
		"/api/v2/pages/?limit=20":          20,
		"/api/v2/pages/?limit=5&offset=25": 3,
		"/api/v2/pages/?offset=40":         0,
	} {
		rr := get(t, app.Router, path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d: %s", path, rr.Code, rr.Body.String())
		}
		var listing api.Listing
		if err := json.Unmarshal(rr.Body.Bytes(), &listing); err != nil {
			t.Fatal(err)
		}
		if len(listing.Items) != wantItems || listing.Meta.TotalCount != 28 {
			t.Errorf("%s: expected %d items of 28, got %d of %d", path, wantItems, len(listing.Items), listing.Meta.TotalCount)
		}
	}

	for _, path := range []string{"/api/v2/pages/?limit=0", "/api/v2/pages/?limit=21"} {
		if rr := get(t, app.Router, path); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, rr.Code)
		}
	}

	rr := get(t, app.Router, "/sitemap.xml")
	if n := strings.Count(rr.Body.String(), "<loc>"); n != 28 {
		t.Errorf("expected every live page in the sitemap, got %d", n)
	}
}

func TestHandlers_Integration_Preview(t *testing.T) {
	app := setupIntegrationTest(t)
	_, _, draft := seed(t, app)
	ctx := context.Background()

	rr := get(t, app.Router, "/api/v2/page_preview/?content_type=blog.blogpage&token=abc123")
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected missing preview to be 404, got %d", rr.Code)
	}

	snapshot := &data.PageSnapshot{
		Title: "Unsaved",
		Slug:  "unsaved",
		Date:  data.NewDate(2024, 3, 1),
		Body:  data.StreamBody{data.ParagraphBlock(`This is a "test" with 'quotes'`)},
	}
	if err := app.Previews.CreateSnapshot(ctx, "blog.blogpage", "abc123", snapshot); err != nil {
		t.Fatal(err)
	}
	rr = get(t, app.Router, "/api/v2/page_preview/?content_type=blog.blogpage&token=abc123")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var detail struct {
		ID   int64 `json:"id"`
		Body []struct {
			Value string `json:"value"`
		} `json:"body"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatal(err)
	}
	if detail.ID != 0 {
		t.Errorf("expected sentinel id 0, got %d", detail.ID)
	}
	if len(detail.Body) != 1 || !strings.Contains(detail.Body[0].Value, "“test”") || !strings.Contains(detail.Body[0].Value, "‘quotes’") {
		t.Errorf("expected typographic quotes, got %+v", detail.Body)
	}

	undated := &data.PageSnapshot{Title: "Undated", Slug: "undated"}
	if err := app.Previews.CreateSnapshot(ctx, "blog.blogpage", "undated", undated); err != nil {
		t.Fatal(err)
	}
	rr = get(t, app.Router, "/api/v2/page_preview/?content_type=blog.blogpage&token=undated")
	if rr.Code != http.StatusBadRequest || !strings.Contains(rr.Body.String(), "blog page snapshot has no date") {
		t.Errorf("expected an undated snapshot to be 400, got %d: %s", rr.Code, rr.Body.String())
	}

	id := draft.ID
	edited := &data.PageSnapshot{ID: &id, Title: "Draft, edited", Slug: "draft-post", Date: data.NewDate(2024, 1, 3)}
	if err := app.Previews.CreateSnapshot(ctx, "blog.blogpage", "draft-token", edited); err != nil {
		t.Fatal(err)
	}
	rr = get(t, app.Router, "/api/v2/page_preview/?content_type=blog.BlogPage&token=draft-token")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected draft preview to be 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"title":"Draft, edited"`) || !strings.Contains(rr.Body.String(), fmt.Sprintf(`"id":%d`, draft.ID)) {
		t.Errorf("unexpected draft preview %s", rr.Body.String())
	}
}

func TestHandlers_Integration_Sitemap(t *testing.T) {
	app := setupIntegrationTest(t)
	seed(t, app)

	rr := get(t, app.Router, "/sitemap.xml")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "<loc>https://site.test/first-post/</loc>") {
		t.Errorf("expected live post in sitemap: %s", body)
	}
	if strings.Contains(body, "draft-post") {
		t.Errorf("expected drafts to stay out of the sitemap: %s", body)
	}
}
