//go:build integration

package data

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// setupRepositoryTest creates a new in-memory SQLite database with the
// application schema. It returns the database and a teardown function.
func setupRepositoryTest(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()

	// Use a non-shared in-memory database for complete test isolation.
	db, err := sqlx.Connect("sqlite3", "file::memory:")
	if err != nil {
		t.Fatalf("Failed to connect to sqlite test database: %v", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	schema, err := Schema("sqlite")
	if err != nil {
		t.Fatal(err)
	}
	db.MustExec(schema)

	return db, func() { db.Close() }
}

// seedTree creates a live home page with two live posts and one draft.
func seedTree(t *testing.T, repo *SQLPageRepository) (*Page, []*BlogPage) {
	t.Helper()
	ctx := context.Background()

	home := &Page{Type: TypeHomePage, Title: "Home", Slug: "home"}
	if err := repo.CreatePage(ctx, home, nil); err != nil {
		t.Fatalf("failed to create home page: %v", err)
	}
	if err := repo.Publish(ctx, home.ID, time.Now()); err != nil {
		t.Fatal(err)
	}

	posts := []*BlogPage{
		{Page: Page{Title: "First Blog Post", Slug: "first-post", ShowInMenus: true}, Date: NewDate(2024, 1, 1),
			Body: StreamBody{HeadingBlock("First Heading"), ParagraphBlock("<p>First paragraph</p>")}},
		{Page: Page{Title: "Second Blog Post", Slug: "second-post", ShowInMenus: true}, Date: NewDate(2024, 1, 2),
			Body: StreamBody{HeadingBlock("Second Heading")}},
		{Page: Page{Title: "Draft Post", Slug: "draft-post", ShowInMenus: true}, Date: NewDate(2024, 1, 4),
			Body: StreamBody{HeadingBlock("Draft Heading")}},
	}
	for i, p := range posts {
		if err := repo.CreateBlogPage(ctx, p, &home.ID); err != nil {
			t.Fatalf("failed to create blog page: %v", err)
		}
		if i < 2 {
			if err := repo.Publish(ctx, p.ID, time.Date(2024, 1, 10+i, 0, 0, 0, 0, time.UTC)); err != nil {
				t.Fatal(err)
			}
		}
	}
	return home, posts
}

func TestSQLPageRepository_CreatePage_TreePosition(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)

	home, posts := seedTree(t, repo)

	if home.Depth != 1 || home.Path != "0001" || home.URLPath != "/" {
		t.Errorf("unexpected home position: depth=%d path=%s url=%s", home.Depth, home.Path, home.URLPath)
	}
	if posts[0].Path != "00010001" || posts[1].Path != "00010002" {
		t.Errorf("unexpected child paths: %s, %s", posts[0].Path, posts[1].Path)
	}
	if posts[0].URLPath != "/first-post/" {
		t.Errorf("expected url path '/first-post/', got '%s'", posts[0].URLPath)
	}
	if !home.IsAncestorOf(&posts[1].Page) {
		t.Error("expected home to be an ancestor of its posts")
	}
}

func TestSQLPageRepository_CreateBlogPage_Published(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	home, _ := seedTree(t, repo)

	at := sql.NullTime{Time: time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC), Valid: true}
	post := &BlogPage{
		Page: Page{Title: "Imported", Slug: "imported", Live: true, FirstPublishedAt: at, LastPublishedAt: at},
		Date: NewDate(2024, 5, 6),
		Body: StreamBody{},
	}
	if err := repo.CreateBlogPage(ctx, post, &home.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := repo.GetPageByID(ctx, post.ID, PublicOnly)
	if err != nil {
		t.Fatalf("expected the page to be live straight away, got %v", err)
	}
	if !found.FirstPublishedAt.Valid || !found.FirstPublishedAt.Time.Equal(at.Time) {
		t.Errorf("expected first_published_at %v, got %+v", at.Time, found.FirstPublishedAt)
	}

	dup := &BlogPage{Page: Page{Title: "Again", Slug: "imported"}, Date: NewDate(2024, 5, 7), Body: StreamBody{}}
	if err := repo.CreateBlogPage(ctx, dup, &home.ID); err == nil {
		t.Error("expected a duplicate slug under the same parent to fail")
	}
	if _, err := repo.GetPageBySlug(ctx, "imported", IncludeDrafts); err != nil {
		t.Errorf("expected the original page to survive the failed insert, got %v", err)
	}
}

func TestSQLPageRepository_GetPageByID_Visibility(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	_, posts := seedTree(t, repo)

	found, err := repo.GetPageByID(ctx, posts[0].ID, PublicOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Title != "First Blog Post" {
		t.Errorf("expected title 'First Blog Post', got '%s'", found.Title)
	}
	if !found.FirstPublishedAt.Valid {
		t.Error("expected first_published_at to be set")
	}

	_, err = repo.GetPageByID(ctx, posts[2].ID, PublicOnly)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for a draft, got %v", err)
	}

	draft, err := repo.GetPageByID(ctx, posts[2].ID, IncludeDrafts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Live {
		t.Error("expected draft not to be live")
	}
}

func TestSQLPageRepository_GetPageBySlug(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	_, posts := seedTree(t, repo)

	found, err := repo.GetPageBySlug(ctx, "second-post", PublicOnly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != posts[1].ID {
		t.Errorf("expected id %d, got %d", posts[1].ID, found.ID)
	}

	if _, err := repo.GetPageBySlug(ctx, "draft-post", PublicOnly); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetPageBySlug(ctx, "missing", IncludeDrafts); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLPageRepository_GetSpecific(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	home, posts := seedTree(t, repo)

	page, err := repo.GetPageByID(ctx, posts[0].ID, PublicOnly)
	if err != nil {
		t.Fatal(err)
	}
	specific, err := repo.GetSpecific(ctx, page)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bp, ok := specific.(*BlogPage)
	if !ok {
		t.Fatalf("expected *BlogPage, got %T", specific)
	}
	if bp.Date.String() != "2024-01-01" {
		t.Errorf("expected date '2024-01-01', got '%s'", bp.Date)
	}
	if len(bp.Body) != 2 || bp.Body[0].Type != BlockHeading || bp.Body[1].Type != BlockParagraph {
		t.Errorf("unexpected body: %+v", bp.Body)
	}

	homePage, err := repo.GetPageByID(ctx, home.ID, PublicOnly)
	if err != nil {
		t.Fatal(err)
	}
	specific, err = repo.GetSpecific(ctx, homePage)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := specific.(*HomePage); !ok {
		t.Errorf("expected *HomePage, got %T", specific)
	}
}

func TestSQLPageRepository_ListPages(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	home, _ := seedTree(t, repo)

	pages, total, err := repo.ListPages(ctx, PageFilter{Unbounded: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(pages) != 3 {
		t.Errorf("expected 3 live pages, got total=%d len=%d", total, len(pages))
	}

	pages, total, err = repo.ListPages(ctx, PageFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 || len(pages) != 0 {
		t.Errorf("expected an empty window for a zero limit, got total=%d len=%d", total, len(pages))
	}

	pages, total, err = repo.ListPages(ctx, PageFilter{Type: TypeBlogPage, Unbounded: true})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 {
		t.Errorf("expected 2 blog pages, got %d", total)
	}
	for _, p := range pages {
		if p.Type != TypeBlogPage {
			t.Errorf("expected type %s, got %s", TypeBlogPage, p.Type)
		}
	}

	pages, total, err = repo.ListPages(ctx, PageFilter{DescendantOf: &home.ID, Order: "-first_published_at", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(pages) != 1 {
		t.Fatalf("expected a window of 1 out of 2, got len=%d total=%d", len(pages), total)
	}
	if pages[0].Slug != "second-post" {
		t.Errorf("expected most recently published first, got '%s'", pages[0].Slug)
	}

	missing := int64(999)
	if _, _, err := repo.ListPages(ctx, PageFilter{DescendantOf: &missing}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown ancestor, got %v", err)
	}
}

func TestSQLPageRepository_ListBlogPosts(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewSQLPageRepository(db)
	ctx := context.Background()

	home, posts := seedTree(t, repo)

	// Hide the first post from menus.
	posts[0].ShowInMenus = false
	if err := repo.UpdateBlogPage(ctx, posts[0]); err != nil {
		t.Fatal(err)
	}

	show := true
	result, err := repo.ListBlogPosts(ctx, PostQuery{Ancestor: home, ShowInMenus: &show})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result) != 1 || result[0].Slug != "second-post" {
		t.Fatalf("expected only second-post, got %d posts", len(result))
	}
	if len(result[0].Body) != 1 {
		t.Errorf("expected body to be loaded, got %d blocks", len(result[0].Body))
	}

	result, err = repo.ListBlogPosts(ctx, PostQuery{Ancestor: home})
	if err != nil {
		t.Fatal(err)
	}
	if len(result) != 2 || result[0].Slug != "second-post" || result[1].Slug != "first-post" {
		t.Errorf("expected posts newest first, got %+v", result)
	}
}

func TestPreviewRepository(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewPreviewRepository(db)
	ctx := context.Background()

	snapshot := &PageSnapshot{Title: "Unsaved", Slug: "unsaved", Date: NewDate(2024, 2, 1),
		Body: StreamBody{HeadingBlock("Draft")}}
	if err := repo.CreateSnapshot(ctx, "blog.blogpage", "abc123", snapshot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found, err := repo.GetSnapshot(ctx, "blog.blogpage", "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.ID != nil {
		t.Errorf("expected no id, got %d", *found.ID)
	}
	if found.Title != "Unsaved" || len(found.Body) != 1 {
		t.Errorf("unexpected snapshot: %+v", found)
	}

	// Reading does not consume the preview.
	if _, err := repo.GetSnapshot(ctx, "blog.blogpage", "abc123"); err != nil {
		t.Errorf("expected preview to survive a read, got %v", err)
	}
	if _, err := repo.GetSnapshot(ctx, "home.homepage", "abc123"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another content type, got %v", err)
	}

	removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("expected 1 preview removed, got %d", removed)
	}
}

func TestImageRepository(t *testing.T) {
	db, teardown := setupRepositoryTest(t)
	defer teardown()
	repo := NewImageRepository(db)
	ctx := context.Background()

	image := &Image{Title: "Test Image", File: "original_images/test.jpg", Width: 2000, Height: 1000}
	if err := repo.CreateImage(ctx, image); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if image.ID == 0 {
		t.Error("expected non-zero id")
	}

	found, err := repo.GetImageByID(ctx, image.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Width != 2000 || found.Height != 1000 {
		t.Errorf("unexpected dimensions %dx%d", found.Width, found.Height)
	}

	if _, err := repo.GetImageByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
