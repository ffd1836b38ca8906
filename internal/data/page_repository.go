package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

// Visibility selects which pages a lookup may return.
type Visibility int

const (
	// PublicOnly restricts lookups to live pages.
	PublicOnly Visibility = iota
	// IncludeDrafts also returns pages that were never published.
	IncludeDrafts
)

// pathStepLen is the width of one level of the materialised tree path.
const pathStepLen = 4

const pathAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const pageColumns = `p.id, p.content_type, p.title, p.slug, p.url_path, p.path, p.depth, p.parent_id,
	p.live, p.show_in_menus, p.seo_title, p.search_description,
	p.first_published_at, p.last_published_at, p.created_at`

// listOrders maps accepted listing orderings to SQL columns.
var listOrders = map[string]string{
	"id":                 "p.id",
	"title":              "p.title",
	"slug":               "p.slug",
	"first_published_at": "p.first_published_at",
	"last_published_at":  "p.last_published_at",
	"path":               "p.path",
}

// PageFilter narrows a listing of live pages.
type PageFilter struct {
	Type         PageType
	ChildOf      *int64
	DescendantOf *int64
	ShowInMenus  *bool
	Slug         string
	URLPath      string
	// Order is a key of the accepted orderings, optionally prefixed with "-".
	Order  string
	Limit  int
	Offset int
	// Unbounded returns every match and ignores Limit and Offset. A bounded
	// filter with a zero Limit selects an empty window.
	Unbounded bool
}

// PostOrder selects the sort key of a blog post query.
type PostOrder int

const (
	// ByDateDesc sorts by the post date, newest first.
	ByDateDesc PostOrder = iota
	// ByFirstPublishedDesc sorts by first publication, newest first.
	ByFirstPublishedDesc
)

// PostQuery selects live blog posts below an ancestor page.
type PostQuery struct {
	Ancestor     *Page
	ChildrenOnly bool
	ShowInMenus  *bool
	Order        PostOrder
}

// SQLPageRepository is a concrete implementation of the page store using sqlx.
type SQLPageRepository struct {
	db *sqlx.DB
}

// NewSQLPageRepository creates a new SQLPageRepository.
func NewSQLPageRepository(db *sqlx.DB) *SQLPageRepository {
	return &SQLPageRepository{db: db}
}

// ValidOrder reports whether order is an accepted listing ordering.
func ValidOrder(order string) bool {
	_, ok := listOrders[strings.TrimPrefix(order, "-")]
	return ok
}

func visibilityClause(v Visibility) string {
	if v == PublicOnly {
		return " AND p.live = ?"
	}
	return ""
}

func visibilityArgs(v Visibility, args ...interface{}) []interface{} {
	if v == PublicOnly {
		return append(args, true)
	}
	return args
}

// GetPageByID retrieves a single page from the database by its ID.
func (r *SQLPageRepository) GetPageByID(ctx context.Context, id int64, v Visibility) (*Page, error) {
	var page Page
	query := `SELECT ` + pageColumns + ` FROM pages p WHERE p.id = ?` + visibilityClause(v)
	if err := r.db.GetContext(ctx, &page, query, visibilityArgs(v, id)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page with id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page by id: %w", err)
	}
	return &page, nil
}

// GetPageBySlug retrieves a single page from the database by its slug.
// Slugs are only unique among siblings; the page closest to the root wins.
func (r *SQLPageRepository) GetPageBySlug(ctx context.Context, slug string, v Visibility) (*Page, error) {
	var page Page
	query := `SELECT ` + pageColumns + ` FROM pages p WHERE p.slug = ?` + visibilityClause(v) + ` ORDER BY p.path LIMIT 1`
	if err := r.db.GetContext(ctx, &page, query, visibilityArgs(v, slug)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("page with slug '%s': %w", slug, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get page by slug: %w", err)
	}
	return &page, nil
}

// ListPages returns one window of live pages matching the filter together
// with the total number of matches.
func (r *SQLPageRepository) ListPages(ctx context.Context, f PageFilter) ([]*Page, int, error) {
	where := []string{"p.live = ?"}
	args := []interface{}{true}

	if f.Type != "" {
		where = append(where, "p.content_type = ?")
		args = append(args, string(f.Type))
	}
	if f.ChildOf != nil {
		where = append(where, "p.parent_id = ?")
		args = append(args, *f.ChildOf)
	}
	if f.DescendantOf != nil {
		ancestor, err := r.GetPageByID(ctx, *f.DescendantOf, IncludeDrafts)
		if err != nil {
			return nil, 0, err
		}
		where = append(where, "p.path LIKE ?", "p.depth > ?")
		args = append(args, ancestor.Path+"%", ancestor.Depth)
	}
	if f.ShowInMenus != nil {
		where = append(where, "p.show_in_menus = ?")
		args = append(args, *f.ShowInMenus)
	}
	if f.Slug != "" {
		where = append(where, "p.slug = ?")
		args = append(args, f.Slug)
	}
	if f.URLPath != "" {
		where = append(where, "p.url_path = ?")
		args = append(args, f.URLPath)
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pages p WHERE `+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count pages: %w", err)
	}

	order := "p.path"
	if f.Order != "" {
		col, ok := listOrders[strings.TrimPrefix(f.Order, "-")]
		if !ok {
			return nil, 0, fmt.Errorf("cannot order by '%s'", f.Order)
		}
		order = col
		if strings.HasPrefix(f.Order, "-") {
			order += " DESC"
		}
		order += ", p.id"
	}

	query := `SELECT ` + pageColumns + ` FROM pages p WHERE ` + clause + ` ORDER BY ` + order
	if !f.Unbounded {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	pages := []*Page{}
	if err := r.db.SelectContext(ctx, &pages, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list pages: %w", err)
	}
	return pages, total, nil
}

// GetSpecific loads the type-specific fields of page.
func (r *SQLPageRepository) GetSpecific(ctx context.Context, page *Page) (Specific, error) {
	switch page.Type {
	case TypeHomePage:
		return &HomePage{Page: *page}, nil
	case TypeBlogPage:
		bp := &BlogPage{Page: *page}
		query := `SELECT b.date, b.body FROM blog_pages b WHERE b.page_id = ?`
		row := r.db.QueryRowxContext(ctx, query, page.ID)
		if err := row.Scan(&bp.Date, &bp.Body); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("blog fields of page %d: %w", page.ID, ErrNotFound)
			}
			return nil, fmt.Errorf("failed to get blog fields: %w", err)
		}
		return bp, nil
	}
	return nil, fmt.Errorf("page %d has unsupported type %q", page.ID, page.Type)
}

// ListBlogPosts returns live blog posts below q.Ancestor.
func (r *SQLPageRepository) ListBlogPosts(ctx context.Context, q PostQuery) ([]*BlogPage, error) {
	if q.Ancestor == nil {
		return nil, errors.New("post query needs an ancestor page")
	}
	query := `SELECT ` + pageColumns + `, b.date, b.body FROM pages p JOIN blog_pages b ON b.page_id = p.id
		WHERE p.live = ? AND p.content_type = ?`
	args := []interface{}{true, string(TypeBlogPage)}

	if q.ChildrenOnly {
		query += ` AND p.parent_id = ?`
		args = append(args, q.Ancestor.ID)
	} else {
		query += ` AND p.path LIKE ? AND p.depth > ?`
		args = append(args, q.Ancestor.Path+"%", q.Ancestor.Depth)
	}
	if q.ShowInMenus != nil {
		query += ` AND p.show_in_menus = ?`
		args = append(args, *q.ShowInMenus)
	}
	switch q.Order {
	case ByFirstPublishedDesc:
		query += ` ORDER BY p.first_published_at DESC, p.id DESC`
	default:
		query += ` ORDER BY b.date DESC, p.id DESC`
	}

	posts := []*BlogPage{}
	if err := r.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list blog posts: %w", err)
	}
	return posts, nil
}

// CreatePage inserts page below parentID (nil for a root page), filling in
// its ID, tree position and url path.
func (r *SQLPageRepository) CreatePage(ctx context.Context, page *Page, parentID *int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertPage(ctx, tx, page, parentID); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateBlogPage inserts a blog page and its body below parentID.
func (r *SQLPageRepository) CreateBlogPage(ctx context.Context, bp *BlogPage, parentID *int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bp.Type = TypeBlogPage
	if err := insertPage(ctx, tx, &bp.Page, parentID); err != nil {
		return err
	}
	query := `INSERT INTO blog_pages (page_id, date, body) VALUES (?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, bp.ID, bp.Date, bp.Body); err != nil {
		return fmt.Errorf("failed to insert blog fields: %w", err)
	}
	return tx.Commit()
}

// UpdateBlogPage replaces the editable fields and body of a blog page.
func (r *SQLPageRepository) UpdateBlogPage(ctx context.Context, bp *BlogPage) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE pages SET title = ?, show_in_menus = ?, seo_title = ?, search_description = ? WHERE id = ?`
	result, err := tx.ExecContext(ctx, query, bp.Title, bp.ShowInMenus, bp.SeoTitle, bp.SearchDescription, bp.ID)
	if err != nil {
		return fmt.Errorf("failed to update page: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no page to update with id %d: %w", bp.ID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE blog_pages SET date = ?, body = ? WHERE page_id = ?`, bp.Date, bp.Body, bp.ID); err != nil {
		return fmt.Errorf("failed to update blog fields: %w", err)
	}
	return tx.Commit()
}

// Publish makes the page live, recording the publication time.
func (r *SQLPageRepository) Publish(ctx context.Context, id int64, at time.Time) error {
	at = at.UTC()
	query := `UPDATE pages SET live = ?, first_published_at = COALESCE(first_published_at, ?), last_published_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, true, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to publish page: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("no page to publish with id %d: %w", id, ErrNotFound)
	}
	return nil
}

// Unpublish withdraws the page from public lookups.
func (r *SQLPageRepository) Unpublish(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE pages SET live = ? WHERE id = ?`, false, id); err != nil {
		return fmt.Errorf("failed to unpublish page: %w", err)
	}
	return nil
}

func insertPage(ctx context.Context, tx *sqlx.Tx, page *Page, parentID *int64) error {
	var parent *Page
	if parentID != nil {
		var p Page
		query := `SELECT ` + pageColumns + ` FROM pages p WHERE p.id = ?`
		if err := tx.GetContext(ctx, &p, query, *parentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("parent page %d: %w", *parentID, ErrNotFound)
			}
			return fmt.Errorf("failed to get parent page: %w", err)
		}
		parent = &p
	}

	prefix, depth, urlPath := "", 1, "/"
	if parent != nil {
		prefix, depth = parent.Path, parent.Depth+1
		urlPath = parent.URLPath + page.Slug + "/"
	}

	var last sql.NullString
	query := `SELECT MAX(path) FROM pages WHERE depth = ? AND path LIKE ?`
	if err := tx.GetContext(ctx, &last, query, depth, prefix+"%"); err != nil {
		return fmt.Errorf("failed to read sibling paths: %w", err)
	}
	step, err := nextPathStep(last.String)
	if err != nil {
		return err
	}

	page.Path = prefix + step
	page.Depth = depth
	page.URLPath = urlPath
	page.ParentID = parentID
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Now().UTC()
	}

	insert := `INSERT INTO pages (content_type, title, slug, url_path, path, depth, parent_id, live, show_in_menus,
		seo_title, search_description, first_published_at, last_published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, insert, string(page.Type), page.Title, page.Slug, page.URLPath, page.Path,
		page.Depth, page.ParentID, page.Live, page.ShowInMenus, page.SeoTitle, page.SearchDescription,
		page.FirstPublishedAt, page.LastPublishedAt, page.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute create page query: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read page id: %w", err)
	}
	page.ID = id
	return nil
}

// nextPathStep returns the path step following the last sibling path.
func nextPathStep(lastSibling string) (string, error) {
	if lastSibling == "" {
		return fmt.Sprintf("%0*d", pathStepLen, 1), nil
	}
	step := lastSibling[len(lastSibling)-pathStepLen:]
	n, err := strconv.ParseInt(step, len(pathAlphabet), 64)
	if err != nil {
		return "", fmt.Errorf("corrupt tree path %q: %w", lastSibling, err)
	}
	next := strings.ToUpper(strconv.FormatInt(n+1, len(pathAlphabet)))
	if len(next) > pathStepLen {
		return "", errors.New("too many sibling pages")
	}
	return strings.Repeat("0", pathStepLen-len(next)) + next, nil
}
