package service

import (
	"context"
	"errors"
	"fmt"
	"headless-cms/internal/data"
	"headless-cms/internal/logger"
	"strings"
)

// ErrNotFound is returned when no page or preview matches a lookup.
var ErrNotFound = errors.New("not found")

// ErrInvalidParameter is returned for malformed lookup or listing input.
var ErrInvalidParameter = errors.New("invalid parameter")

// PageRepository defines the interface for reading the page tree.
type PageRepository interface {
	GetPageByID(ctx context.Context, id int64, v data.Visibility) (*data.Page, error)
	GetPageBySlug(ctx context.Context, slug string, v data.Visibility) (*data.Page, error)
	ListPages(ctx context.Context, f data.PageFilter) ([]*data.Page, int, error)
	GetSpecific(ctx context.Context, page *data.Page) (data.Specific, error)
	ListBlogPosts(ctx context.Context, q data.PostQuery) ([]*data.BlogPage, error)
}

// PreviewRepository defines the interface for reading preview snapshots.
type PreviewRepository interface {
	GetSnapshot(ctx context.Context, contentType, token string) (*data.PageSnapshot, error)
}

// PageServicer defines the interface for resolving pages for the API.
type PageServicer interface {
	GetPage(ctx context.Context, l Lookup) (data.Specific, error)
	ListPages(ctx context.Context, q ListQuery) (*PageList, error)
	FindPage(ctx context.Context, q FindQuery) (*data.Page, error)
	PreviewPage(ctx context.Context, contentType, token string) (data.Previewable, error)
	HomePosts(ctx context.Context, home *data.Page) ([]*data.BlogPage, error)
	Parent(ctx context.Context, page *data.Page) (*data.Page, error)
}

// Lookup identifies a single page by id or by slug. ID wins when both are set.
type Lookup struct {
	ID   *int64
	Slug string
}

// ListQuery selects a window of live pages.
type ListQuery struct {
	Type         string
	ChildOf      *int64
	DescendantOf *int64
	ShowInMenus  *bool
	Slug         string
	Order        string
	Limit        int
	Offset       int
	// Unbounded lists every match. Only internal callers such as the
	// sitemap set it.
	Unbounded bool
}

// PageList is one window of a listing.
type PageList struct {
	Items []*data.Page
	Total int
}

// FindQuery locates a single page by its site path or by listing filters.
type FindQuery struct {
	HTMLPath string
	ListQuery
}

// PageService provides the lookup logic behind the read API.
type PageService struct {
	pages    PageRepository
	previews PreviewRepository
	log      logger.Logger
}

// NewPageService creates a new PageService with the given repositories.
func NewPageService(pages PageRepository, previews PreviewRepository, log logger.Logger) *PageService {
	return &PageService{pages: pages, previews: previews, log: log}
}

// GetPage resolves a live page by id, or by slug when no id is given.
func (s *PageService) GetPage(ctx context.Context, l Lookup) (data.Specific, error) {
	var (
		page *data.Page
		err  error
	)
	switch {
	case l.ID != nil:
		page, err = s.pages.GetPageByID(ctx, *l.ID, data.PublicOnly)
	case l.Slug != "":
		page, err = s.pages.GetPageBySlug(ctx, l.Slug, data.PublicOnly)
	default:
		return nil, fmt.Errorf("page lookup needs an id or a slug: %w", ErrInvalidParameter)
	}
	if err != nil {
		return nil, translate(err)
	}
	specific, err := s.pages.GetSpecific(ctx, page)
	if err != nil {
		return nil, translate(err)
	}
	return specific, nil
}

// ListPages returns one window of live pages matching q.
func (s *PageService) ListPages(ctx context.Context, q ListQuery) (*PageList, error) {
	filter, err := s.filterFor(ctx, q)
	if err != nil {
		return nil, err
	}
	pages, total, err := s.pages.ListPages(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	return &PageList{Items: pages, Total: total}, nil
}

func (s *PageService) filterFor(ctx context.Context, q ListQuery) (data.PageFilter, error) {
	f := data.PageFilter{
		ChildOf:      q.ChildOf,
		DescendantOf: q.DescendantOf,
		ShowInMenus:  q.ShowInMenus,
		Slug:         q.Slug,
		Order:        q.Order,
		Limit:        q.Limit,
		Offset:       q.Offset,
		Unbounded:    q.Unbounded,
	}
	if q.Type != "" {
		t, err := data.ParsePageType(q.Type)
		if err != nil {
			return f, fmt.Errorf("type: %v: %w", err, ErrInvalidParameter)
		}
		f.Type = t
	}
	if q.Order != "" && !data.ValidOrder(q.Order) {
		return f, fmt.Errorf("cannot order by '%s': %w", q.Order, ErrInvalidParameter)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return f, fmt.Errorf("limit and offset must be positive: %w", ErrInvalidParameter)
	}
	if q.ChildOf != nil && q.DescendantOf != nil {
		return f, fmt.Errorf("filtering by child_of with descendant_of is not supported: %w", ErrInvalidParameter)
	}
	if q.ChildOf != nil {
		if _, err := s.pages.GetPageByID(ctx, *q.ChildOf, data.PublicOnly); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return f, fmt.Errorf("parent page doesn't exist: %w", ErrInvalidParameter)
			}
			return f, err
		}
	}
	if q.DescendantOf != nil {
		if _, err := s.pages.GetPageByID(ctx, *q.DescendantOf, data.PublicOnly); err != nil {
			if errors.Is(err, data.ErrNotFound) {
				return f, fmt.Errorf("ancestor page doesn't exist: %w", ErrInvalidParameter)
			}
			return f, err
		}
	}
	if !q.Unbounded && q.Limit == 0 {
		return f, fmt.Errorf("limit must be a positive integer: %w", ErrInvalidParameter)
	}
	return f, nil
}

// FindPage returns the single live page matching q.
func (s *PageService) FindPage(ctx context.Context, q FindQuery) (*data.Page, error) {
	lq := q.ListQuery
	lq.Limit, lq.Offset, lq.Unbounded = 2, 0, false
	filter, err := s.filterFor(ctx, lq)
	if err != nil {
		return nil, err
	}
	if q.HTMLPath != "" {
		filter.URLPath = normalizePath(q.HTMLPath)
	}

	pages, total, err := s.pages.ListPages(ctx, filter)
	if err != nil {
		return nil, translate(err)
	}
	if total != 1 || len(pages) != 1 {
		return nil, fmt.Errorf("find matched %d pages: %w", total, ErrNotFound)
	}
	return pages[0], nil
}

// normalizePath turns "blog/post" into "/blog/post/".
func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p + "/"
}

// PreviewPage materialises the preview snapshot stored for (contentType,
// token). Previews ignore the live flag. A snapshot of a page that was never
// saved gets id 0.
func (s *PageService) PreviewPage(ctx context.Context, contentType, token string) (data.Previewable, error) {
	if contentType == "" || token == "" {
		return nil, fmt.Errorf("content_type and token are required: %w", ErrInvalidParameter)
	}
	t, err := data.ParsePageType(contentType)
	if err != nil {
		return nil, fmt.Errorf("content_type: %v: %w", err, ErrInvalidParameter)
	}

	snapshot, err := s.previews.GetSnapshot(ctx, t.ContentType(), token)
	if err != nil {
		return nil, translate(err)
	}

	page, err := s.previewBase(ctx, t, snapshot)
	if err != nil {
		return nil, err
	}
	if err := page.ApplySnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("preview of %s: %v: %w", t, err, ErrInvalidParameter)
	}
	if snapshot.ID == nil {
		page.Base().ID = 0
	}
	return page, nil
}

// previewBase returns the stored page the snapshot was taken from, so the
// preview keeps its tree position, or an empty page of type t.
func (s *PageService) previewBase(ctx context.Context, t data.PageType, snapshot *data.PageSnapshot) (data.Previewable, error) {
	if snapshot.ID != nil {
		stored, err := s.pages.GetPageByID(ctx, *snapshot.ID, data.IncludeDrafts)
		switch {
		case err == nil && stored.Type == t:
			specific, err := s.pages.GetSpecific(ctx, stored)
			if err != nil {
				return nil, translate(err)
			}
			if p, ok := specific.(data.Previewable); ok {
				return p, nil
			}
		case err != nil && !errors.Is(err, data.ErrNotFound):
			return nil, err
		}
	}
	page, err := data.NewPreviewable(t)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidParameter)
	}
	return page, nil
}

// Parent returns the live parent of page, or nil for the root and for pages
// below an unpublished parent.
func (s *PageService) Parent(ctx context.Context, page *data.Page) (*data.Page, error) {
	if page.ParentID == nil {
		return nil, nil
	}
	parent, err := s.pages.GetPageByID(ctx, *page.ParentID, data.PublicOnly)
	if err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return parent, nil
}

// PageURL returns the site path of the live page id. It resolves internal
// links in rich text.
func (s *PageService) PageURL(ctx context.Context, id int64) (string, bool) {
	page, err := s.pages.GetPageByID(ctx, id, data.PublicOnly)
	if err != nil {
		if !errors.Is(err, data.ErrNotFound) {
			s.log.Error(err, fmt.Sprintf("Failed to resolve link to page %d", id))
		}
		return "", false
	}
	return page.URLPath, true
}

// translate maps repository not-found errors onto the service sentinel.
func translate(err error) error {
	if errors.Is(err, data.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, ErrNotFound)
	}
	return err
}
