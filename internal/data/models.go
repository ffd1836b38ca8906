package data

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by repositories when no row matches a lookup.
var ErrNotFound = errors.New("not found")

// PageType is the closed set of page models served by the API.
type PageType string

const (
	TypeHomePage PageType = "home.HomePage"
	TypeBlogPage PageType = "blog.BlogPage"
)

// PageTypes lists every known page type.
var PageTypes = []PageType{TypeHomePage, TypeBlogPage}

// ContentType returns the lower-case "<app>.<model>" form used by previews.
func (t PageType) ContentType() string {
	return strings.ToLower(string(t))
}

// App returns the application label of the type.
func (t PageType) App() string {
	app, _, _ := strings.Cut(string(t), ".")
	return app
}

// ParsePageType resolves "<app>.<model>" case-insensitively.
func ParsePageType(s string) (PageType, error) {
	app, model, ok := strings.Cut(s, ".")
	if !ok || app == "" || model == "" || strings.Contains(model, ".") {
		return "", fmt.Errorf("malformed content type %q, expected <app>.<model>", s)
	}
	for _, t := range PageTypes {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown page type %q", s)
}

// Page represents the fields shared by every page in the content tree.
type Page struct {
	ID                int64        `db:"id"`
	Type              PageType     `db:"content_type"`
	Title             string       `db:"title"`
	Slug              string       `db:"slug"`
	URLPath           string       `db:"url_path"`
	Path              string       `db:"path"`
	Depth             int          `db:"depth"`
	ParentID          *int64       `db:"parent_id"`
	Live              bool         `db:"live"`
	ShowInMenus       bool         `db:"show_in_menus"`
	SeoTitle          string       `db:"seo_title"`
	SearchDescription string       `db:"search_description"`
	FirstPublishedAt  sql.NullTime `db:"first_published_at"`
	LastPublishedAt   sql.NullTime `db:"last_published_at"`
	CreatedAt         time.Time    `db:"created_at"`
}

// IsAncestorOf reports whether other sits below p in the tree.
func (p *Page) IsAncestorOf(other *Page) bool {
	return other.Depth > p.Depth && strings.HasPrefix(other.Path, p.Path)
}

// HomePage is the site root and post listing page.
type HomePage struct {
	Page
}

// BlogPage is a dated post with a stream body.
type BlogPage struct {
	Page
	Date Date       `db:"date"`
	Body StreamBody `db:"body"`
}

// Specific is a page materialised as its concrete type, *HomePage or *BlogPage.
type Specific interface {
	Base() *Page
}

func (p *HomePage) Base() *Page { return &p.Page }
func (p *BlogPage) Base() *Page { return &p.Page }

// Previewable is implemented by page types that can be rendered from an
// unsaved preview snapshot.
type Previewable interface {
	Specific
	ApplySnapshot(s *PageSnapshot) error
}

// NewPreviewable returns an empty page of type t.
func NewPreviewable(t PageType) (Previewable, error) {
	switch t {
	case TypeHomePage:
		return &HomePage{Page: Page{Type: t}}, nil
	case TypeBlogPage:
		return &BlogPage{Page: Page{Type: t}, Body: StreamBody{}}, nil
	}
	return nil, fmt.Errorf("page type %q does not support previews", t)
}

// PageSnapshot is the uncommitted content of a page held by a preview.
type PageSnapshot struct {
	ID          *int64     `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	URLPath     string     `json:"url_path,omitempty"`
	ShowInMenus bool       `json:"show_in_menus"`
	SeoTitle    string     `json:"seo_title,omitempty"`
	Date        Date       `json:"date,omitempty"`
	Body        StreamBody `json:"body,omitempty"`
}

func applyBase(p *Page, s *PageSnapshot) {
	if s.ID != nil {
		p.ID = *s.ID
	}
	p.Title = s.Title
	p.Slug = s.Slug
	if s.URLPath != "" {
		p.URLPath = s.URLPath
	}
	p.ShowInMenus = s.ShowInMenus
	if s.SeoTitle != "" {
		p.SeoTitle = s.SeoTitle
	}
}

// ApplySnapshot overlays the snapshot on the home page.
func (p *HomePage) ApplySnapshot(s *PageSnapshot) error {
	applyBase(&p.Page, s)
	return nil
}

// ApplySnapshot overlays the snapshot on the blog page.
func (p *BlogPage) ApplySnapshot(s *PageSnapshot) error {
	applyBase(&p.Page, s)
	if s.Date.IsZero() {
		return errors.New("blog page snapshot has no date")
	}
	p.Date = s.Date
	p.Body = s.Body
	if p.Body == nil {
		p.Body = StreamBody{}
	}
	return nil
}

// Preview is a stored preview snapshot addressed by content type and token.
type Preview struct {
	ID          int64     `db:"id"`
	Token       string    `db:"token"`
	ContentType string    `db:"content_type"`
	ContentJSON string    `db:"content_json"`
	CreatedAt   time.Time `db:"created_at"`
}

// Image is an original image asset.
type Image struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	File      string    `db:"file"`
	Width     int       `db:"width"`
	Height    int       `db:"height"`
	CreatedAt time.Time `db:"created_at"`
}
