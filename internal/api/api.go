// Package api builds the JSON representation of pages served by the read
// API.
package api

import (
	"context"
	"fmt"
	"headless-cms/internal/blocks"
	"headless-cms/internal/data"
	"time"
)

// BodySerializer renders stream bodies.
type BodySerializer interface {
	SerializeBody(ctx context.Context, body data.StreamBody) ([]blocks.Serialized, error)
}

// PageTree answers the tree questions a detail representation needs.
type PageTree interface {
	HomePosts(ctx context.Context, home *data.Page) ([]*data.BlogPage, error)
	Parent(ctx context.Context, page *data.Page) (*data.Page, error)
}

// ItemMeta is the meta block of a listed page.
type ItemMeta struct {
	Type             string     `json:"type"`
	DetailURL        string     `json:"detail_url"`
	HTMLURL          *string    `json:"html_url"`
	Slug             string     `json:"slug"`
	FirstPublishedAt *time.Time `json:"first_published_at"`
}

// Item is a page as it appears in listings.
type Item struct {
	ID    int64      `json:"id"`
	Meta  ItemMeta   `json:"meta"`
	Title string     `json:"title"`
	Date  *data.Date `json:"date,omitempty"`
}

// ParentItem is the short form of a parent page.
type ParentItem struct {
	ID   int64 `json:"id"`
	Meta struct {
		Type      string  `json:"type"`
		DetailURL string  `json:"detail_url"`
		HTMLURL   *string `json:"html_url"`
	} `json:"meta"`
	Title string `json:"title"`
}

// DetailMeta is the meta block of a page detail.
type DetailMeta struct {
	ItemMeta
	ShowInMenus       bool        `json:"show_in_menus"`
	SeoTitle          string      `json:"seo_title"`
	SearchDescription string      `json:"search_description"`
	Parent            *ParentItem `json:"parent"`
}

// PageDetail holds the fields every page detail has.
type PageDetail struct {
	ID    int64      `json:"id"`
	Meta  DetailMeta `json:"meta"`
	Title string     `json:"title"`
}

// BlogPageDetail is the detail of a blog post.
type BlogPageDetail struct {
	PageDetail
	Date data.Date           `json:"date"`
	Body []blocks.Serialized `json:"body"`
}

// HomePageDetail is the detail of a home page with its post listing.
type HomePageDetail struct {
	PageDetail
	Posts []Item `json:"posts"`
}

// Listing is the response of the listing endpoint.
type Listing struct {
	Meta struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
	Items []Item `json:"items"`
}

// Serializer builds page representations.
type Serializer struct {
	body    BodySerializer
	tree    PageTree
	apiURL  string
	siteURL string
}

// NewSerializer creates a Serializer. apiURL is the absolute URL of the
// pages endpoint without trailing slash; siteURL is the front end origin.
func NewSerializer(body BodySerializer, tree PageTree, apiURL, siteURL string) *Serializer {
	return &Serializer{body: body, tree: tree, apiURL: apiURL, siteURL: siteURL}
}

// DetailURL returns the API URL of page id.
func (s *Serializer) DetailURL(id int64) string {
	return fmt.Sprintf("%s/%d/", s.apiURL, id)
}

// HTMLURL returns the front end URL of page, or nil when the page has no
// site path.
func (s *Serializer) HTMLURL(page *data.Page) *string {
	if page.URLPath == "" {
		return nil
	}
	u := s.siteURL + page.URLPath
	return &u
}

func (s *Serializer) itemMeta(page *data.Page) ItemMeta {
	m := ItemMeta{
		Type:      string(page.Type),
		DetailURL: s.DetailURL(page.ID),
		HTMLURL:   s.HTMLURL(page),
		Slug:      page.Slug,
	}
	if page.FirstPublishedAt.Valid {
		at := page.FirstPublishedAt.Time.UTC()
		m.FirstPublishedAt = &at
	}
	return m
}

// Item returns the listing form of page.
func (s *Serializer) Item(page *data.Page) Item {
	return Item{ID: page.ID, Meta: s.itemMeta(page), Title: page.Title}
}

// Listing returns the listing response for one window of pages.
func (s *Serializer) Listing(pages []*data.Page, total int) *Listing {
	l := &Listing{Items: make([]Item, 0, len(pages))}
	l.Meta.TotalCount = total
	for _, p := range pages {
		l.Items = append(l.Items, s.Item(p))
	}
	return l
}

// Detail returns the detail form of page.
func (s *Serializer) Detail(ctx context.Context, page data.Specific) (interface{}, error) {
	base, err := s.pageDetail(ctx, page.Base())
	if err != nil {
		return nil, err
	}

	switch p := page.(type) {
	case *data.BlogPage:
		body, err := s.body.SerializeBody(ctx, p.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize body of page %d: %w", p.ID, err)
		}
		return &BlogPageDetail{PageDetail: *base, Date: p.Date, Body: body}, nil
	case *data.HomePage:
		posts, err := s.tree.HomePosts(ctx, &p.Page)
		if err != nil {
			return nil, fmt.Errorf("failed to list posts of page %d: %w", p.ID, err)
		}
		items := make([]Item, 0, len(posts))
		for _, post := range posts {
			item := s.Item(&post.Page)
			date := post.Date
			item.Date = &date
			items = append(items, item)
		}
		return &HomePageDetail{PageDetail: *base, Posts: items}, nil
	}
	return nil, fmt.Errorf("no representation for page type %T", page)
}

func (s *Serializer) pageDetail(ctx context.Context, page *data.Page) (*PageDetail, error) {
	d := &PageDetail{
		ID:    page.ID,
		Title: page.Title,
		Meta: DetailMeta{
			ItemMeta:          s.itemMeta(page),
			ShowInMenus:       page.ShowInMenus,
			SeoTitle:          page.SeoTitle,
			SearchDescription: page.SearchDescription,
		},
	}
	parent, err := s.tree.Parent(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to load parent of page %d: %w", page.ID, err)
	}
	if parent != nil {
		pi := &ParentItem{ID: parent.ID, Title: parent.Title}
		pi.Meta.Type = string(parent.Type)
		pi.Meta.DetailURL = s.DetailURL(parent.ID)
		pi.Meta.HTMLURL = s.HTMLURL(parent)
		d.Meta.Parent = pi
	}
	return d, nil
}
