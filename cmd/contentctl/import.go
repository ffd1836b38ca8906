package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"headless-cms/internal/data"
	"headless-cms/internal/logger"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"
)

// pageStore is the part of the page repository the importer writes through.
type pageStore interface {
	GetPageBySlug(ctx context.Context, slug string, v data.Visibility) (*data.Page, error)
	ListPages(ctx context.Context, f data.PageFilter) ([]*data.Page, int, error)
	CreateBlogPage(ctx context.Context, bp *data.BlogPage, parentID *int64) error
}

// importer creates blog pages from a directory of markdown files.
type importer struct {
	pages     pageStore
	converter *converter
	log       logger.Logger
	now       func() time.Time
}

func newImporter(pages pageStore, log logger.Logger) *importer {
	return &importer{pages: pages, converter: newConverter(), log: log, now: time.Now}
}

// ImportDir imports every .md file in dir in name order and returns the
// number of pages created. It stops at the first file that fails.
func (im *importer) ImportDir(ctx context.Context, dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	if err != nil {
		return 0, err
	}
	sort.Strings(matches)
	created := 0
	for _, path := range matches {
		content, err := os.ReadFile(path)
		if err != nil {
			return created, err
		}
		bp, err := im.Import(ctx, strings.TrimSuffix(filepath.Base(path), ".md"), content)
		if err != nil {
			return created, fmt.Errorf("%s: %w", path, err)
		}
		im.log.Info(fmt.Sprintf("Imported %s as page %d (%s)", path, bp.ID, bp.URLPath))
		created++
	}
	return created, nil
}

// Import creates one blog page from a markdown document. name is used as
// the slug when the front matter does not set one.
func (im *importer) Import(ctx context.Context, name string, content []byte) (*data.BlogPage, error) {
	p, err := parsePost(content)
	if err != nil {
		return nil, err
	}
	body, err := im.converter.Convert(p.body)
	if err != nil {
		return nil, err
	}

	bp := &data.BlogPage{
		Page: data.Page{
			Title:       p.Title,
			Slug:        p.Slug,
			ShowInMenus: p.ShowInMenus,
		},
		Body: body,
	}
	if bp.Slug == "" {
		bp.Slug = slugify(name)
	}
	if p.Date != "" {
		if bp.Date, err = data.ParseDate(p.Date); err != nil {
			return nil, err
		}
	} else {
		now := im.now()
		bp.Date = data.NewDate(now.Year(), now.Month(), now.Day())
	}

	// A live post is published by the same insert that creates it.
	if p.Live {
		published := sql.NullTime{Time: im.now().UTC(), Valid: true}
		bp.Live = true
		bp.FirstPublishedAt = published
		bp.LastPublishedAt = published
	}

	parent, err := im.parent(ctx, p.Parent)
	if err != nil {
		return nil, err
	}
	if err := im.pages.CreateBlogPage(ctx, bp, &parent.ID); err != nil {
		return nil, err
	}
	return bp, nil
}

// parent resolves the page a post is created under: the page with the given
// slug, or the first live home page when slug is empty.
func (im *importer) parent(ctx context.Context, slug string) (*data.Page, error) {
	if slug != "" {
		page, err := im.pages.GetPageBySlug(ctx, slug, data.IncludeDrafts)
		if err != nil {
			return nil, fmt.Errorf("parent %q: %w", slug, err)
		}
		return page, nil
	}
	homes, _, err := im.pages.ListPages(ctx, data.PageFilter{Type: data.TypeHomePage, Order: "path", Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(homes) == 0 {
		return nil, errors.New("no live home page to import under")
	}
	return homes[0], nil
}

func slugify(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
