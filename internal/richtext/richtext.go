// Package richtext turns stored rich-text source into the HTML served by
// the API: internal links are expanded, markup is reduced to the editor's
// feature set and punctuation is smartened.
package richtext

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// LinkResolver maps an internal page id to the URL of the live page.
type LinkResolver interface {
	PageURL(ctx context.Context, id int64) (string, bool)
}

// Renderer renders paragraph sources.
type Renderer struct {
	policy *bluemonday.Policy
	links  LinkResolver
}

// NewRenderer creates a Renderer. links may be nil, in which case every
// internal page link loses its href.
func NewRenderer(links LinkResolver) *Renderer {
	return &Renderer{policy: editorPolicy(), links: links}
}

// editorPolicy allows what the paragraph editor can produce: bold, italic
// and links.
func editorPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "b", "strong", "i", "em")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(true)
	p.RequireParseableURLs(true)
	return p
}

// Render converts rich-text source into smartened API HTML.
func (r *Renderer) Render(ctx context.Context, source string) string {
	expanded := r.expandLinks(ctx, source)
	clean := r.policy.Sanitize(expanded)
	return Smarten(CleanEntities(clean))
}

var quoteEntities = strings.NewReplacer(
	"&#x27;", "'",
	"&#39;", "'",
	"&quot;", `"`,
	"&#34;", `"`,
)

// CleanEntities decodes entity-encoded quotes and apostrophes anywhere in
// s, attribute values included.
func CleanEntities(s string) string {
	return quoteEntities.Replace(s)
}

// expandLinks rewrites <a linktype="page" id="N"> into a plain link to the
// page. Links of any other type lose their href.
func (r *Renderer) expandLinks(ctx context.Context, source string) string {
	if !strings.Contains(source, "linktype") {
		return source
	}
	z := html.NewTokenizer(strings.NewReader(source))
	var out bytes.Buffer
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken {
			out.Write(z.Raw())
			continue
		}
		tok := z.Token()
		if tok.Data != "a" || !hasAttr(tok, "linktype") {
			out.WriteString(tok.String())
			continue
		}
		out.WriteString(r.rewriteLink(ctx, tok).String())
	}
	return out.String()
}

func (r *Renderer) rewriteLink(ctx context.Context, tok html.Token) html.Token {
	var linkType, rawID string
	for _, a := range tok.Attr {
		switch a.Key {
		case "linktype":
			linkType = a.Val
		case "id":
			rawID = a.Val
		}
	}

	attrs := make([]html.Attribute, 0, len(tok.Attr))
	for _, a := range tok.Attr {
		if a.Key != "linktype" && a.Key != "id" && a.Key != "href" {
			attrs = append(attrs, a)
		}
	}
	if href, ok := r.pageHref(ctx, linkType, rawID); ok {
		attrs = append([]html.Attribute{{Key: "href", Val: href}}, attrs...)
	}
	tok.Attr = attrs
	return tok
}

func (r *Renderer) pageHref(ctx context.Context, linkType, rawID string) (string, bool) {
	if linkType != "page" || r.links == nil {
		return "", false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", false
	}
	return r.links.PageURL(ctx, id)
}

func hasAttr(tok html.Token, key string) bool {
	for _, a := range tok.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
