package handler

import (
	"encoding/xml"
	"fmt"
	"headless-cms/internal/api"
	"headless-cms/internal/service"
	"net/http"
)

// SeoHandler holds dependencies for SEO-related handlers.
type SeoHandler struct {
	pageService service.PageServicer
	serializer  *api.Serializer
	baseURL     string
}

// NewSeoHandler creates a new SeoHandler. baseURL is the public origin the
// sitemap is served from.
func NewSeoHandler(ps service.PageServicer, s *api.Serializer, baseURL string) *SeoHandler {
	return &SeoHandler{pageService: ps, serializer: s, baseURL: baseURL}
}

// robotsHandler serves a static robots.txt file.
func (h *SeoHandler) robotsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "User-agent: *")
	fmt.Fprintln(w, "Allow: /")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Sitemap: %s/sitemap.xml\n", h.baseURL)
}

const sitemapDateFormat = "2006-01-02"

type sitemapURL struct {
	XMLName xml.Name `xml:"url"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

// sitemapHandler generates and serves a sitemap of every live page.
func (h *SeoHandler) sitemapHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.pageService.ListPages(r.Context(), service.ListQuery{Unbounded: true})
	if err != nil {
		http.Error(w, "Failed to retrieve pages for sitemap", http.StatusInternalServerError)
		return
	}

	sitemap := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  make([]sitemapURL, 0, len(list.Items)),
	}

	for _, page := range list.Items {
		loc := h.serializer.HTMLURL(page)
		if loc == nil {
			continue
		}
		u := sitemapURL{Loc: *loc}
		if page.LastPublishedAt.Valid {
			u.LastMod = page.LastPublishedAt.Time.Format(sitemapDateFormat)
		}
		sitemap.URLs = append(sitemap.URLs, u)
	}

	w.Header().Set("Content-Type", "application/xml")
	w.Write([]byte(xml.Header))
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	if err := encoder.Encode(sitemap); err != nil {
		http.Error(w, "Failed to generate sitemap XML", http.StatusInternalServerError)
		return
	}
}
