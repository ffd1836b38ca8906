package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Endpoint names under the API prefix.
const (
	PagesEndpoint   = "pages"
	PreviewEndpoint = "page_preview"
)

// NewRouter creates and configures a new chi router.
func NewRouter(apiRouter *APIRouter, seoHandler *SeoHandler) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, apiRouter.Path(PagesEndpoint), http.StatusFound)
	})

	// SEO routes
	r.Get("/robots.txt", seoHandler.robotsHandler)
	r.Get("/sitemap.xml", seoHandler.sitemapHandler)

	apiRouter.Mount(r)

	return r
}
