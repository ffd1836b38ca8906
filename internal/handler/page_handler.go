package handler

import (
	"headless-cms/internal/api"
	"headless-cms/internal/logger"
	"headless-cms/internal/middleware"
	"headless-cms/internal/service"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// listingParams are the query parameters the listing endpoint accepts.
var listingParams = map[string]bool{
	"type": true, "limit": true, "offset": true, "order": true,
	"child_of": true, "descendant_of": true, "show_in_menus": true, "slug": true,
}

const defaultLimit = 20

// PageHandler holds the dependencies for the pages endpoint.
type PageHandler struct {
	pageService service.PageServicer
	serializer  *api.Serializer
	limitMax    int
	log         logger.Logger
}

// NewPageHandler creates a new PageHandler with the given dependencies.
func NewPageHandler(ps service.PageServicer, s *api.Serializer, limitMax int, log logger.Logger) *PageHandler {
	if limitMax <= 0 {
		limitMax = defaultLimit
	}
	return &PageHandler{
		pageService: ps,
		serializer:  s,
		limitMax:    limitMax,
		log:         log,
	}
}

// Routes registers the listing, detail and find routes.
func (h *PageHandler) Routes(r chi.Router, wrap func(middleware.AppHandler) http.Handler) {
	r.Method(http.MethodGet, "/", wrap(h.listHandler))
	r.Method(http.MethodGet, "/find/", wrap(h.findHandler))
	r.Method(http.MethodGet, "/{id:[0-9]+}/", wrap(h.detailByIDHandler))
	r.Method(http.MethodGet, "/{slug}/", wrap(h.detailBySlugHandler))
}

// listHandler serves one window of live pages.
func (h *PageHandler) listHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	params := r.URL.Query()
	if appErr := checkParams(params, listingParams); appErr != nil {
		return appErr
	}
	q, appErr := h.parseListQuery(params)
	if appErr != nil {
		return appErr
	}
	list, err := h.pageService.ListPages(r.Context(), q)
	if err != nil {
		return errorFor(err, "Failed to list pages")
	}
	return writeJSON(w, http.StatusOK, h.serializer.Listing(list.Items, list.Total))
}

// detailByIDHandler serves a live page looked up by id.
func (h *PageHandler) detailByIDHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return notFound(err)
	}
	return h.detail(w, r, service.Lookup{ID: &id})
}

// detailBySlugHandler serves a live page looked up by slug.
func (h *PageHandler) detailBySlugHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	return h.detail(w, r, service.Lookup{Slug: chi.URLParam(r, "slug")})
}

func (h *PageHandler) detail(w http.ResponseWriter, r *http.Request, l service.Lookup) *middleware.AppError {
	page, err := h.pageService.GetPage(r.Context(), l)
	if err != nil {
		return errorFor(err, "Failed to get page")
	}
	detail, err := h.serializer.Detail(r.Context(), page)
	if err != nil {
		return errorFor(err, "Failed to serialize page")
	}
	return writeJSON(w, http.StatusOK, detail)
}

// findHandler redirects to the detail URL of the single page matching the
// query.
func (h *PageHandler) findHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	params := r.URL.Query()
	allowed := map[string]bool{"html_path": true}
	for k := range listingParams {
		allowed[k] = true
	}
	if appErr := checkParams(params, allowed); appErr != nil {
		return appErr
	}
	q, appErr := h.parseListQuery(params)
	if appErr != nil {
		return appErr
	}
	page, err := h.pageService.FindPage(r.Context(), service.FindQuery{HTMLPath: params.Get("html_path"), ListQuery: q})
	if err != nil {
		return errorFor(err, "Failed to find page")
	}
	http.Redirect(w, r, h.serializer.DetailURL(page.ID), http.StatusFound)
	return nil
}

func (h *PageHandler) parseListQuery(params url.Values) (service.ListQuery, *middleware.AppError) {
	q := service.ListQuery{
		Type:  params.Get("type"),
		Order: params.Get("order"),
		Slug:  params.Get("slug"),
		Limit: defaultLimit,
	}
	if q.Limit > h.limitMax {
		q.Limit = h.limitMax
	}

	var appErr *middleware.AppError
	if v := params.Get("limit"); v != "" {
		if q.Limit, appErr = positiveInt("limit", v); appErr != nil {
			return q, appErr
		}
		if q.Limit == 0 {
			return q, badRequest("limit must be a positive integer")
		}
		if q.Limit > h.limitMax {
			return q, badRequest("limit cannot be higher than " + strconv.Itoa(h.limitMax))
		}
	}
	if v := params.Get("offset"); v != "" {
		if q.Offset, appErr = positiveInt("offset", v); appErr != nil {
			return q, appErr
		}
	}
	if v := params.Get("child_of"); v != "" {
		id, appErr := pageID("child_of", v)
		if appErr != nil {
			return q, appErr
		}
		q.ChildOf = &id
	}
	if v := params.Get("descendant_of"); v != "" {
		id, appErr := pageID("descendant_of", v)
		if appErr != nil {
			return q, appErr
		}
		q.DescendantOf = &id
	}
	if v := params.Get("show_in_menus"); v != "" {
		show, err := strconv.ParseBool(v)
		if err != nil {
			return q, badRequest("show_in_menus must be a boolean")
		}
		q.ShowInMenus = &show
	}
	return q, nil
}

func positiveInt(name, v string) (int, *middleware.AppError) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest(name + " must be a positive integer")
	}
	return n, nil
}

func pageID(name, v string) (int64, *middleware.AppError) {
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest(name + " must be a positive integer")
	}
	return id, nil
}
