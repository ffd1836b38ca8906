package handler

import (
	"headless-cms/internal/api"
	"headless-cms/internal/middleware"
	"headless-cms/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
)

var previewParams = map[string]bool{"content_type": true, "token": true}

// PreviewHandler serves unpublished page snapshots to holders of a preview
// token.
type PreviewHandler struct {
	pageService service.PageServicer
	serializer  *api.Serializer
}

// NewPreviewHandler creates a new PreviewHandler.
func NewPreviewHandler(ps service.PageServicer, s *api.Serializer) *PreviewHandler {
	return &PreviewHandler{pageService: ps, serializer: s}
}

// Routes registers the preview route.
func (h *PreviewHandler) Routes(r chi.Router, wrap func(middleware.AppHandler) http.Handler) {
	r.Method(http.MethodGet, "/", wrap(h.previewHandler))
}

// previewHandler renders the snapshot addressed by content_type and token.
func (h *PreviewHandler) previewHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	params := r.URL.Query()
	if appErr := checkParams(params, previewParams); appErr != nil {
		return appErr
	}
	page, err := h.pageService.PreviewPage(r.Context(), params.Get("content_type"), params.Get("token"))
	if err != nil {
		return errorFor(err, "Failed to load preview")
	}
	detail, err := h.serializer.Detail(r.Context(), page)
	if err != nil {
		return errorFor(err, "Failed to serialize preview")
	}
	w.Header().Set("Cache-Control", "no-store")
	return writeJSON(w, http.StatusOK, detail)
}
