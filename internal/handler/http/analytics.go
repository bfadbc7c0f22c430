package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
)

// AnalyticsHandler serves seller analytics.
type AnalyticsHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewAnalyticsHandler creates a new analytics HTTP handler.
func NewAnalyticsHandler(svc *service.CatalogService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: svc, logger: logger}
}

// Get handles GET /analytics/{pid}.
func (h *AnalyticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		writeLookupError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.Analytics())
}

// IncrementClicks handles POST /analytics/{pid}/clicks/increment.
func (h *AnalyticsHandler) IncrementClicks(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.IncrementClicks(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		writeLookupError(w, r, err, h.logger)
		return
	}
	writeMutation(w, res)
}
