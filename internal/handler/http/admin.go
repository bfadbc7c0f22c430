package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/logger"
)

// OutboxStatter reports the outbox backlog.
type OutboxStatter interface {
	Stats(ctx context.Context) (domain.OutboxStats, error)
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	service *service.CatalogService
	outbox  OutboxStatter
	reindex service.ReindexOptions
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler. outbox may be nil when
// the service runs without one.
func NewAdminHandler(svc *service.CatalogService, outbox OutboxStatter, opts service.ReindexOptions, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, outbox: outbox, reindex: opts, logger: logger}
}

// Reindex handles POST /admin/reindex. The reindex runs in the background
// and outlives the request; 409 is returned while one is already running.
func (h *AdminHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	if h.service.Reindexing() {
		httputil.WriteError(w, r, apperrors.Conflict("a reindex is already running"), h.logger)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	go func() {
		if _, err := h.service.Reindex(ctx, h.reindex); err != nil {
			logger.WithContext(ctx, h.logger).ErrorContext(ctx, "background reindex failed",
				slog.String("error", err.Error()),
			)
		}
	}()

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "reindex started"})
}

// OutboxStats handles GET /admin/outbox.
func (h *AdminHandler) OutboxStats(w http.ResponseWriter, r *http.Request) {
	if h.outbox == nil {
		httputil.WriteJSON(w, http.StatusOK, domain.OutboxStats{})
		return
	}

	stats, err := h.outbox.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
