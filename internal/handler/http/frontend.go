package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// CartForwarder relays cart and wishlist additions to the cart service.
type CartForwarder interface {
	AddToCart(ctx context.Context, uid string, item domain.CartData) error
	AddToWishlist(ctx context.Context, uid string, item domain.CartData) error
}

// FrontendHandler serves the storefront's cart and wishlist buttons.
type FrontendHandler struct {
	cart   CartForwarder
	logger *slog.Logger
}

// NewFrontendHandler creates a new frontend HTTP handler.
func NewFrontendHandler(cart CartForwarder, logger *slog.Logger) *FrontendHandler {
	return &FrontendHandler{cart: cart, logger: logger}
}

// AddToCart handles POST /frontend/addtocart/{uid}.
func (h *FrontendHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, "cart", h.cart.AddToCart)
}

// AddToWishlist handles POST /frontend/addtowishlist/{uid}.
func (h *FrontendHandler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, "wishlist", h.cart.AddToWishlist)
}

func (h *FrontendHandler) forward(w http.ResponseWriter, r *http.Request, target string, send func(context.Context, string, domain.CartData) error) {
	var item domain.CartData
	if err := validator.DecodeAndValidate(r, &item); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	uid := chi.URLParam(r, "uid")
	if err := send(r.Context(), uid, item); err != nil {
		h.logger.ErrorContext(r.Context(), "cart service request failed",
			slog.String("target", target),
			slog.String("uid", uid),
			slog.String("pid", item.ID),
			slog.String("error", err.Error()),
		)
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "BAD_GATEWAY", Message: "cart service request failed"},
		})
		return
	}
	httputil.WriteStatus(w, http.StatusOK)
}
