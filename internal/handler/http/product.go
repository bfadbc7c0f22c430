package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/validator"
)

// ProductHandler serves the shopper-facing product endpoints.
type ProductHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc *service.CatalogService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{service: svc, logger: logger}
}

// UpdateProductQuery holds the optional PATCH parameters. Absent parameters
// leave the stored value unchanged.
type UpdateProductQuery struct {
	Image  *string  `query:"image" validate:"omitempty,max=2048"`
	Price  *float64 `query:"price" validate:"omitempty,gte=0"`
	Stock  *int64   `query:"stock" validate:"omitempty,gte=0"`
	Sales  *int64   `query:"sales" validate:"omitempty,gte=0"`
	Rating *float64 `query:"rating" validate:"omitempty,gte=0"`
}

// Patch converts the query into a domain patch.
func (q UpdateProductQuery) Patch() domain.Patch {
	return domain.Patch{Image: q.Image, Price: q.Price, Stock: q.Stock, Sales: q.Sales, Rating: q.Rating}
}

// GetData handles GET /product/{pid}/data.
func (h *ProductHandler) GetData(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		writeLookupError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p.Data())
}

// Search handles GET /product?search=&category=.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := domain.SearchQuery{
		Text:     r.URL.Query().Get("search"),
		Category: r.URL.Query().Get("category"),
	}

	hits, err := h.service.Search(r.Context(), query)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if hits == nil {
		hits = []domain.Product{}
	}
	httputil.WriteJSON(w, http.StatusOK, hits)
}

// View handles GET /product/view?page=N.
func (h *ProductHandler) View(w http.ResponseWriter, r *http.Request) {
	params, err := pagination.FromRequest(r, domain.PageSize)
	if err != nil {
		httputil.WriteInvalidParameter(w, "page", "page must be a positive integer")
		return
	}

	products, err := h.service.SeekPage(r.Context(), params.Page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	views := make([]domain.ProductView, 0, len(products))
	for i := range products {
		views = append(views, products[i].View())
	}
	httputil.WriteJSON(w, http.StatusOK, views)
}

// Update handles PATCH /product/{pid}?image=&price=&stock=&sales=&rating=.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	qp := &queryParser{r: r}
	q := UpdateProductQuery{
		Image:  qp.optString("image"),
		Price:  qp.optFloat("price"),
		Stock:  qp.optInt("stock"),
		Sales:  qp.optInt("sales"),
		Rating: qp.optFloat("rating"),
	}
	if qp.writeErr(w) {
		return
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.UpdatePartial(r.Context(), chi.URLParam(r, "pid"), q.Patch())
	if err != nil {
		writeLookupError(w, r, err, h.logger)
		return
	}
	writeMutation(w, res)
}
