package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/httputil"
	"github.com/utafrali/storefront/pkg/validator"
)

// ProfileHandler serves the seller profile endpoints.
type ProfileHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(svc *service.CatalogService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: svc, logger: logger}
}

// AddProductQuery holds the listing parameters of a new product.
type AddProductQuery struct {
	PID         string  `query:"pid" validate:"required,max=64"`
	SID         string  `query:"sid" validate:"required,max=64"`
	Name        string  `query:"name" validate:"required,max=255"`
	Description string  `query:"description" validate:"max=4096"`
	Image       string  `query:"image" validate:"max=2048"`
	Category    string  `query:"category" validate:"required,max=128"`
	Price       float64 `query:"price" validate:"gte=0"`
	Stock       int64   `query:"stock" validate:"gte=0"`
}

// Product converts the query into a new product with zeroed counters.
func (q AddProductQuery) Product() domain.Product {
	return domain.Product{
		PID:         q.PID,
		SID:         q.SID,
		Name:        q.Name,
		Description: q.Description,
		Image:       q.Image,
		Category:    q.Category,
		Price:       q.Price,
		Stock:       q.Stock,
	}
}

// SellerProducts handles GET /profile/{sid}/products. A seller without
// listings is answered with 204.
func (h *ProfileHandler) SellerProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.SeekBySeller(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	if len(products) == 0 {
		httputil.WriteStatus(w, http.StatusNoContent)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, products)
}

// addProductParams must all be present. Description and image may be empty.
var addProductParams = []string{"pid", "sid", "name", "description", "image", "category", "price", "stock"}

// AddProduct handles POST /profile/seller/add/product. A duplicate pid is
// answered with 409.
func (h *ProfileHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	qp := &queryParser{r: r}
	for _, name := range addProductParams {
		if !qp.has(name) {
			httputil.WriteInvalidParameter(w, name, name+" is required")
			return
		}
	}
	q := AddProductQuery{
		PID:         qp.str("pid"),
		SID:         qp.str("sid"),
		Name:        qp.str("name"),
		Description: qp.str("description"),
		Image:       qp.str("image"),
		Category:    qp.str("category"),
	}
	if v := qp.optFloat("price"); v != nil {
		q.Price = *v
	}
	if v := qp.optInt("stock"); v != nil {
		q.Stock = *v
	}
	if qp.writeErr(w) {
		return
	}
	if err := validator.Validate(q); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	res, err := h.service.List(r.Context(), q.Product())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	writeMutation(w, res)
}

// RemoveProduct handles DELETE /profile/seller/remove/product/{pid}.
func (h *ProfileHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Delist(r.Context(), chi.URLParam(r, "pid"))
	if err != nil {
		writeLookupError(w, r, err, h.logger)
		return
	}
	writeMutation(w, res)
}
