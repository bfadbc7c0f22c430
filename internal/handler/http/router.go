package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterDeps collects what the router serves.
type RouterDeps struct {
	Catalog *service.CatalogService
	Cart    CartForwarder
	Outbox  OutboxStatter
	Reindex service.ReindexOptions
	Health  *health.Handler
	CORS    middleware.CORSConfig
	Service string
	Logger  *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered. The
// API is served both at the root and under /api.
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(deps.CORS))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger, "/health/live", "/health/ready", "/metrics"))
	r.Use(middleware.PrometheusMetrics(deps.Service))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))

	r.NotFound(notFound)
	r.MethodNotAllowed(methodNotAllowed)

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	products := NewProductHandler(deps.Catalog, logger)
	analytics := NewAnalyticsHandler(deps.Catalog, logger)
	profile := NewProfileHandler(deps.Catalog, logger)
	frontend := NewFrontendHandler(deps.Cart, logger)
	admin := NewAdminHandler(deps.Catalog, deps.Outbox, deps.Reindex, logger)

	api := func(r chi.Router) {
		r.Route("/product", func(r chi.Router) {
			r.Get("/", products.Search)
			r.Get("/view", products.View)
			r.Get("/{pid}/data", products.GetData)
			r.Patch("/{pid}", products.Update)
		})

		r.Route("/analytics/{pid}", func(r chi.Router) {
			r.Get("/", analytics.Get)
			r.Post("/clicks/increment", analytics.IncrementClicks)
		})

		r.Route("/profile", func(r chi.Router) {
			r.Get("/{sid}/products", profile.SellerProducts)
			r.Post("/seller/add/product", profile.AddProduct)
			r.Delete("/seller/remove/product/{pid}", profile.RemoveProduct)
		})

		r.Route("/frontend", func(r chi.Router) {
			r.Use(ContentTypeJSON)

			r.Post("/addtocart/{uid}", frontend.AddToCart)
			r.Post("/addtowishlist/{uid}", frontend.AddToWishlist)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/reindex", admin.Reindex)
			r.Get("/outbox", admin.OutboxStats)
		})
	}

	r.Group(api)
	r.Route("/api", api)

	return r
}
