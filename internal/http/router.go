package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodySize    int64
}

// NewRouter wires the cart and product endpoints under /api plus the health
// check at /health.
func NewRouter(cart CartService, products ProductCatalog, health http.Handler, log *zap.Logger, cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cart, cfg.RequestTimeout)
	productHandler := NewProductHandler(products, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(LimitBody(cfg.MaxBodySize))

	if health != nil {
		r.Method(http.MethodGet, "/health", health)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Post("/add", cartHandler.AddItem)
			r.Delete("/user/{userId}", cartHandler.ClearCart)
			r.Get("/{id}", cartHandler.GetCart)
			r.Get("/{id}/summary", cartHandler.GetSummary)
			r.Put("/{id}", cartHandler.UpdateQuantity)
			r.Delete("/{id}", cartHandler.RemoveItem)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Get("/{slug}", productHandler.GetBySlug)
		})
	})

	return otelhttp.NewHandler(r, "cart-service",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}))
}
