package storefront

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"MiniCart/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string

	// MutationLimit caps cart writes per client IP per minute; 0 disables it.
	MutationLimit int
}

const limitWindow = 60 * time.Second

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}

	r := chi.NewRouter()

	setupMiddleware(r, deps)
	setupMetrics(r, s, deps)
	setupRoutes(r, s, deps)

	return r
}

func setupMiddleware(r *chi.Mux, deps HTTPDeps) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))
}

func setupMetrics(r *chi.Mux, s *Server, deps HTTPDeps) {
	if deps.Registry == nil {
		if deps.MetricsEnabled && deps.Log != nil {
			deps.Log.Warn("metrics enabled but Registry is nil")
		}
		return
	}

	metrics := kit.NewMetrics(deps.Registry, "storefront")
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))
	registerStateMetrics(deps.Registry, s.Cart, s.Catalog)

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func setupRoutes(r *chi.Mux, s *Server, deps HTTPDeps) {
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)

	r.Get("/products", s.listProducts)
	r.Get("/categories", s.listCategories)

	r.Route("/cart", func(cr chi.Router) {
		cr.Get("/", s.getCart)
		cr.Get("/items/{id}", s.getQuantity)

		cr.Group(func(mr chi.Router) {
			if deps.MutationLimit > 0 {
				mr.Use(kit.NewIPRateLimiter(deps.MutationLimit, limitWindow).Middleware)
			}

			mr.Post("/items/{id}/increase", s.increase)
			mr.Post("/items/{id}/decrease", s.decrease)
			mr.Post("/items/{id}/adjust", s.adjust)
			mr.Put("/items/{id}", s.setQuantity)
			mr.Delete("/items/{id}", s.remove)
			mr.Post("/open", s.openCart)
			mr.Post("/close", s.closeCart)
		})
	})
}
