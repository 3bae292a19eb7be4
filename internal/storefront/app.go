package storefront

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"EMart/internal/cart"
	"EMart/internal/catalog"
	"EMart/internal/checkout"
	"EMart/internal/storage"
	"EMart/internal/wishlist"
	"EMart/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

// Pinger is a backend /readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the constructed domain components served over HTTP.
type Deps struct {
	Catalog        *catalog.Catalog
	CatalogLatency time.Duration
	// CatalogDB is set when the catalog was read from Postgres.
	CatalogDB      Pinger
	Storage        storage.Storage
	Cart           *cart.Cart
	Wishlist       *wishlist.Wishlist
	Checkout       *checkout.Service
	Limiter        *kit.IPRateLimiter
}

const readyTimeout = 1 * time.Second

func NewHandler(deps Deps, httpDeps HTTPDeps) http.Handler {
	log := httpDeps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	setupMiddleware(r, log)
	metrics := setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(readyChecks(deps), log))

	cs := &catalog.Server{Catalog: deps.Catalog, Log: log, Latency: deps.CatalogLatency}
	r.Mount("/", cs.Routes())

	r.Mount("/cart", (&cart.Server{
		Cart:    deps.Cart,
		Catalog: deps.Catalog,
		Log:     log,
		Metrics: metrics,
	}).Routes())
	r.Mount("/wishlist", (&wishlist.Server{
		Wishlist: deps.Wishlist,
		Catalog:  deps.Catalog,
		Cart:     deps.Cart,
		Log:      log,
		Metrics:  metrics,
	}).Routes())

	co := &checkout.Server{Service: deps.Checkout, Log: log, Limiter: deps.Limiter}
	r.Mount("/checkout", co.CheckoutRoutes())
	r.Mount("/orders", co.OrderRoutes())

	return r
}

func setupMiddleware(r *chi.Mux, log *zap.Logger) {
	r.Use(chimw.RequestID)
	r.Use(kit.Logging(log))
	r.Use(kit.Recoverer(log))
}

// setupMetrics returns nil when no registry is configured.
func setupMetrics(r *chi.Mux, deps HTTPDeps) *kit.Metrics {
	if deps.Registry == nil {
		return nil
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.RouteLabel))

	if deps.MetricsEnabled {
		r.With(kit.MetricsAuth(deps.MetricsToken)).
			Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}
	return metrics
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type readyCheck struct {
	name string
	p    Pinger
}

func readyChecks(deps Deps) []readyCheck {
	var checks []readyCheck
	if deps.Storage != nil {
		checks = append(checks, readyCheck{"storage", deps.Storage})
	}
	if deps.Checkout != nil && deps.Checkout.Store != nil {
		checks = append(checks, readyCheck{"orders", deps.Checkout.Store})
	}
	if deps.CatalogDB != nil {
		checks = append(checks, readyCheck{"catalog", deps.CatalogDB})
	}
	return checks
}

func readyz(checks []readyCheck, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		for _, c := range checks {
			if err := c.p.Ping(ctx); err != nil {
				log.Warn("readyz failed: "+c.name, zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, c.name+" not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
