package storefront

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"EMart/internal/cart"
	"EMart/internal/catalog"
	"EMart/internal/checkout"
	"EMart/internal/config"
	"EMart/internal/storage"
	"EMart/internal/wishlist"
	"EMart/pkg/kit"
)

const dbPingTimeout = 3 * time.Second

// App holds every long-lived component built from a Config.
type App struct {
	Deps    Deps
	closers []io.Closer
}

// Build constructs the catalog, durable storage and both state containers.
// The containers restore their persisted state before Build returns.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (*App, error) {
	app := &App{}

	var db *sql.DB
	if cfg.NeedsDatabase() {
		var err error
		if db, err = openDB(ctx, cfg.DatabaseURL); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db)
	}

	cat, catDB, err := loadCatalog(ctx, cfg.Catalog, db)
	if err != nil {
		return nil, app.fail(err)
	}
	log.Info("catalog loaded",
		zap.Int("products", cat.Len()),
		zap.Int("categories", len(cat.Categories())),
	)

	store, err := app.openStorage(ctx, cfg.Storage, db)
	if err != nil {
		return nil, app.fail(err)
	}
	if reg != nil {
		store = storage.Instrument(store, reg)
	}

	c, err := cart.New(ctx, store, log.Named("cart"))
	if err != nil {
		return nil, app.fail(fmt.Errorf("restore cart: %w", err))
	}
	wl, err := wishlist.New(ctx, store, log.Named("wishlist"))
	if err != nil {
		return nil, app.fail(fmt.Errorf("restore wishlist: %w", err))
	}

	var orders checkout.Store = checkout.NewMemStore()
	if cfg.Orders.Backend == config.BackendPostgres {
		orders = checkout.NewPostgresStore(db)
	}

	var pub checkout.Publisher = checkout.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := checkout.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		app.closers = append(app.closers, kp)
		pub = kp
	}

	app.Deps = Deps{
		Catalog:        cat,
		CatalogLatency: cfg.Catalog.Latency,
		CatalogDB:      catDB,
		Storage:        store,
		Cart:           c,
		Wishlist:       wl,
		Checkout: &checkout.Service{
			Cart:      c,
			Store:     orders,
			Publisher: pub,
			Log:       log.Named("checkout"),
		},
		Limiter: kit.NewIPRateLimiter(cfg.Checkout.RateLimit, cfg.Checkout.RateWindow),
	}
	return app, nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (a *App) fail(err error) error {
	return errors.Join(err, a.Close())
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, dbPingTimeout)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// loadCatalog also returns the Postgres source, if used, for readiness checks.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, db *sql.DB) (*catalog.Catalog, Pinger, error) {
	var (
		src  catalog.Source
		ping Pinger
	)
	switch cfg.Source {
	case config.CatalogDir:
		src = catalog.NewDirSource(cfg.Dir)
	case config.CatalogPostgres:
		pg := catalog.NewPostgresSource(db, catalog.NewBundledSource())
		src, ping = pg, pg
	case config.CatalogHTTP:
		src = catalog.NewHTTPSource(cfg.URL)
	default:
		src = catalog.NewBundledSource()
	}

	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	return cat, ping, nil
}

func (a *App) openStorage(ctx context.Context, cfg config.StorageConfig, db *sql.DB) (storage.Storage, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemStorage(cfg.QuotaBytes), nil
	case config.BackendRedis:
		rs, err := storage.NewRedisStorage(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs)
		return rs, nil
	case config.BackendPostgres:
		return storage.NewPostgresStorage(db), nil
	default:
		return storage.NewFileStorage(cfg.Dir)
	}
}
