package main

import (
	"context"
	"flag"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"EMart/internal/config"
	"EMart/internal/storefront"
	"EMart/pkg/kit"
)

func main() {
	service := "storefront"
	_ = godotenv.Load()

	configPath := flag.String("config", os.Getenv("EMART_CONFIG"), "path to a config file (yaml, json or toml)")
	flag.Parse()

	src, err := config.NewSource(*configPath)
	if err != nil {
		log, _ := kit.NewLogger(service, "info")
		log.Fatal("load config failed", zap.Error(err))
	}
	cfg := src.Config()

	log, level := kit.NewLogger(service, cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	src.Watch(func(c *config.Config) {
		level.SetLevel(kit.ParseLevel(c.LogLevel))
		log.Info("config reloaded", zap.String("log_level", c.LogLevel))
	}, func(err error) {
		log.Warn("config reload rejected", zap.Error(err))
	})

	ctx := context.Background()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, err := storefront.Build(ctx, cfg, log, reg)
	if err != nil {
		log.Fatal("init storefront failed", zap.Error(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	h := storefront.NewHandler(app.Deps, storefront.HTTPDeps{
		Log:            log,
		Service:        service,
		Registry:       reg,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsToken:   cfg.Metrics.Token,
	})

	if err := kit.RunHTTPServer(ctx, ":"+cfg.Port, h, log); err != nil {
		log.Error("http server stopped", zap.Error(err))
	}
}
