package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/scraper"
	"github.com/aluiziolira/go-rate-signals/service"
	"github.com/aluiziolira/go-rate-signals/sources"
	"github.com/aluiziolira/go-rate-signals/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app holds the long-lived dependencies of one command invocation.
type app struct {
	cfg     *config.Config
	metrics *scraper.Metrics
	store   store.Store
	svc     *service.Service
	closers []func() error
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: scraper.NewMetrics()}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = st
	a.closers = append(a.closers, st.Close)

	fetcher, err := scraper.NewFetcher(cfg, a.metrics)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialising fetcher: %w", err)
	}

	cache, closeCache, err := openCache(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	if closeCache != nil {
		a.closers = append(a.closers, closeCache)
	}

	var renderer scraper.Renderer
	if cfg.Booking.RenderJS {
		renderer = &scraper.ChromeRenderer{UserAgent: cfg.UserAgent, ExecPath: cfg.Booking.ChromePath}
	}

	orch := scraper.NewOrchestrator(cfg, a.metrics,
		sources.NewAmadeus(cfg, fetcher, cache),
		sources.NewSongkick(cfg, fetcher),
		sources.NewEventbrite(cfg, fetcher),
		sources.NewBooking(cfg, fetcher, renderer),
	)
	a.svc = service.New(cfg, st, orch, a.metrics)
	return a, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		slog.Info("using in-memory store")
		return store.NewMemory(), nil
	}
	pg, err := store.OpenPostgres(cfg.DatabaseURL, cfg.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	slog.Info("using postgres store")
	return pg, nil
}

// openCache prefers Redis when configured so directory lookups survive
// restarts; otherwise an in-process LRU is used.
func openCache(cfg *config.Config) (sources.Cache, func() error, error) {
	if cfg.RedisAddr == "" {
		return store.NewLRUCache(cfg.CacheSize, cfg.CacheTTL), nil, nil
	}
	client, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}
	cache := store.NewRedisCache(client, "ratesignals:")
	slog.Info("using redis cache", slog.String("addr", cfg.RedisAddr))
	return cache, cache.Close, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Error("closing resource", slog.Any("error", err))
		}
	}
	a.closers = nil
}

// startMetricsServer serves the registry on cfg.MetricsAddr until the
// returned stop function is called. It is a no-op without an address.
func (a *app) startMetricsServer() func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	metricsServer := &http.Server{
		Addr:    a.cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(a.metrics.Registry, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", a.cfg.MetricsAddr))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", slog.Any("error", err))
		}
	}
}
