// Package service runs the two top-level operations: ingesting market
// signals around a property and recommending nightly prices from them.
package service

import (
	"log/slog"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/pipeline"
	"github.com/aluiziolira/go-rate-signals/pricing"
	"github.com/aluiziolira/go-rate-signals/scraper"
	"github.com/aluiziolira/go-rate-signals/store"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Service wires extraction, persistence and pricing together.
type Service struct {
	cfg          *config.Config
	store        store.Store
	orchestrator *scraper.Orchestrator
	engine       *pricing.Engine
	aggregator   *pricing.Aggregator
	upserter     *pipeline.Upserter
	validate     *validator.Validate

	now   func() time.Time
	newID func() string
}

// New builds a service. metrics may be nil.
func New(cfg *config.Config, st store.Store, orch *scraper.Orchestrator, metrics *scraper.Metrics) *Service {
	return &Service{
		cfg:          cfg,
		store:        st,
		orchestrator: orch,
		engine:       pricing.NewEngine(cfg.Pricing),
		aggregator:   pricing.NewAggregator(st, cfg.Pricing.MarketAverageFallback, cfg.StaleLookbackDays),
		upserter:     pipeline.NewUpserter(cfg.ChunkSize, metrics),
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Store exposes the backing store, e.g. for seeding property rates.
func (s *Service) Store() store.Store {
	return s.store
}

func logDuration(op string, start time.Time, attrs ...any) {
	attrs = append(attrs, slog.Duration("duration", time.Since(start)))
	slog.Info(op+" finished", attrs...)
}
