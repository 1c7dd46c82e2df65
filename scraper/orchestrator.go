package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/models"
	"golang.org/x/sync/errgroup"
)

// Target describes what one ingestion run asks the sources for.
type Target struct {
	PropertyID  string
	Origin      models.LatLon
	RadiusKm    float64
	City        string
	Date        time.Time
	Competitors []models.CompetitorHotel
}

// Extractor is one source-specific scraper.
type Extractor interface {
	Name() string
	Fetch(ctx context.Context, target Target) ([]models.RawObservation, error)
}

// Preflighter is implemented by extractors with mandatory configuration.
// Preflight returns an error wrapping ErrSourceDisabled when the source
// cannot run.
type Preflighter interface {
	Preflight() error
}

// Orchestrator runs extractors concurrently and collects every outcome.
type Orchestrator struct {
	cfg        *config.Config
	metrics    *Metrics
	extractors []Extractor
	disabled   map[string]error
}

// NewOrchestrator registers extractors in result order and runs their
// preflight checks once.
func NewOrchestrator(cfg *config.Config, metrics *Metrics, extractors ...Extractor) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		metrics:    metrics,
		extractors: extractors,
		disabled:   make(map[string]error),
	}
	for _, ex := range extractors {
		p, ok := ex.(Preflighter)
		if !ok {
			continue
		}
		if err := p.Preflight(); err != nil {
			slog.Warn("source disabled", slog.String("source", ex.Name()), slog.Any("error", err))
			o.disabled[ex.Name()] = err
		}
	}
	return o
}

// Sources lists registered extractor names in registration order.
func (o *Orchestrator) Sources() []string {
	names := make([]string, len(o.extractors))
	for i, ex := range o.extractors {
		names[i] = ex.Name()
	}
	return names
}

// Run executes the named extractors (all when names is empty) in parallel.
// It never short-circuits: every selected source yields a result, in
// registration order, whatever happened to its siblings.
func (o *Orchestrator) Run(ctx context.Context, target Target, names ...string) []models.SourceResult {
	selected := o.selectExtractors(names)
	results := make([]models.SourceResult, len(selected))

	g, gctx := errgroup.WithContext(ctx)
	for i, ex := range selected {
		g.Go(func() error {
			results[i] = o.runOne(gctx, ex, target)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) selectExtractors(names []string) []Extractor {
	if len(names) == 0 {
		return o.extractors
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Extractor
	for _, ex := range o.extractors {
		if want[ex.Name()] {
			out = append(out, ex)
		}
	}
	return out
}

type fetchOutcome struct {
	obs []models.RawObservation
	err error
}

func (o *Orchestrator) runOne(ctx context.Context, ex Extractor, target Target) models.SourceResult {
	name := ex.Name()
	result := models.SourceResult{Source: name}
	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		o.metrics.ObserveSource(name, string(result.Status), result.Duration, result.Count)
	}()

	if !o.cfg.Sources.Enabled(name) {
		result.Status = models.SourceSkipped
		result.Reason = "disabled by configuration"
		return result
	}
	if err, ok := o.disabled[name]; ok {
		result.Status = models.SourceDisabled
		result.Reason = err.Error()
		result.ErrorType = ErrorTypeLabel(err)
		return result
	}

	sctx, cancel := context.WithTimeout(ctx, o.cfg.TimeoutFor(name))
	defer cancel()

	done := make(chan fetchOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchOutcome{err: fmt.Errorf("extractor panic: %v", r)}
			}
		}()
		obs, err := ex.Fetch(sctx, target)
		done <- fetchOutcome{obs: obs, err: err}
	}()

	var out fetchOutcome
	select {
	case out = <-done:
	case <-sctx.Done():
		out = fetchOutcome{err: ErrTimeout{Err: sctx.Err()}}
	}

	switch {
	case out.err == nil:
		result.Status = models.SourceOK
		result.Observations = out.obs
		result.Count = len(out.obs)
	case errors.Is(out.err, ErrSourceDisabled):
		result.Status = models.SourceDisabled
		result.Reason = out.err.Error()
		result.ErrorType = ErrorTypeLabel(out.err)
	case errors.Is(out.err, context.DeadlineExceeded) || ErrorTypeLabel(out.err) == "timeout":
		result.Status = models.SourceTimeout
		result.Reason = out.err.Error()
		result.ErrorType = "timeout"
	default:
		result.Status = models.SourceFailed
		result.Reason = out.err.Error()
		result.ErrorType = ErrorTypeLabel(out.err)
	}

	if out.err != nil {
		slog.Warn("source degraded",
			slog.String("source", name),
			slog.String("status", string(result.Status)),
			slog.String("category", result.ErrorType),
			slog.Any("error", out.err),
		)
	} else {
		slog.Info("source finished", slog.String("source", name), slog.Int("observations", result.Count))
	}
	return result
}
