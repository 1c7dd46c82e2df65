package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/geo"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/pipeline"
	"github.com/aluiziolira/go-rate-signals/scraper"
)

// RunIngestion gathers competitors and events around the property, then
// prices the competitors on the requested night. Source and persistence
// failures degrade the result; only an invalid request returns an error.
func (s *Service) RunIngestion(ctx context.Context, req IngestionRequest) (models.IngestionResult, error) {
	if err := s.check(req); err != nil {
		return models.IngestionResult{}, err
	}

	start := time.Now()
	res := models.IngestionResult{
		RunID:      s.newID(),
		PropertyID: req.PropertyID,
		StartTime:  s.now().UTC(),
		Dropped:    make(map[string]int),
	}
	target := s.target(req)
	skip := make(map[string]bool, len(req.Skip))
	for _, name := range req.Skip {
		skip[name] = true
	}
	normalizer := pipeline.NewNormalizer(req.PropertyID)

	slog.Info("ingestion started",
		slog.String("run_id", res.RunID),
		slog.String("property_id", req.PropertyID),
		slog.String("city", target.City),
		slog.Float64("radius_km", target.RadiusKm),
	)

	// Directory and event sources are independent of each other.
	first := s.runPhase(ctx, target, skip, config.SourceAmadeus, config.SourceSongkick, config.SourceEventbrite)
	res.Sources = append(res.Sources, first...)
	found := normalizer.Normalize(observations(first))
	mergeDropped(res.Dropped, found.Dropped)

	competitors := s.upserter.Competitors(ctx, s.store, found.Competitors)
	res.CompetitorsIngested = competitors.Written
	mergeInvalid(res.Dropped, competitors)

	purged, err := s.store.DeleteEventsBefore(ctx, req.PropertyID, models.Day(s.now()))
	if err != nil {
		slog.Warn("purging past events failed", slog.String("property_id", req.PropertyID), slog.Any("error", err))
	}
	res.EventsPurged = purged

	events := s.upserter.Events(ctx, s.store, found.Events)
	res.EventsIngested = events.Written
	mergeInvalid(res.Dropped, events)

	// Hotel prices need the competitor list the first phase produced.
	target.Competitors = s.priceTargets(ctx, found.Competitors, target.City)
	second := s.runPhase(ctx, target, skip, config.SourceBooking)
	res.Sources = append(res.Sources, second...)
	priced := normalizer.Normalize(observations(second))
	mergeDropped(res.Dropped, priced.Dropped)

	prices := s.upserter.Prices(ctx, s.store, priced.Prices)
	res.PricesIngested = prices.Written
	mergeInvalid(res.Dropped, prices)

	res.EndTime = s.now().UTC()
	logDuration("ingestion", start,
		slog.String("run_id", res.RunID),
		slog.Int("competitors", res.CompetitorsIngested),
		slog.Int("events", res.EventsIngested),
		slog.Int("prices", res.PricesIngested),
		slog.Int64("events_purged", res.EventsPurged),
		slog.Any("dropped", res.Dropped),
	)
	return res, nil
}

func (s *Service) target(req IngestionRequest) scraper.Target {
	origin := models.LatLon{Latitude: req.Latitude, Longitude: req.Longitude}
	t := scraper.Target{
		PropertyID: req.PropertyID,
		Origin:     origin,
		RadiusKm:   req.RadiusKm,
		City:       req.City,
		Date:       models.Day(s.now()),
	}
	if t.RadiusKm == 0 {
		t.RadiusKm = s.cfg.RadiusKm
	}
	if req.Date != "" {
		if d, err := time.Parse(models.DateLayout, req.Date); err == nil {
			t.Date = d
		}
	}
	if t.City == "" {
		if area, ok := geo.NearestMetro(origin, s.cfg.MetroAreas, s.cfg.MetroMatchKm); ok {
			t.City = area.Name
		}
	}
	return t
}

// runPhase runs the named sources concurrently and reports one result per
// name, in the order given. Names the request skipped are reported without
// being run.
func (s *Service) runPhase(ctx context.Context, target scraper.Target, skip map[string]bool, names ...string) []models.SourceResult {
	var run []string
	for _, name := range names {
		if !skip[name] {
			run = append(run, name)
		}
	}

	byName := make(map[string]models.SourceResult, len(run))
	if len(run) > 0 {
		for _, r := range s.orchestrator.Run(ctx, target, run...) {
			byName[r.Source] = r
		}
	}

	out := make([]models.SourceResult, 0, len(names))
	for _, name := range names {
		if skip[name] {
			out = append(out, models.SourceResult{Source: name, Status: models.SourceSkipped, Reason: "skipped by request"})
			continue
		}
		if r, ok := byName[name]; ok {
			out = append(out, r)
		}
	}
	return out
}

// priceTargets prefers the competitors just discovered and falls back to
// those already stored for the city.
func (s *Service) priceTargets(ctx context.Context, fresh []models.CompetitorHotel, city string) []models.CompetitorHotel {
	if len(fresh) > 0 {
		unique, _ := pipeline.Dedup(fresh, models.CompetitorHotel.Key)
		return unique
	}
	if city == "" {
		return nil
	}
	stored, err := s.store.CompetitorsInCity(ctx, city)
	if err != nil {
		slog.Warn("loading stored competitors failed", slog.String("city", city), slog.Any("error", err))
		return nil
	}
	return stored
}

func observations(results []models.SourceResult) []models.RawObservation {
	var out []models.RawObservation
	for _, r := range results {
		if r.Status == models.SourceOK {
			out = append(out, r.Observations...)
		}
	}
	return out
}

func mergeDropped(dst, src map[string]int) {
	for reason, n := range src {
		dst[reason] += n
	}
}

func mergeInvalid(dst map[string]int, res pipeline.WriteResult) {
	if res.Invalid > 0 {
		dst[pipeline.DropInvalidRecord] += res.Invalid
	}
}
