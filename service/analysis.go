package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/pricing"
	"github.com/shopspring/decimal"
)

// RunPriceAnalysis recommends a price for every room type the property
// sells on the target night. Store read failures fall back to the market
// average and are explained in the reasoning rather than returned.
func (s *Service) RunPriceAnalysis(ctx context.Context, req AnalysisRequest) ([]models.PriceRecommendation, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	start := time.Now()
	date := req.Date()

	rates := s.propertyRates(ctx, req.PropertyID, date)
	var types []models.RoomType
	for t := range rates {
		types = append(types, t)
	}

	market, err := s.aggregator.Market(ctx, date, types)
	if err != nil {
		slog.Warn("loading competitor prices failed", slog.String("date", req.TargetDate), slog.Any("error", err))
		market.Trail = append(market.Trail, "Competitor prices could not be loaded; using market average fallback.")
	}
	if len(market.Readings) == 0 {
		if len(types) == 0 {
			types = []models.RoomType{models.RoomStandard}
		}
		market.Readings = pricing.Aggregate(nil, types, s.cfg.Pricing.MarketAverageFallback)
	}

	eventCount, err := s.store.CountEvents(ctx, req.PropertyID, date)
	if err != nil {
		slog.Warn("counting events failed", slog.String("property_id", req.PropertyID), slog.Any("error", err))
		market.Trail = append(market.Trail, "Events could not be counted; no event multiplier applied.")
		eventCount = 0
	}

	runID := s.newID()
	createdAt := s.now().UTC()
	var recs []models.PriceRecommendation
	for _, t := range models.RoomTypes {
		reading, ok := market.Reading(t)
		if !ok {
			continue
		}
		in := pricing.Input{
			Date:             date,
			RoomType:         t,
			CompetitorMedian: reading.Median,
			EventCount:       eventCount,
			Notes:            append(append([]string(nil), market.Trail...), reading.Note),
		}
		if rate, ok := rates[t]; ok {
			in.CurrentPrice = rate.CurrentPrice
			if rate.HasBounds() {
				in.Bounds = &pricing.Bounds{Min: *rate.MinPrice, Max: *rate.MaxPrice}
			}
		}

		rec := s.engine.Recommend(in)
		rec.ID = s.newID()
		rec.RunID = runID
		rec.PropertyID = req.PropertyID
		rec.CreatedAt = createdAt
		recs = append(recs, rec)
	}

	if err := s.store.SaveRecommendations(ctx, recs); err != nil {
		slog.Warn("saving recommendations failed", slog.String("run_id", runID), slog.Any("error", err))
	}
	logDuration("price analysis", start,
		slog.String("run_id", runID),
		slog.String("property_id", req.PropertyID),
		slog.String("date", req.TargetDate),
		slog.Int("events", eventCount),
		slog.Int("recommendations", len(recs)),
	)
	return recs, nil
}

// RunRevenuePerformance ranks the property's estimated revenue per
// available room against each competitor priced on the target night.
func (s *Service) RunRevenuePerformance(ctx context.Context, req AnalysisRequest) (models.RevenueReport, error) {
	if err := s.check(req); err != nil {
		return models.RevenueReport{}, err
	}
	date := req.Date()

	market, err := s.aggregator.Market(ctx, date, nil)
	if err != nil {
		return models.RevenueReport{}, fmt.Errorf("failed to load market: %w", err)
	}

	var ids []string
	byCompetitor := make(map[string][]decimal.Decimal)
	for _, o := range market.Observations {
		if _, seen := byCompetitor[o.CompetitorID]; !seen {
			ids = append(ids, o.CompetitorID)
		}
		byCompetitor[o.CompetitorID] = append(byCompetitor[o.CompetitorID], o.Price)
	}

	names := make(map[string]string, len(ids))
	hotels, err := s.store.Competitors(ctx, ids)
	if err != nil {
		slog.Warn("loading competitor names failed", slog.Any("error", err))
	}
	for _, h := range hotels {
		names[h.ID] = h.Name
	}

	series := make([]pricing.PriceSeries, 0, len(ids))
	for _, id := range ids {
		name := names[id]
		if name == "" {
			name = id
		}
		series = append(series, pricing.PriceSeries{ID: id, Name: name, Prices: byCompetitor[id]})
	}

	own := pricing.PriceSeries{ID: req.PropertyID, Name: req.PropertyID}
	rates := s.propertyRates(ctx, req.PropertyID, date)
	for _, t := range models.RoomTypes {
		if rate, ok := rates[t]; ok {
			own.Prices = append(own.Prices, rate.CurrentPrice)
		}
	}
	return pricing.RankRevenue(s.engine.Rules(), date, own, series), nil
}

// MarketSnapshot summarizes the competitor market on the target night in
// the broad five-bucket taxonomy.
func (s *Service) MarketSnapshot(ctx context.Context, req AnalysisRequest) ([]pricing.BroadReading, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	market, err := s.aggregator.Market(ctx, req.Date(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load market: %w", err)
	}
	return pricing.Snapshot(market.Observations), nil
}

func (s *Service) propertyRates(ctx context.Context, propertyID string, date time.Time) map[models.RoomType]models.PropertyRoomRate {
	rates, err := s.store.PropertyRates(ctx, propertyID, date)
	if err != nil {
		slog.Warn("loading property rates failed", slog.String("property_id", propertyID), slog.Any("error", err))
		return nil
	}
	out := make(map[models.RoomType]models.PropertyRoomRate, len(rates))
	for _, r := range rates {
		out[r.RoomType] = r
	}
	return out
}
