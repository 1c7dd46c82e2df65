package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/shopspring/decimal"
)

// PriceSource is the read side of the store the aggregator needs.
type PriceSource interface {
	PricesOn(ctx context.Context, date time.Time) ([]models.NormalizedPriceObservation, error)
	LatestPriceDate(ctx context.Context, onOrBefore time.Time, lookbackDays int) (time.Time, bool, error)
}

// Reading is the market anchor for one room type.
type Reading struct {
	RoomType models.RoomType
	Median   decimal.Decimal
	Count    int
	Fallback bool
	Note     string
}

// Market is the aggregated competitor picture for a target date.
type Market struct {
	TargetDate   time.Time
	ObservedDate time.Time
	Readings     map[models.RoomType]Reading
	Observations []models.NormalizedPriceObservation
	Trail        []string
}

// Reading returns the anchor for t if it was aggregated.
func (m Market) Reading(t models.RoomType) (Reading, bool) {
	r, ok := m.Readings[t]
	return r, ok
}

// RoomTypes lists the standardized types present among the observations in
// closed-set order.
func (m Market) RoomTypes() []models.RoomType {
	present := make(map[models.RoomType]bool)
	for _, o := range m.Observations {
		present[o.StandardizedRoomType] = true
	}
	var out []models.RoomType
	for _, t := range models.RoomTypes {
		if present[t] {
			out = append(out, t)
		}
	}
	return out
}

// Aggregator computes per-room-type competitor medians.
type Aggregator struct {
	source       PriceSource
	fallback     decimal.Decimal
	lookbackDays int
}

// NewAggregator builds an aggregator. fallback replaces the median of an
// empty group; lookbackDays bounds the search for an earlier date with data.
func NewAggregator(source PriceSource, fallback decimal.Decimal, lookbackDays int) *Aggregator {
	return &Aggregator{source: source, fallback: fallback, lookbackDays: lookbackDays}
}

// Market loads observations for date, or for the latest earlier date with
// observations within the lookback window, and aggregates them for types.
// When types is empty every type seen in the data is aggregated.
func (a *Aggregator) Market(ctx context.Context, date time.Time, types []models.RoomType) (Market, error) {
	date = models.Day(date)
	m := Market{TargetDate: date, ObservedDate: date}

	obs, err := a.source.PricesOn(ctx, date)
	if err != nil {
		return m, fmt.Errorf("load prices for %s: %w", date.Format(models.DateLayout), err)
	}
	if len(obs) == 0 && a.lookbackDays > 0 {
		latest, ok, err := a.source.LatestPriceDate(ctx, date, a.lookbackDays)
		if err != nil {
			return m, fmt.Errorf("find latest price date: %w", err)
		}
		if ok && !latest.Equal(date) {
			obs, err = a.source.PricesOn(ctx, latest)
			if err != nil {
				return m, fmt.Errorf("load prices for %s: %w", latest.Format(models.DateLayout), err)
			}
			m.ObservedDate = models.Day(latest)
			m.Trail = append(m.Trail, fmt.Sprintf(
				"No competitor prices for %s; using the latest observations from %s.",
				date.Format(models.DateLayout), latest.Format(models.DateLayout),
			))
		}
	}
	m.Observations = obs
	if len(types) == 0 {
		types = m.RoomTypes()
	}
	m.Readings = Aggregate(obs, types, a.fallback)
	return m, nil
}

// Aggregate groups observations by standardized room type and takes the
// median of each requested group. An empty group gets fallback, noted in
// the reading.
func Aggregate(obs []models.NormalizedPriceObservation, types []models.RoomType, fallback decimal.Decimal) map[models.RoomType]Reading {
	groups := make(map[models.RoomType][]decimal.Decimal)
	for _, o := range obs {
		groups[o.StandardizedRoomType] = append(groups[o.StandardizedRoomType], o.Price)
	}

	out := make(map[models.RoomType]Reading, len(types))
	for _, t := range types {
		prices := groups[t]
		median, ok := Median(prices)
		if !ok {
			out[t] = Reading{
				RoomType: t,
				Median:   fallback,
				Fallback: true,
				Note:     fmt.Sprintf("No competitor prices for %s; using market average fallback %s.", t, fallback),
			}
			continue
		}
		out[t] = Reading{
			RoomType: t,
			Median:   median,
			Count:    len(prices),
			Note:     fmt.Sprintf("Competitor median for %s from %d observation(s): %s.", t, len(prices), median.StringFixed(2)),
		}
	}
	return out
}
