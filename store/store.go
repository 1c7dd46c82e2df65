// Package store persists normalized records and recommendations.
package store

import (
	"context"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
)

// Store is the persistence surface of the ingestion and analysis runs.
// Upserts merge on each record's identity key.
type Store interface {
	UpsertEvents(ctx context.Context, events []models.NormalizedEvent) error
	UpsertPrices(ctx context.Context, prices []models.NormalizedPriceObservation) error
	UpsertCompetitors(ctx context.Context, hotels []models.CompetitorHotel) error
	UpsertPropertyRates(ctx context.Context, rates []models.PropertyRoomRate) error

	// DeleteEventsBefore removes the owner's events dated before date.
	DeleteEventsBefore(ctx context.Context, ownerID string, date time.Time) (int64, error)
	CountEvents(ctx context.Context, ownerID string, date time.Time) (int, error)
	PricesOn(ctx context.Context, date time.Time) ([]models.NormalizedPriceObservation, error)
	// LatestPriceDate finds the most recent day with prices in
	// [onOrBefore - lookbackDays, onOrBefore].
	LatestPriceDate(ctx context.Context, onOrBefore time.Time, lookbackDays int) (time.Time, bool, error)
	PropertyRates(ctx context.Context, propertyID string, date time.Time) ([]models.PropertyRoomRate, error)
	CompetitorsInCity(ctx context.Context, city string) ([]models.CompetitorHotel, error)
	Competitors(ctx context.Context, ids []string) ([]models.CompetitorHotel, error)
	SaveRecommendations(ctx context.Context, recs []models.PriceRecommendation) error

	Close() error
}

func window(onOrBefore time.Time, lookbackDays int) (time.Time, time.Time) {
	end := models.Day(onOrBefore)
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return end.AddDate(0, 0, -lookbackDays), end
}
