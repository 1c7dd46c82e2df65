package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecommendation is the output of one pricing run for a date and
// room type. Recommendations are never mutated, only superseded.
type PriceRecommendation struct {
	ID                   string          `csv:"id" json:"id"`
	RunID                string          `csv:"run_id" json:"run_id"`
	PropertyID           string          `csv:"property_id" json:"property_id"`
	Date                 time.Time       `csv:"date" json:"date"`
	StandardizedRoomType RoomType        `csv:"room_type" json:"standardized_room_type"`
	CurrentPrice         decimal.Decimal `csv:"current_price" json:"current_price"`
	CompetitorMedian     decimal.Decimal `csv:"competitor_median" json:"competitor_median"`
	EventMultiplier      decimal.Decimal `csv:"event_multiplier" json:"event_multiplier"`
	SuggestedPrice       decimal.Decimal `csv:"suggested_price" json:"suggested_price"`
	FinalPrice           decimal.Decimal `csv:"final_price" json:"final_price"`
	ReasoningSteps       []string        `csv:"reasoning" json:"reasoning_steps"`
	CreatedAt            time.Time       `csv:"created_at" json:"created_at"`
}

// SourceStatus is the outcome of one extractor run.
type SourceStatus string

const (
	SourceOK       SourceStatus = "ok"
	SourceFailed   SourceStatus = "failed"
	SourceTimeout  SourceStatus = "timeout"
	SourceDisabled SourceStatus = "disabled"
	SourceSkipped  SourceStatus = "skipped"
)

// SourceResult holds what one source contributed to a run.
type SourceResult struct {
	Source       string           `json:"source"`
	Status       SourceStatus     `json:"status"`
	Observations []RawObservation `json:"-"`
	Count        int              `json:"count"`
	Reason       string           `json:"reason,omitempty"`
	ErrorType    string           `json:"error_type,omitempty"`
	Duration     time.Duration    `json:"duration"`
}

// IngestionResult summarises a runIngestion call.
type IngestionResult struct {
	RunID               string         `json:"run_id"`
	PropertyID          string         `json:"property_id"`
	EventsIngested      int            `json:"events_ingested"`
	PricesIngested      int            `json:"prices_ingested"`
	CompetitorsIngested int            `json:"competitors_ingested"`
	EventsPurged        int64          `json:"events_purged"`
	Dropped             map[string]int `json:"dropped,omitempty"`
	Sources             []SourceResult `json:"sources"`
	StartTime           time.Time      `json:"start_time"`
	EndTime             time.Time      `json:"end_time"`
}

// RevenueEntry is one row of the revenue performance ranking.
type RevenueEntry struct {
	Name         string          `json:"name"`
	CompetitorID string          `json:"competitor_id,omitempty"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Occupancy    decimal.Decimal `json:"occupancy"`
	Revenue      decimal.Decimal `json:"revenue"`
	Own          bool            `json:"own"`
}

// RevenueReport ranks the property against its competitors for a date.
type RevenueReport struct {
	Date               time.Time       `json:"date"`
	Entries            []RevenueEntry  `json:"entries"`
	OwnPosition        int             `json:"own_position"`
	CompetitorAverage  decimal.Decimal `json:"competitor_average"`
	DeltaVsCompetitors decimal.Decimal `json:"delta_vs_competitors"`
	DeltaPercent       decimal.Decimal `json:"delta_percent"`
}
