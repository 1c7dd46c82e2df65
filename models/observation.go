// Package models defines data structures shared by the extractors, the
// normalization pipeline and the pricing engine.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind tells the normalizer which normalized record a raw observation feeds.
type Kind string

const (
	KindEvent Kind = "event"
	KindPrice Kind = "price"
	KindHotel Kind = "hotel"
)

// LatLon is a WGS84 coordinate pair.
type LatLon struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p LatLon) String() string {
	return fmt.Sprintf("%.5f,%.5f", p.Latitude, p.Longitude)
}

// RawObservation is an unvalidated record produced by one extractor call.
type RawObservation struct {
	SourceID           string   `json:"source_id"`
	Kind               Kind     `json:"kind"`
	RawName            string   `json:"raw_name"`
	RawDate            string   `json:"raw_date"`
	RawVenueOrRoomType string   `json:"raw_venue_or_room_type"`
	RawPriceText       string   `json:"raw_price_text,omitempty"`
	RawLatLon          *LatLon  `json:"raw_lat_lon,omitempty"`
	URL                string   `json:"url,omitempty"`
	CompetitorID       string   `json:"competitor_id,omitempty"`
	ExternalID         string   `json:"external_id,omitempty"`
	City               string   `json:"city,omitempty"`
	StarRating         string   `json:"star_rating,omitempty"`
	DistanceKm         *float64 `json:"distance_km,omitempty"`
}

// NormalizedEvent is a demand event near the property. Its identity is
// (Name, Date, OwnerID).
type NormalizedEvent struct {
	Name       string    `json:"name"`
	Date       time.Time `json:"date"`
	Venue      string    `json:"venue"`
	SourceURL  string    `json:"source_url"`
	OwnerID    string    `json:"owner_id"`
	Source     string    `json:"source"`
	DistanceKm *float64  `json:"distance_km,omitempty"`
}

// Key returns the identity used for dedup and for the store's conflict target.
func (e NormalizedEvent) Key() string {
	return e.Name + "|" + e.Date.Format(DateLayout) + "|" + e.OwnerID
}

// NormalizedPriceObservation is one competitor room price for one night.
type NormalizedPriceObservation struct {
	CompetitorID          string          `json:"competitor_id"`
	StandardizedRoomType  RoomType        `json:"standardized_room_type"`
	Date                  time.Time       `json:"date"`
	Price                 decimal.Decimal `json:"price"`
	OriginalRoomTypeLabel string          `json:"original_room_type_label"`
	Source                string          `json:"source"`
}

// Key identifies an observation by (label, date, competitor).
func (o NormalizedPriceObservation) Key() string {
	return o.OriginalRoomTypeLabel + "|" + o.Date.Format(DateLayout) + "|" + o.CompetitorID
}

// CompetitorHotel is a long-lived reference entity refreshed from the
// hotel directory.
type CompetitorHotel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	City       string   `json:"city"`
	StarRating *int     `json:"star_rating,omitempty"`
	Geo        *LatLon  `json:"geo,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
	Source     string   `json:"source,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// Key identifies a competitor by its stable ID.
func (h CompetitorHotel) Key() string {
	return h.ID
}

// PropertyRoomRate is the property's own price row for a room type and
// night, with optional per-night bounds overriding the hard floor/ceiling.
type PropertyRoomRate struct {
	PropertyID   string           `json:"property_id"`
	RoomType     RoomType         `json:"room_type"`
	Date         time.Time        `json:"date"`
	CurrentPrice decimal.Decimal  `json:"current_price"`
	MinPrice     *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice     *decimal.Decimal `json:"max_price,omitempty"`
}

// HasBounds reports whether both override bounds are configured.
func (r PropertyRoomRate) HasBounds() bool {
	return r.MinPrice != nil && r.MaxPrice != nil
}

// DateLayout is the calendar-day format used across sources and storage.
const DateLayout = "2006-01-02"

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
