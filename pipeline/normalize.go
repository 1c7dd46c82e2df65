package pipeline

import (
	"strings"
	"sync"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/parser"
	"github.com/google/uuid"
)

// Drop reasons reported by the normalizer.
const (
	DropMissingName       = "missing_name"
	DropBadDate           = "bad_date"
	DropBadPrice          = "bad_price"
	DropMissingCompetitor = "missing_competitor"
	DropInvalidRecord     = "invalid_record"
	DropUnknownKind       = "unknown_kind"
)

var competitorNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ratesignals/competitor"))

// CompetitorID derives a stable competitor identifier from the directory
// source and its external id, so refreshes update the same row.
func CompetitorID(source, externalID string) string {
	key := strings.ToLower(strings.TrimSpace(source)) + ":" + strings.TrimSpace(externalID)
	return uuid.NewSHA1(competitorNamespace, []byte(key)).String()
}

// Normalized is the typed output of one normalization pass.
type Normalized struct {
	Events      []models.NormalizedEvent
	Prices      []models.NormalizedPriceObservation
	Competitors []models.CompetitorHotel
	Dropped     map[string]int
}

// DroppedTotal returns the number of records dropped for any reason.
func (n Normalized) DroppedTotal() int {
	total := 0
	for _, v := range n.Dropped {
		total += v
	}
	return total
}

// Normalizer turns raw observations into normalized records. A record that
// cannot be parsed is dropped and counted; its siblings proceed.
type Normalizer struct {
	ownerID string
	metrics metrics
}

// NewNormalizer builds a normalizer stamping events with ownerID.
func NewNormalizer(ownerID string) *Normalizer {
	return &Normalizer{ownerID: ownerID, metrics: newMetrics()}
}

// Normalize converts a batch of raw observations.
func (n *Normalizer) Normalize(obs []models.RawObservation) Normalized {
	out := Normalized{Dropped: make(map[string]int)}
	drop := func(reason string) {
		out.Dropped[reason]++
		n.metrics.addValidation(reason)
	}

	for _, o := range obs {
		switch o.Kind {
		case models.KindEvent:
			ev, reason := n.event(o)
			if reason != "" {
				drop(reason)
				continue
			}
			out.Events = append(out.Events, ev)
		case models.KindPrice:
			p, reason := price(o)
			if reason != "" {
				drop(reason)
				continue
			}
			out.Prices = append(out.Prices, p)
		case models.KindHotel:
			h, reason := competitor(o)
			if reason != "" {
				drop(reason)
				continue
			}
			out.Competitors = append(out.Competitors, h)
		default:
			drop(DropUnknownKind)
			continue
		}
		n.metrics.incrementProcessed()
	}
	return out
}

// GetMetrics returns processed and dropped counters across all passes.
func (n *Normalizer) GetMetrics() map[string]interface{} {
	return n.metrics.snapshot()
}

func (n *Normalizer) event(o models.RawObservation) (models.NormalizedEvent, string) {
	name := parser.NormalizeText(o.RawName)
	if name == "" {
		return models.NormalizedEvent{}, DropMissingName
	}
	date, ok := parser.ParseDate(o.RawDate)
	if !ok {
		return models.NormalizedEvent{}, DropBadDate
	}
	ev := models.NormalizedEvent{
		Name:       name,
		Date:       models.Day(date),
		Venue:      parser.NormalizeText(o.RawVenueOrRoomType),
		SourceURL:  strings.TrimSpace(o.URL),
		OwnerID:    n.ownerID,
		Source:     o.SourceID,
		DistanceKm: o.DistanceKm,
	}
	if err := parser.ValidateEvent(&ev); err != nil {
		return models.NormalizedEvent{}, DropInvalidRecord
	}
	return ev, ""
}

func price(o models.RawObservation) (models.NormalizedPriceObservation, string) {
	if strings.TrimSpace(o.CompetitorID) == "" {
		return models.NormalizedPriceObservation{}, DropMissingCompetitor
	}
	amount, ok := parser.ParsePrice(o.RawPriceText)
	if !ok {
		return models.NormalizedPriceObservation{}, DropBadPrice
	}
	date, ok := parser.ParseDate(o.RawDate)
	if !ok {
		return models.NormalizedPriceObservation{}, DropBadDate
	}
	label := parser.NormalizeText(o.RawVenueOrRoomType)
	p := models.NormalizedPriceObservation{
		CompetitorID:          o.CompetitorID,
		StandardizedRoomType:  parser.ClassifyRoomType(label),
		Date:                  models.Day(date),
		Price:                 amount,
		OriginalRoomTypeLabel: label,
		Source:                o.SourceID,
	}
	if err := parser.ValidatePrice(&p); err != nil {
		return models.NormalizedPriceObservation{}, DropInvalidRecord
	}
	return p, ""
}

func competitor(o models.RawObservation) (models.CompetitorHotel, string) {
	name := parser.NormalizeText(o.RawName)
	if name == "" {
		return models.CompetitorHotel{}, DropMissingName
	}
	external := strings.TrimSpace(o.ExternalID)
	if external == "" {
		external = strings.ToLower(name)
	}
	h := models.CompetitorHotel{
		ID:         CompetitorID(o.SourceID, external),
		Name:       name,
		City:       parser.NormalizeText(o.City),
		Geo:        o.RawLatLon,
		ExternalID: strings.TrimSpace(o.ExternalID),
		Source:     o.SourceID,
		DistanceKm: o.DistanceKm,
	}
	if stars, ok := parser.StarRating(o.StarRating); ok {
		h.StarRating = &stars
	}
	if err := parser.ValidateCompetitor(&h); err != nil {
		return models.CompetitorHotel{}, DropInvalidRecord
	}
	return h, ""
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) incrementProcessed() {
	m.mu.Lock()
	m.processed++
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
