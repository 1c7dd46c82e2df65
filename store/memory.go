package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
)

// Memory is a Store kept in process memory. It backs tests and runs
// without a database.
type Memory struct {
	mu          sync.RWMutex
	events      map[string]models.NormalizedEvent
	prices      map[string]models.NormalizedPriceObservation
	competitors map[string]models.CompetitorHotel
	rates       map[string]models.PropertyRoomRate
	recs        []models.PriceRecommendation
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:      make(map[string]models.NormalizedEvent),
		prices:      make(map[string]models.NormalizedPriceObservation),
		competitors: make(map[string]models.CompetitorHotel),
		rates:       make(map[string]models.PropertyRoomRate),
	}
}

func rateKey(r models.PropertyRoomRate) string {
	return r.PropertyID + "|" + string(r.RoomType) + "|" + r.Date.Format(models.DateLayout)
}

func (m *Memory) UpsertEvents(ctx context.Context, events []models.NormalizedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range events {
		e.Date = models.Day(e.Date)
		m.events[e.Key()] = e
	}
	return nil
}

func (m *Memory) UpsertPrices(ctx context.Context, prices []models.NormalizedPriceObservation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prices {
		p.Date = models.Day(p.Date)
		m.prices[p.Key()] = p
	}
	return nil
}

func (m *Memory) UpsertCompetitors(ctx context.Context, hotels []models.CompetitorHotel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hotels {
		m.competitors[h.Key()] = h
	}
	return nil
}

func (m *Memory) UpsertPropertyRates(ctx context.Context, rates []models.PropertyRoomRate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rates {
		r.Date = models.Day(r.Date)
		m.rates[rateKey(r)] = r
	}
	return nil
}

func (m *Memory) DeleteEventsBefore(ctx context.Context, ownerID string, date time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := models.Day(date)
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.events {
		if e.OwnerID == ownerID && e.Date.Before(cutoff) {
			delete(m.events, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountEvents(ctx context.Context, ownerID string, date time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	day := models.Day(date)
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.events {
		if e.OwnerID == ownerID && e.Date.Equal(day) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) PricesOn(ctx context.Context, date time.Time) ([]models.NormalizedPriceObservation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day := models.Day(date)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.NormalizedPriceObservation
	for _, p := range m.prices {
		if p.Date.Equal(day) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (m *Memory) LatestPriceDate(ctx context.Context, onOrBefore time.Time, lookbackDays int) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	start, end := window(onOrBefore, lookbackDays)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest time.Time
	found := false
	for _, p := range m.prices {
		if p.Date.Before(start) || p.Date.After(end) {
			continue
		}
		if !found || p.Date.After(latest) {
			latest, found = p.Date, true
		}
	}
	return latest, found, nil
}

func (m *Memory) PropertyRates(ctx context.Context, propertyID string, date time.Time) ([]models.PropertyRoomRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	day := models.Day(date)
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PropertyRoomRate
	for _, r := range m.rates {
		if r.PropertyID == propertyID && r.Date.Equal(day) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomType < out[j].RoomType })
	return out, nil
}

func (m *Memory) CompetitorsInCity(ctx context.Context, city string) ([]models.CompetitorHotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.CompetitorHotel
	for _, h := range m.competitors {
		if strings.EqualFold(strings.TrimSpace(h.City), strings.TrimSpace(city)) {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) Competitors(ctx context.Context, ids []string) ([]models.CompetitorHotel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.CompetitorHotel, 0, len(ids))
	for _, id := range ids {
		if h, ok := m.competitors[id]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *Memory) SaveRecommendations(ctx context.Context, recs []models.PriceRecommendation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, recs...)
	return nil
}

// Recommendations returns every saved recommendation in save order.
func (m *Memory) Recommendations() []models.PriceRecommendation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.PriceRecommendation(nil), m.recs...)
}

func (m *Memory) Close() error { return nil }
