package pricing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
		ok     bool
	}{
		{name: "empty", values: nil, ok: false},
		{name: "single", values: []string{"1800"}, want: "1800", ok: true},
		{name: "odd unsorted", values: []string{"2200", "1800", "2000"}, want: "2000", ok: true},
		{name: "even averages middle pair", values: []string{"1000", "4000", "2000", "2500"}, want: "2250", ok: true},
		{name: "outlier resistant", values: []string{"1900", "2000", "2100", "99999"}, want: "2050", ok: true},
		{name: "even with cents", values: []string{"1999.99", "2000.00"}, want: "1999.995", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := make([]decimal.Decimal, len(tt.values))
			for i, v := range tt.values {
				values[i] = dec(v)
			}
			got, ok := Median(values)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(dec(tt.want)) {
				t.Fatalf("median = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	values := []decimal.Decimal{dec("3"), dec("1"), dec("2")}
	Median(values)
	if !values[0].Equal(dec("3")) {
		t.Fatalf("input reordered: %v", values)
	}
}

func observation(comp string, t models.RoomType, label, price string, day time.Time) models.NormalizedPriceObservation {
	return models.NormalizedPriceObservation{
		CompetitorID:          comp,
		StandardizedRoomType:  t,
		Date:                  day,
		Price:                 dec(price),
		OriginalRoomTypeLabel: label,
	}
}

func TestAggregateFallsBackForEmptyGroups(t *testing.T) {
	obs := []models.NormalizedPriceObservation{
		observation("c1", models.RoomStandard, "King", "1800", march14),
		observation("c2", models.RoomStandard, "Doble", "2200", march14),
		observation("c3", models.RoomSuite, "Suite", "4000", march14),
	}
	got := Aggregate(obs, []models.RoomType{models.RoomStandard, models.RoomVilla}, dec("1500"))

	std := got[models.RoomStandard]
	if std.Fallback || std.Count != 2 || !std.Median.Equal(dec("2000")) {
		t.Fatalf("standard reading = %+v", std)
	}
	villa := got[models.RoomVilla]
	if !villa.Fallback || !villa.Median.Equal(dec("1500")) || !strings.Contains(villa.Note, "fallback") {
		t.Fatalf("villa reading = %+v", villa)
	}
	if _, ok := got[models.RoomSuite]; ok {
		t.Fatalf("suite was not requested")
	}
}

type fakePrices struct {
	byDay map[string][]models.NormalizedPriceObservation
	err   error
}

func (f fakePrices) PricesOn(_ context.Context, date time.Time) ([]models.NormalizedPriceObservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byDay[date.Format(models.DateLayout)], nil
}

func (f fakePrices) LatestPriceDate(_ context.Context, onOrBefore time.Time, lookbackDays int) (time.Time, bool, error) {
	for d := 0; d <= lookbackDays; d++ {
		day := onOrBefore.AddDate(0, 0, -d)
		if len(f.byDay[day.Format(models.DateLayout)]) > 0 {
			return day, true, nil
		}
	}
	return time.Time{}, false, nil
}

func TestAggregatorMarketUsesLatestEarlierDate(t *testing.T) {
	march11 := march14.AddDate(0, 0, -3)
	source := fakePrices{byDay: map[string][]models.NormalizedPriceObservation{
		"2025-03-11": {
			observation("c1", models.RoomStandard, "King", "1800", march11),
			observation("c2", models.RoomDeluxe, "Deluxe", "2600", march11),
		},
		"2025-03-01": {
			observation("c1", models.RoomStandard, "King", "999", march14.AddDate(0, 0, -13)),
		},
	}}
	agg := NewAggregator(source, config.DefaultPricingRules().MarketAverageFallback, 7)

	m, err := agg.Market(context.Background(), march14.Add(15*time.Hour), nil)
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	if !m.TargetDate.Equal(march14) || !m.ObservedDate.Equal(march11) {
		t.Fatalf("dates = %s / %s", m.TargetDate, m.ObservedDate)
	}
	if len(m.Trail) != 1 || !strings.Contains(m.Trail[0], "2025-03-11") {
		t.Fatalf("trail = %q", m.Trail)
	}
	if diff := cmp.Diff([]models.RoomType{models.RoomStandard, models.RoomDeluxe}, m.RoomTypes()); diff != "" {
		t.Fatalf("room types mismatch (-want +got):\n%s", diff)
	}
	if r, ok := m.Reading(models.RoomDeluxe); !ok || !r.Median.Equal(dec("2600")) {
		t.Fatalf("deluxe reading = %+v", r)
	}
}

func TestAggregatorMarketOutsideLookback(t *testing.T) {
	source := fakePrices{byDay: map[string][]models.NormalizedPriceObservation{
		"2025-03-01": {observation("c1", models.RoomStandard, "King", "999", march14.AddDate(0, 0, -13))},
	}}
	agg := NewAggregator(source, dec("1500"), 7)

	m, err := agg.Market(context.Background(), march14, []models.RoomType{models.RoomStandard})
	if err != nil {
		t.Fatalf("market: %v", err)
	}
	r := m.Readings[models.RoomStandard]
	if !r.Fallback || !r.Median.Equal(dec("1500")) || len(m.Trail) != 0 {
		t.Fatalf("reading = %+v trail = %q", r, m.Trail)
	}
}

func TestAggregatorMarketPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("db down")
	agg := NewAggregator(fakePrices{err: boom}, dec("1500"), 7)
	if _, err := agg.Market(context.Background(), march14, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped db error", err)
	}
}
