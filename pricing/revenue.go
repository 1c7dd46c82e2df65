package pricing

import (
	"sort"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceSeries is one hotel's prices for a night.
type PriceSeries struct {
	ID     string
	Name   string
	Prices []decimal.Decimal
}

// RankRevenue estimates revenue per available room as average price times
// an assumed occupancy, then ranks the property among its competitors.
// Competitors without prices are left out.
func RankRevenue(rules config.PricingRules, date time.Time, own PriceSeries, competitors []PriceSeries) models.RevenueReport {
	report := models.RevenueReport{Date: models.Day(date)}

	if avg, ok := Mean(own.Prices); ok {
		report.Entries = append(report.Entries, models.RevenueEntry{
			Name:         own.Name,
			CompetitorID: own.ID,
			AveragePrice: avg.Round(2),
			Occupancy:    rules.OwnOccupancy,
			Revenue:      avg.Mul(rules.OwnOccupancy).Round(2),
			Own:          true,
		})
	}

	var compRevenues []decimal.Decimal
	for _, c := range competitors {
		avg, ok := Mean(c.Prices)
		if !ok {
			continue
		}
		rev := avg.Mul(rules.CompetitorOccupancy).Round(2)
		compRevenues = append(compRevenues, rev)
		report.Entries = append(report.Entries, models.RevenueEntry{
			Name:         c.Name,
			CompetitorID: c.ID,
			AveragePrice: avg.Round(2),
			Occupancy:    rules.CompetitorOccupancy,
			Revenue:      rev,
		})
	}

	sort.SliceStable(report.Entries, func(i, j int) bool {
		return report.Entries[i].Revenue.GreaterThan(report.Entries[j].Revenue)
	})

	var ownRevenue decimal.Decimal
	for i, e := range report.Entries {
		if e.Own {
			report.OwnPosition = i + 1
			ownRevenue = e.Revenue
		}
	}

	if avg, ok := Mean(compRevenues); ok {
		report.CompetitorAverage = avg.Round(2)
		if report.OwnPosition > 0 {
			report.DeltaVsCompetitors = ownRevenue.Sub(avg).Round(2)
			if avg.IsPositive() {
				report.DeltaPercent = ownRevenue.Sub(avg).Div(avg).Mul(hundred).Round(2)
			}
		}
	}
	return report
}
