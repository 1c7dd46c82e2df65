package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/pricing"
	"github.com/aluiziolira/go-rate-signals/service"
)

const separator = "--------------------------------------------------"

func printIngestionSummary(w io.Writer, res models.IngestionResult, duration time.Duration) {
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "Ingestion complete")
	fmt.Fprintf(w, "  Run:           %s\n", res.RunID)
	fmt.Fprintf(w, "  Property:      %s\n", res.PropertyID)
	fmt.Fprintf(w, "  Competitors:   %d\n", res.CompetitorsIngested)
	fmt.Fprintf(w, "  Events:        %d (purged %d)\n", res.EventsIngested, res.EventsPurged)
	fmt.Fprintf(w, "  Prices:        %d\n", res.PricesIngested)
	if len(res.Dropped) > 0 {
		fmt.Fprintf(w, "  Dropped:       %v\n", res.Dropped)
	}
	for _, s := range res.Sources {
		line := fmt.Sprintf("  %-14s %-8s %4d", s.Source+":", s.Status, s.Count)
		if s.Reason != "" {
			line += "  " + s.Reason
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintln(w, separator)
}

func printAnalysisSummary(w io.Writer, req service.AnalysisRequest, recs []models.PriceRecommendation, duration time.Duration, outputFile string) {
	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Recommendations for %s on %s\n", req.PropertyID, req.TargetDate)
	for _, r := range recs {
		fmt.Fprintf(w, "  %-13s median %10s  x%s  ->  %10s\n",
			r.StandardizedRoomType, r.CompetitorMedian.StringFixed(2), r.EventMultiplier.StringFixed(2), r.FinalPrice.StringFixed(2))
	}
	fmt.Fprintf(w, "  Duration:      %v\n", duration)
	fmt.Fprintf(w, "  Output file:   %s\n", outputFile)
	fmt.Fprintln(w, separator)
}

func printSnapshot(w io.Writer, readings []pricing.BroadReading) {
	fmt.Fprintln(w, "Market snapshot")
	for _, r := range readings {
		if r.Count == 0 {
			fmt.Fprintf(w, "  %-10s no data\n", r.RoomType)
			continue
		}
		fmt.Fprintf(w, "  %-10s median %10s  (%d)\n", r.RoomType, r.Median.StringFixed(2), r.Count)
	}
}

func printRevenue(w io.Writer, report models.RevenueReport) {
	fmt.Fprintf(w, "Revenue performance on %s\n", report.Date.Format(models.DateLayout))
	for i, e := range report.Entries {
		marker := " "
		if e.Own {
			marker = "*"
		}
		fmt.Fprintf(w, " %s%2d. %-30s %10s\n", marker, i+1, e.Name, e.Revenue.StringFixed(2))
	}
	if report.OwnPosition > 0 {
		fmt.Fprintf(w, "  Position %d of %d; %s (%s%%) against the competitor average %s\n",
			report.OwnPosition, len(report.Entries),
			report.DeltaVsCompetitors.StringFixed(2), report.DeltaPercent.StringFixed(2),
			report.CompetitorAverage.StringFixed(2))
	}
}
