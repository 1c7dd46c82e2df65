package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-rate-signals/pipeline"
	"github.com/aluiziolira/go-rate-signals/service"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(opts *options) *cobra.Command {
	var (
		req       service.AnalysisRequest
		ratesFile string
		snapshot  bool
		revenue   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Recommend a price per room type for one night",
		Example: `  ratesignals analyze --property hotel-1 --date 2025-03-15 --rates rates.yaml
  ratesignals analyze --property hotel-1 --date 2025-03-15 --snapshot --revenue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(opts.cfg)
			if err != nil {
				return err
			}
			defer a.close()
			defer a.startMetricsServer()()

			if err := seedRates(ctx, a.store, ratesFile, req.PropertyID); err != nil {
				return err
			}
			if err := runAnalysis(ctx, cmd, a, req); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if snapshot {
				readings, err := a.svc.MarketSnapshot(ctx, req)
				if err != nil {
					return err
				}
				printSnapshot(out, readings)
			}
			if revenue {
				report, err := a.svc.RunRevenuePerformance(ctx, req)
				if err != nil {
					return err
				}
				printRevenue(out, report)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.PropertyID, "property", "", "Property ID to price")
	flags.StringVar(&req.TargetDate, "date", "", "Night to price, YYYY-MM-DD")
	flags.StringVar(&ratesFile, "rates", "", "YAML file with the property's own room rates")
	flags.BoolVar(&snapshot, "snapshot", false, "Also print the market in broad room categories")
	flags.BoolVar(&revenue, "revenue", false, "Also rank estimated revenue against competitors")
	_ = cmd.MarkFlagRequired("property")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

// runAnalysis computes recommendations and writes them in the configured
// output format.
func runAnalysis(ctx context.Context, cmd *cobra.Command, a *app, req service.AnalysisRequest) error {
	startTime := time.Now()
	recs, err := a.svc.RunPriceAnalysis(ctx, req)
	if err != nil {
		return err
	}

	writer, err := pipeline.NewWriter(a.cfg.OutputFormat, a.cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("creating writer: %w", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()
	if err := writer.Write(recs); err != nil {
		return fmt.Errorf("writing recommendations: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	printAnalysisSummary(cmd.OutOrStdout(), req, recs, time.Since(startTime), a.cfg.OutputFile)
	return nil
}
