package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-rate-signals/models"
	"github.com/aluiziolira/go-rate-signals/service"
	"github.com/spf13/cobra"
)

func newIngestCmd(opts *options) *cobra.Command {
	var (
		req       service.IngestionRequest
		ratesFile string
		analyze   bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Collect competitors, events and competitor prices around a property",
		Example: `  ratesignals ingest --property hotel-1 --lat 32.5149 --lon -117.0382 --date 2025-03-15
  ratesignals ingest --property hotel-1 --lat 32.5149 --lon -117.0382 --skip booking --analyze`,
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

			startTime := time.Now()
			res, err := a.svc.RunIngestion(ctx, req)
			if err != nil {
				return err
			}
			printIngestionSummary(cmd.OutOrStdout(), res, time.Since(startTime))

			if !analyze {
				return nil
			}
			date := req.Date
			if date == "" {
				date = time.Now().UTC().Format(models.DateLayout)
			}
			return runAnalysis(ctx, cmd, a, service.AnalysisRequest{TargetDate: date, PropertyID: req.PropertyID})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.PropertyID, "property", "", "Property ID owning the ingested events")
	flags.Float64Var(&req.Latitude, "lat", 0, "Property latitude")
	flags.Float64Var(&req.Longitude, "lon", 0, "Property longitude")
	flags.Float64Var(&req.RadiusKm, "radius-km", 0, "Search radius for this run (default from configuration)")
	flags.StringVar(&req.City, "city", "", "City name (default: nearest configured metro area)")
	flags.StringVar(&req.Date, "date", "", "Night to price, YYYY-MM-DD (default today)")
	flags.StringSliceVar(&req.Skip, "skip", nil, "Sources to skip: booking, songkick, eventbrite, amadeus")
	flags.StringVar(&ratesFile, "rates", "", "YAML file with the property's own room rates")
	flags.BoolVar(&analyze, "analyze", false, "Recommend prices for the ingested night afterwards")
	_ = cmd.MarkFlagRequired("property")
	return cmd
}

