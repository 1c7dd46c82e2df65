package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aluiziolira/go-rate-signals/config"
	"github.com/spf13/cobra"
)

type options struct {
	verbose      bool
	envFiles     []string
	parallelism  int
	rps          float64
	timeout      time.Duration
	radiusKm     float64
	rulesFile    string
	databaseURL  string
	redisAddr    string
	metricsAddr  string
	outputFile   string
	outputFormat string
	renderJS     bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ratesignals",
		Short: "Market-signal ingestion and nightly price recommendations",
		Long: `ratesignals collects competitor hotels, their room prices and local
events around a property, then recommends a price per room type for a night.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, level := newLogger(opts.verbose)
			slog.SetDefault(logger)
			slog.SetLogLoggerLevel(level.Level())

			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, "Dotenv files to load (default .env)")
	flags.IntVar(&opts.parallelism, "parallel", 0, "Concurrent requests per host")
	flags.Float64Var(&opts.rps, "rps", 0, "Requests per second per source (0 disables limiting)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout")
	flags.Float64Var(&opts.radiusKm, "radius", 0, "Default search radius in kilometres")
	flags.StringVar(&opts.rulesFile, "pricing-rules", "", "YAML file overriding pricing constants")
	flags.StringVar(&opts.databaseURL, "database-url", "", "Postgres DSN; in-memory store when empty")
	flags.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address for the directory cache")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	flags.StringVar(&opts.outputFile, "output", "", "Recommendation output file")
	flags.StringVar(&opts.outputFormat, "format", "", "Output format: csv, json, or dual")
	flags.BoolVar(&opts.renderJS, "render-js", false, "Render booking pages in headless Chrome")

	root.AddCommand(newIngestCmd(opts))
	root.AddCommand(newAnalyzeCmd(opts))
	root.AddCommand(newServeCmd(opts))
	return root
}

// buildConfig layers defaults, dotenv and environment variables, then any
// flags set explicitly on the command line.
func buildConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if err := config.LoadDotEnv(opts.envFiles...); err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("parallel") {
		cfg.Parallelism = opts.parallelism
	}
	if flags.Changed("rps") {
		cfg.RequestsPerSecond = opts.rps
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("radius") {
		cfg.RadiusKm = opts.radiusKm
	}
	if flags.Changed("pricing-rules") {
		rules, err := config.LoadPricingRules(opts.rulesFile)
		if err != nil {
			return nil, err
		}
		cfg.Pricing = rules
	}
	if flags.Changed("database-url") {
		cfg.DatabaseURL = opts.databaseURL
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = opts.redisAddr
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("output") {
		cfg.OutputFile = opts.outputFile
	}
	if flags.Changed("format") {
		cfg.OutputFormat = strings.ToLower(opts.outputFormat)
	}
	if flags.Changed("render-js") {
		cfg.Booking.RenderJS = opts.renderJS
	}
	cfg.Verbose = opts.verbose

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
