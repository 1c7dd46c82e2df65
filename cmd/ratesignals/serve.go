package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aluiziolira/go-rate-signals/api"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ingestion and analysis triggers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := opts.cfg
			if cmd.Flags().Changed("listen") {
				cfg.ListenAddr = listen
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			e := api.NewRouter(api.NewHandler(a.svc, cfg.SourceTimeout*2), a.metrics.Registry)
			return api.Serve(ctx, e, cfg.ListenAddr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (default :8080)")
	return cmd
}
