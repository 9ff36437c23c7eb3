package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
	"github.com/brettbedarf/codetree/workspace"
	"github.com/spf13/cobra"
)

var metricsAddr string

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Keep a workspace loaded and track external changes until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := util.GetLogger("main")
		cfg.Watch = true
		if cmd.Flags().Changed("metrics-addr") {
			cfg.MetricsAddr = metricsAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		root := ""
		if len(args) > 0 {
			root = args[0]
		}
		provider, err := openProvider(ctx, root)
		if err != nil {
			return err
		}

		ws := workspace.New(cfg, provider)
		defer ws.Close()
		if err := ws.Open(ctx); err != nil {
			return err
		}

		var srv *http.Server
		if cfg.MetricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			srv = &http.Server{
				Addr:              cfg.MetricsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
				ErrorLog:          util.NewLogLogger("MetricsServer", util.ErrorLevel),
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
					stop()
				}
			}()
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
		}

		logger.Info().Str("root", provider.Root()).Bool("watching", ws.Watching()).Msg("Workspace ready")
		<-ctx.Done()
		logger.Info().Msg("Shutting down")

		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("Failed to stop metrics server")
			}
		}
		return ws.Close()
	},
}

func init() {
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
