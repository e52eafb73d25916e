package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/dailybrief/internal/app"
	"github.com/deusflow/dailybrief/internal/config"
	"github.com/deusflow/dailybrief/internal/logger"
	"github.com/deusflow/dailybrief/internal/metrics"
	"github.com/deusflow/dailybrief/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /health, /metrics and POST /run over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			apiKey := config.Secret(cfg.Server.APIKeyEnv)
			if apiKey == "" {
				logger.Warn("no api key configured, POST /run is unauthenticated", "env", cfg.Server.APIKeyEnv)
			}

			run := func(ctx context.Context, req server.RunRequest) (any, error) {
				path := configPath
				if req.Config != "" {
					path = req.Config
				}
				cfg, err := loadConfig(path)
				if err != nil {
					return nil, err
				}
				return runLocked(ctx, cfg, app.RunOptions{RunID: req.RunID, DryRun: req.DryRun})
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.NewServer(server.NewHandler(run, metrics.Global, apiKey)),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "addr", addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down http server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr from config)")
	return cmd
}
