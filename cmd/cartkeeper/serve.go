package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/cartkeeper"
	"github.com/aretw0/cartkeeper/internal/cli"
	httpAdapter "github.com/aretw0/cartkeeper/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Starts the cart API over HTTP, backed by the configured provider.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port, _ = cmd.Flags().GetString("port")
		}
		if cmd.Flags().Changed("debug") {
			cfg.Server.Debug, _ = cmd.Flags().GetBool("debug")
		}

		logger, err := cli.NewLogger(cfg.Log)
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		rt, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Warn("Failed to close runtime", "err", err)
			}
		}()

		opts := []httpAdapter.Option{
			httpAdapter.WithLogger(logger),
			httpAdapter.WithMetrics(rt.Registry),
			httpAdapter.WithDebug(cfg.Server.Debug),
			httpAdapter.WithVersion(cartkeeper.Version),
		}
		if cfg.Server.RateLimit.Enabled {
			opts = append(opts, httpAdapter.WithRateLimit(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst))
		}
		handler, err := httpAdapter.NewHandler(ctx, rt.Coordinator, opts...)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting cartkeeper server",
				"address", srv.Addr,
				"provider", cfg.Provider.Kind,
				"horizon", cfg.Provider.Horizon,
				"debug", cfg.Server.Debug,
			)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				if err := srv.Close(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("debug", false, "Enable the forced-expiry route")
}
