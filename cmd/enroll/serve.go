// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Enroll Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/enrollkit/enroll/internal/config"
	"github.com/enrollkit/enroll/internal/httpapi"
	"github.com/enrollkit/enroll/internal/logging"
	"github.com/enrollkit/enroll/internal/observability"
	"github.com/enrollkit/enroll/internal/registration"
	"github.com/enrollkit/enroll/internal/store"
)

// serveHooks lets tests observe the bound addresses.
type serveHooks struct {
	onReady func(apiAddr, metricsAddr string)
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the registration HTTP API",
		Long: `Serve the registration API and, unless metrics-addr is empty, the
metrics and health endpoints. Stops gracefully on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd, autoMigrate, serveHooks{})
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending PostgreSQL migrations before serving")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command, autoMigrate bool, hooks serveHooks) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := logging.SetDefault(serviceName, version, logOptions(cfg), cmd.ErrOrStderr())
	gin.SetMode(gin.ReleaseMode)

	logger.Info("starting enroll",
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Store.Driver,
		"notify", cfg.Notify.Driver,
	)

	if autoMigrate && cfg.Store.Driver == config.StorePostgres {
		if err := migrateUp(cfg.Store.DatabaseURL, logger); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer *observability.Server
	var recorder registration.Recorder
	var observer httpapi.RequestObserver
	metricsAddr := ""

	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, ready.Load, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		defer stopObservability(obsServer, logger)
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)

		recorder = obsServer.Metrics()
		observer = obsServer.Metrics()
		metricsAddr = obsServer.Addr()
	}

	comps, err := buildComponents(ctx, cfg, logger, recorder)
	if err != nil {
		return err
	}
	defer comps.Close()

	listener, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}

	apiServer := &http.Server{
		Handler:           httpapi.New(comps.service, logger, observer).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	apiErrCh := make(chan error, 1)
	go func() {
		defer close(apiErrCh)
		if serveErr := apiServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			apiErrCh <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	ready.Store(true)
	logger.Info("enroll ready", "http_addr", listener.Addr().String())
	if hooks.onReady != nil {
		hooks.onReady(listener.Addr().String(), metricsAddr)
	}

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case err, ok := <-apiErrCh:
		if ok {
			serveErr = oops.Code("HTTP_SERVE_FAILED").Wrap(err)
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}

	logger.Info("shutdown complete")
	return serveErr
}

func stopObservability(s *observability.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		logger.Error("server error, triggering shutdown", "server", serverName, "error", err)
		cancel()
	case <-ctx.Done():
	}
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("database schema up to date", "version", version)
	return nil
}
