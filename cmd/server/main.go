package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"agegate/internal/app"
	"agegate/internal/platform/config"
	"agegate/internal/platform/httpserver"
	"agegate/internal/platform/logger"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server.Addr, a.Router)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting agegate",
			"addr", cfg.Server.Addr,
			"lane", cfg.Server.LaneID,
			"camera", cfg.Camera.Mode,
			"document_store", cfg.Document.Store,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info("shutting down")
		srvErr := srv.Shutdown(shutdownCtx)
		appErr := a.Shutdown(shutdownCtx)
		return errors.Join(srvErr, appErr)
	})

	return g.Wait()
}
