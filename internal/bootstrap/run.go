package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/blogi/relay/config"
)

// RunConfig groups dependencies for the service runtime.
type RunConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts all enabled services and blocks until a
// shutdown signal arrives or one of them fails. Shutdown is graceful: the
// HTTP server drains in-flight requests and the reaper finishes its sweep.
func RunServicesWithShutdown(ctx context.Context, cfg *RunConfig) error {
	if cfg == nil || cfg.Config == nil || cfg.Services == nil {
		return errors.New("run config, app config, and services are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, groupCtx := errgroup.WithContext(signalCtx)

	if cfg.Config.IsReaperEnabled() {
		g.Go(func() error {
			if err := cfg.Services.Reaper.Run(groupCtx); err != nil {
				return fmt.Errorf("reaper service: %w", err)
			}
			return nil
		})
	}

	if cfg.Config.IsHTTPServerEnabled() {
		server := StartHTTPServer(&HTTPServerConfig{
			Addr:     cfg.Config.HTTP.Addr,
			Services: cfg.Services,
			Logger:   logger,
		})
		g.Go(func() error {
			<-groupCtx.Done()
			// Shutdown gets a fresh context; groupCtx is already cancelled.
			if err := ShutdownHTTPServer(context.Background(), server, logger); err != nil {
				return fmt.Errorf("shutdown HTTP server: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()

	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		if closeErr := sink.Close(); closeErr != nil {
			logger.Warn("close metrics sink failed", "error", closeErr)
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("all services stopped")
	return nil
}
