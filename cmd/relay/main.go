// Command relay runs the webhook correlation and job-status relay for the
// blog-generation admin.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateServiceConfig(cfgPtr); err != nil {
		return err
	}

	redisClient, err := connectRedisIfNeeded(cfgPtr, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      cfgPtr,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.RunConfig{
		Config:   cfgPtr,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	enabledServices := bootstrap.GetEnabledServices(cfg)
	logger.InfoContext(ctx, "starting relay service",
		"registry_backend", cfg.Registry.Backend,
		"base_url", cfg.HTTP.BaseURL,
		"enabled_services", enabledServices)
}

// connectRedisIfNeeded dials Redis only when the redis registry backend is
// configured. The memory backend needs no shared infrastructure.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func connectRedisIfNeeded(cfg *config.AppConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if cfg.Registry.Backend != config.RegistryBackendRedis {
		return nil, nil
	}

	client, err := bootstrap.ConnectRedis(bootstrap.RedisConnConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}
