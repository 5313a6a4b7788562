package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/adapters/providers"
	"github.com/blogi/relay/internal/adapters/redisstore"
	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/data/memstore"
	"github.com/blogi/relay/internal/observability/statsd"
	"github.com/blogi/relay/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Registry core.JobRegistry
	Dispatch *service.DispatchService
	Webhook  *service.WebhookService
	Console  *service.ConsoleService
	Reaper   *service.ReaperService

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds all application services from configuration and shared
// infrastructure. RedisClient may be nil when the memory backend is active.
func NewServices(deps *ServiceDeps) (*ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)

	registry, err := buildRegistry(cfg, deps.RedisClient)
	if err != nil {
		return nil, err
	}

	console := service.NewConsoleService(service.ConsoleServiceOptions{})

	var metricsSink statsd.Sink
	if observability.MetricsSink != nil {
		metricsSink = observability.MetricsSink
	}

	dispatch, err := service.NewDispatchService(service.DispatchServiceOptions{
		Registry:  registry,
		Providers: buildProviders(cfg.Providers),
		BaseURL:   cfg.HTTP.BaseURL,
		Logger:    logger,
		Console:   console,
		Metrics:   metricsSink,
	})
	if err != nil {
		return nil, fmt.Errorf("build dispatch service: %w", err)
	}

	webhook, err := service.NewWebhookService(service.WebhookServiceOptions{
		Registry: registry,
		Config:   cfg.Providers.Webhook,
		Logger:   logger,
		Console:  console,
		Metrics:  metricsSink,
	})
	if err != nil {
		return nil, fmt.Errorf("build webhook service: %w", err)
	}

	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Registry: registry,
		Config:   cfg.Registry.Reaper,
		Logger:   logger,
		Console:  console,
		Metrics:  metricsSink,
	})
	if err != nil {
		return nil, fmt.Errorf("build reaper service: %w", err)
	}

	return &ServiceContainer{
		Registry:      registry,
		Dispatch:      dispatch,
		Webhook:       webhook,
		Console:       console,
		Reaper:        reaper,
		Observability: observability,
	}, nil
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	container := ObservabilityContainer{MetricsConfig: cfg.Metrics}

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "relay",
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			container.MetricsSink = client
		}
	}

	return container
}

// buildRegistry selects the registry backend.
//
//nolint:ireturn // the backend is chosen at runtime from configuration.
func buildRegistry(cfg *config.AppConfig, client redis.UniversalClient) (core.JobRegistry, error) {
	switch cfg.Registry.Backend {
	case config.RegistryBackendRedis:
		if client == nil {
			return nil, fmt.Errorf("registry backend %q requires a redis connection", cfg.Registry.Backend)
		}
		registry, err := redisstore.NewRegistry(redisstore.Options{
			Client: client,
			TTL:    cfg.Registry.JobTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("build redis registry: %w", err)
		}
		return registry, nil
	case config.RegistryBackendMemory:
		return memstore.NewRegistry(), nil
	default:
		return nil, fmt.Errorf("unknown registry backend %q", cfg.Registry.Backend)
	}
}

// buildProviders constructs one provider adapter per job kind, all sharing
// the default HTTP client.
func buildProviders(cfg config.ProvidersConfig) []core.Provider {
	doer := http.DefaultClient
	return []core.Provider{
		providers.NewTextProvider(cfg.Text, doer, cfg.RequestTimeout),
		providers.NewImageProvider(cfg.Image, doer, cfg.RequestTimeout),
		providers.NewVoiceProvider(cfg.Voice, doer, cfg.RequestTimeout),
	}
}
