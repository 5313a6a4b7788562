package config

import "time"

// RegistryBackend selects the job registry implementation.
type RegistryBackend string

const (
	// RegistryBackendMemory keeps job state in process memory (default).
	RegistryBackendMemory RegistryBackend = "memory"
	// RegistryBackendRedis keeps job state in Redis with TTL-based retention,
	// for deployments running more than one replica behind the webhook URL.
	RegistryBackendRedis RegistryBackend = "redis"
)

// RegistryConfig contains job registry and reaper configuration.
type RegistryConfig struct {
	// Backend selects the registry store: "memory" or "redis".
	Backend RegistryBackend `env:"REGISTRY_BACKEND" envDefault:"memory"`

	// JobTTL is the Redis key TTL applied to job records when the redis
	// backend is active. Ignored by the memory backend (the reaper owns
	// retention there).
	JobTTL time.Duration `env:"REGISTRY_JOB_TTL" envDefault:"24h"`

	// Reaper configuration.
	Reaper ReaperConfig
}

// Sanitize applies guardrails to registry configuration values.
func (r *RegistryConfig) Sanitize() {
	if r.Backend != RegistryBackendMemory && r.Backend != RegistryBackendRedis {
		r.Backend = RegistryBackendMemory
	}
	if r.JobTTL < time.Minute {
		r.JobTTL = time.Minute
	}
	r.Reaper.Sanitize()
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// PendingMaxAge is the maximum age for pending jobs before they are
	// marked as failed. A job whose provider callback never arrives would
	// otherwise stay pending forever.
	PendingMaxAge time.Duration `env:"REAPER_PENDING_MAX_AGE" envDefault:"1h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"24h"`

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"24h"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals so a mistyped env value cannot turn the
	// reaper into a busy loop.
	if r.Interval < 30*time.Second {
		r.Interval = 30 * time.Second
	}
	if r.PendingMaxAge < time.Minute {
		r.PendingMaxAge = time.Minute
	}
	if r.CompletedMaxAge < 5*time.Minute {
		r.CompletedMaxAge = 5 * time.Minute
	}
	if r.FailedMaxAge < 5*time.Minute {
		r.FailedMaxAge = 5 * time.Minute
	}
}

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}
