package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"
	"github.com/blogi/relay/internal/observability/statsd"
)

// stalePendingReason is recorded on jobs the reaper fails. The admin console
// shows this verbatim, so it reads like an operator-facing message.
const stalePendingReason = "no provider callback received before deadline"

// ReaperServiceOptions groups dependencies for ReaperService.
type ReaperServiceOptions struct {
	Registry core.JobRegistry    // Required: job registry
	Config   config.ReaperConfig // Required: reaper configuration
	Logger   *slog.Logger        // Optional: structured logger
	Console  core.ConsoleLog     // Optional: admin console sink
	Metrics  statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// ReaperService owns registry retention. Without it a job whose provider
// callback never arrives would stay pending forever, and terminal jobs would
// accumulate without bound.
//
// This service manages:
// - Failing stale pending jobs that never received a callback.
// - Deleting old completed jobs.
// - Deleting old failed jobs.
type ReaperService struct {
	registry core.JobRegistry
	config   config.ReaperConfig
	logger   *slog.Logger
	console  core.ConsoleLog
	metrics  statsd.Sink
}

// NewReaperService constructs a new ReaperService.
func NewReaperService(opts ReaperServiceOptions) (*ReaperService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reaper_service")
		logger.Debug("ReaperService initialized",
			"interval", opts.Config.Interval,
			"pending_max_age", opts.Config.PendingMaxAge,
			"completed_max_age", opts.Config.CompletedMaxAge,
			"failed_max_age", opts.Config.FailedMaxAge,
		)
	}

	return &ReaperService{
		registry: opts.Registry,
		config:   opts.Config,
		logger:   logger,
		console:  opts.Console,
		metrics:  opts.Metrics,
	}, nil
}

// Run starts the reaper loop and runs until the context is cancelled.
// It performs cleanup operations at the configured interval.
// Returns nil on graceful shutdown (context.Canceled), error otherwise.
func (s *ReaperService) Run(ctx context.Context) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting reaper service", "interval", s.config.Interval)
	}

	// Jitter prevents a thundering herd when multiple instances start together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if err := s.RunCleanup(ctx); err != nil {
		s.logCleanupError(ctx, err)
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "reaper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if err := s.RunCleanup(ctx); err != nil {
				// Keep running despite errors; the next tick retries.
				s.logCleanupError(ctx, err)
			}
		}
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (s *ReaperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
		// Graceful shutdown during jitter
	}
}

// RunCleanup performs one retention sweep. Exported so tests (and one-shot
// admin tooling) can invoke a sweep without the loop.
func (s *ReaperService) RunCleanup(ctx context.Context) error {
	start := time.Now()
	now := start

	failed, failErr := s.registry.FailPendingBefore(
		ctx, now.Add(-s.config.PendingMaxAge), stalePendingReason,
	)
	deletedCompleted, delCompletedErr := s.registry.DeleteTerminalBefore(
		ctx, model.JobStatusCompleted, now.Add(-s.config.CompletedMaxAge),
	)
	deletedFailed, delFailedErr := s.registry.DeleteTerminalBefore(
		ctx, model.JobStatusFailed, now.Add(-s.config.FailedMaxAge),
	)

	s.emitSweep(sweepCounts{
		Failed:           failed,
		DeletedCompleted: deletedCompleted,
		DeletedFailed:    deletedFailed,
	}, time.Since(start))

	if failed > 0 {
		s.consolef("reaper: failed %d stale pending job(s)", failed)
	}
	if s.logger != nil && (failed > 0 || deletedCompleted > 0 || deletedFailed > 0) {
		s.logger.InfoContext(ctx, "reaper sweep",
			"stale_failed", failed,
			"deleted_completed", deletedCompleted,
			"deleted_failed", deletedFailed,
			"duration", time.Since(start),
		)
	}

	return errors.Join(failErr, delCompletedErr, delFailedErr)
}

type sweepCounts struct {
	Failed           int
	DeletedCompleted int
	DeletedFailed    int
}

func (s *ReaperService) emitSweep(counts sweepCounts, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.Count("reaper.stale_failed", int64(counts.Failed), nil)
	s.metrics.Count("reaper.deleted", int64(counts.DeletedCompleted),
		map[string]string{"status": string(model.JobStatusCompleted)})
	s.metrics.Count("reaper.deleted", int64(counts.DeletedFailed),
		map[string]string{"status": string(model.JobStatusFailed)})
	s.metrics.Timing("reaper.sweep_duration", duration, nil)
}

func (s *ReaperService) logCleanupError(ctx context.Context, err error) {
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "reaper cleanup failed", "error", err)
	}
}

func (s *ReaperService) consolef(format string, args ...any) {
	if s.console != nil {
		s.console.Append(fmt.Sprintf(format, args...))
	}
}
