// Package redisstore provides a Redis-backed job registry for deployments
// running more than one replica behind the webhook URL. Job state stays
// transient: every key carries a TTL, so Redis retention backs up the reaper
// rather than replacing it.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"

	apperrors "github.com/blogi/relay/internal/errors"
)

const defaultKeyPrefix = "job:"

// txRetries bounds optimistic-lock retries when a WATCH transaction loses a
// race. Beyond that the job has almost certainly gone terminal, so the last
// read decides between conflict and retry exhaustion.
const txRetries = 3

// Registry is a Redis-backed job registry. Terminal transitions use
// WATCH/MULTI optimistic locking so two racing callers cannot both win.
type Registry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration

	now func() time.Time
}

var _ core.JobRegistry = (*Registry)(nil)

// Options configures a Registry.
type Options struct {
	// Client is the Redis client. Required.
	Client redis.UniversalClient
	// TTL is applied to every job key. Required, must be positive.
	TTL time.Duration
	// Prefix overrides the default "job:" key prefix.
	Prefix string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewRegistry constructs a Redis-backed registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.TTL <= 0 {
		return nil, errors.New("job TTL must be positive")
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		client: opts.Client,
		prefix: prefix,
		ttl:    opts.TTL,
		now:    now,
	}, nil
}

func (r *Registry) key(id string) string {
	return r.prefix + id
}

// Create allocates a new pending job with a fresh correlation id.
func (r *Registry) Create(
	ctx context.Context,
	kind model.JobKind,
	payload json.RawMessage,
) (*model.Job, error) {
	if !kind.Valid() {
		return nil, apperrors.Validationf("invalid job kind: %q", kind)
	}

	job := &model.Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    model.JobStatusPending,
		Payload:   append(json.RawMessage(nil), payload...),
		CreatedAt: r.now().UTC(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := r.client.Set(ctx, r.key(job.ID), data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("redis set: %w", err)
	}

	return job, nil
}

// Get returns a snapshot of the job, or a not_found error.
func (r *Registry) Get(ctx context.Context, id string) (*model.Job, error) {
	data, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFoundf("job %q not found", id)
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

// Complete transitions a pending job to completed with the given result.
func (r *Registry) Complete(ctx context.Context, id, result string) (*model.Job, error) {
	return r.finish(ctx, id, model.JobStatusCompleted, result)
}

// Fail transitions a pending job to failed with the given error message.
func (r *Registry) Fail(ctx context.Context, id, errMsg string) (*model.Job, error) {
	return r.finish(ctx, id, model.JobStatusFailed, errMsg)
}

func (r *Registry) finish(
	ctx context.Context,
	id string,
	status model.JobStatus,
	value string,
) (*model.Job, error) {
	key := r.key(id)
	var finished *model.Job

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return apperrors.NotFoundf("job %q not found", id)
			}
			return fmt.Errorf("redis get: %w", err)
		}

		var job model.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("unmarshal job: %w", err)
		}
		if job.Status.Terminal() {
			return apperrors.Conflictf("job %q is already %s", id, job.Status)
		}

		completedAt := r.now().UTC()
		job.Status = status
		job.CompletedAt = &completedAt
		if status == model.JobStatusCompleted {
			job.Result = &value
		} else {
			job.Error = &value
		}

		updated, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, redis.KeepTTL)
			return nil
		})
		if err != nil {
			return err
		}

		finished = &job
		return nil
	}

	for range txRetries {
		err := r.client.Watch(ctx, txn, key)
		if err == nil {
			return finished, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Lost the optimistic lock; re-read and try again.
			continue
		}
		return nil, err
	}

	// Every retry lost the WATCH race. The winner must have gone terminal.
	return nil, apperrors.Conflictf("job %q transition lost concurrent update race", id)
}

// Stats returns job counts per lifecycle state by scanning the job keyspace.
func (r *Registry) Stats(ctx context.Context) (*model.JobStats, error) {
	stats := &model.JobStats{}
	err := r.scanJobs(ctx, func(_ string, job *model.Job) error {
		switch job.Status {
		case model.JobStatusPending:
			stats.Pending++
		case model.JobStatusCompleted:
			stats.Completed++
		case model.JobStatusFailed:
			stats.Failed++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// FailPendingBefore fails pending jobs created before the cutoff.
func (r *Registry) FailPendingBefore(
	ctx context.Context,
	cutoff time.Time,
	reason string,
) (int, error) {
	count := 0
	err := r.scanJobs(ctx, func(_ string, job *model.Job) error {
		if job.Status != model.JobStatusPending || !job.CreatedAt.Before(cutoff) {
			return nil
		}
		if _, err := r.Fail(ctx, job.ID, reason); err != nil {
			// A callback may have landed between the scan and the fail.
			if apperrors.IsConflict(err) || apperrors.IsNotFound(err) {
				return nil
			}
			return err
		}
		count++
		return nil
	})
	return count, err
}

// DeleteTerminalBefore removes jobs in the given terminal status that
// finished before the cutoff.
func (r *Registry) DeleteTerminalBefore(
	ctx context.Context,
	status model.JobStatus,
	cutoff time.Time,
) (int, error) {
	count := 0
	err := r.scanJobs(ctx, func(key string, job *model.Job) error {
		if job.Status != status || !job.Status.Terminal() {
			return nil
		}
		if job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			return nil
		}
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		count++
		return nil
	})
	return count, err
}

// scanJobs iterates every job key and invokes fn with the decoded job.
// Keys that disappear mid-scan (TTL expiry) are skipped.
func (r *Registry) scanJobs(ctx context.Context, fn func(key string, job *model.Job) error) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := r.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return fmt.Errorf("redis get %s: %w", key, err)
		}

		var job model.Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			return fmt.Errorf("unmarshal job %s: %w", key, err)
		}
		if err := fn(key, &job); err != nil {
			return err
		}
	}
	return iter.Err()
}
