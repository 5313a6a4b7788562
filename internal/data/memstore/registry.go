// Package memstore provides the in-memory job registry. It is the default
// backend: job state is transient by design and a single process owns the
// webhook URL, so a mutex-guarded map is sufficient.
package memstore

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"

	apperrors "github.com/blogi/relay/internal/errors"
)

// Registry is a mutex-guarded in-memory job store. All methods are safe for
// concurrent use; the lock is never held across external I/O.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job

	// now is injectable for tests.
	now func() time.Time
}

var _ core.JobRegistry = (*Registry)(nil)

// Option customises a Registry.
type Option func(*Registry)

// WithClock overrides the registry clock. Tests use this to control
// CreatedAt/CompletedAt timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs an empty in-memory registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		jobs: make(map[string]*model.Job),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create allocates a new pending job with a fresh correlation id.
func (r *Registry) Create(
	_ context.Context,
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

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job.Clone(), nil
}

// Get returns a snapshot of the job, or a not_found error.
func (r *Registry) Get(_ context.Context, id string) (*model.Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()

	if !ok {
		return nil, apperrors.NotFoundf("job %q not found", id)
	}
	return job.Clone(), nil
}

// Complete transitions a pending job to completed with the given result.
func (r *Registry) Complete(_ context.Context, id, result string) (*model.Job, error) {
	return r.finish(id, model.JobStatusCompleted, result)
}

// Fail transitions a pending job to failed with the given error message.
func (r *Registry) Fail(_ context.Context, id, errMsg string) (*model.Job, error) {
	return r.finish(id, model.JobStatusFailed, errMsg)
}

// finish applies the single permitted terminal transition under the write
// lock, so two racing callers cannot both win.
func (r *Registry) finish(id string, status model.JobStatus, value string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("job %q not found", id)
	}
	if job.Status.Terminal() {
		return nil, apperrors.Conflictf("job %q is already %s", id, job.Status)
	}

	completedAt := r.now().UTC()
	job.Status = status
	job.CompletedAt = &completedAt
	if status == model.JobStatusCompleted {
		job.Result = &value
	} else {
		job.Error = &value
	}

	return job.Clone(), nil
}

// Stats returns job counts per lifecycle state.
func (r *Registry) Stats(_ context.Context) (*model.JobStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &model.JobStats{}
	for _, job := range r.jobs {
		switch job.Status {
		case model.JobStatusPending:
			stats.Pending++
		case model.JobStatusCompleted:
			stats.Completed++
		case model.JobStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

// FailPendingBefore fails pending jobs created before the cutoff.
func (r *Registry) FailPendingBefore(
	_ context.Context,
	cutoff time.Time,
	reason string,
) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, job := range r.jobs {
		if job.Status != model.JobStatusPending || !job.CreatedAt.Before(cutoff) {
			continue
		}
		completedAt := r.now().UTC()
		msg := reason
		job.Status = model.JobStatusFailed
		job.Error = &msg
		job.CompletedAt = &completedAt
		count++
	}
	return count, nil
}

// DeleteTerminalBefore removes jobs in the given terminal status that
// finished before the cutoff.
func (r *Registry) DeleteTerminalBefore(
	_ context.Context,
	status model.JobStatus,
	cutoff time.Time,
) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for id, job := range r.jobs {
		if job.Status != status || !job.Status.Terminal() {
			continue
		}
		if job.CompletedAt == nil || !job.CompletedAt.Before(cutoff) {
			continue
		}
		delete(r.jobs, id)
		count++
	}
	return count, nil
}

// Len reports how many jobs the registry currently holds.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
