// Package service implements the relay's business logic: dispatching
// generation jobs to providers, applying webhook callbacks, the admin
// console, and registry retention.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"
	"github.com/blogi/relay/internal/observability/metrics"
	"github.com/blogi/relay/internal/observability/statsd"

	apperrors "github.com/blogi/relay/internal/errors"
)

// webhookPath is where providers POST their callbacks, relative to the
// externally reachable base URL.
const webhookPath = "/api/webhook"

// DispatchServiceOptions groups dependencies for DispatchService.
type DispatchServiceOptions struct {
	Registry  core.JobRegistry // Required: job registry
	Providers []core.Provider  // Required: one provider per job kind
	BaseURL   string           // Required: externally reachable base URL for callbacks
	Logger    *slog.Logger     // Optional: structured logger
	Console   core.ConsoleLog  // Optional: admin console sink
	Metrics   statsd.Sink      // Optional: metrics sink (StatsD-compatible)
}

// DispatchService creates jobs and sends the corresponding requests to the
// external providers. The correlation id is embedded in the outbound request
// (callback URL and ref field) so the provider's asynchronous callback can be
// matched back to the job.
type DispatchService struct {
	registry  core.JobRegistry
	providers map[model.JobKind]core.Provider
	baseURL   string
	logger    *slog.Logger
	console   core.ConsoleLog
	metrics   statsd.Sink
}

// NewDispatchService constructs a new DispatchService.
func NewDispatchService(opts DispatchServiceOptions) (*DispatchService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}
	if opts.BaseURL == "" {
		return nil, errors.New("BaseURL is required")
	}

	providers := make(map[model.JobKind]core.Provider, len(opts.Providers))
	for _, p := range opts.Providers {
		if p == nil {
			continue
		}
		if _, dup := providers[p.Kind()]; dup {
			return nil, fmt.Errorf("duplicate provider for kind %q", p.Kind())
		}
		providers[p.Kind()] = p
	}
	if len(providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dispatch_service")
	}

	return &DispatchService{
		registry:  opts.Registry,
		providers: providers,
		baseURL:   opts.BaseURL,
		logger:    logger,
		console:   opts.Console,
		metrics:   opts.Metrics,
	}, nil
}

// MustNewDispatchService constructs a new DispatchService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewDispatchService(opts DispatchServiceOptions) *DispatchService {
	svc, err := NewDispatchService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create DispatchService: %v", err))
	}
	return svc
}

// Dispatch validates the request, creates a pending job, and sends the
// outbound provider request. Whatever the provider does, the returned job id
// is valid to poll: a synchronous send failure is recorded on the job as an
// immediate failure rather than surfaced as an error.
//
// Errors are returned only when no job was created (validation, unknown
// kind, registry failure).
func (s *DispatchService) Dispatch(
	ctx context.Context,
	req *model.DispatchRequest,
) (*model.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validatePayload(req.Kind, req.Payload); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	provider, ok := s.providers[req.Kind]
	if !ok {
		return nil, apperrors.Validationf("no provider configured for kind %q", req.Kind)
	}

	job, err := s.registry.Create(ctx, req.Kind, req.Payload)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logInfo(ctx, "job dispatching", "id", job.ID, "kind", job.Kind)
	s.consolef("dispatching %s job %s", job.Kind, job.ID)

	start := time.Now()
	resp, err := provider.Send(ctx, core.ProviderRequest{
		JobID:       job.ID,
		Payload:     req.Payload,
		CallbackURL: s.callbackURL(job.ID),
	})
	if err != nil {
		return s.recordDispatchFailure(ctx, job, start, err)
	}

	if resp.Async {
		// The provider only acknowledged; the result arrives via webhook.
		s.consolef("%s job %s accepted, awaiting provider callback", job.Kind, job.ID)
		s.emit(job.Kind, "dispatch", metrics.ResultSuccess, time.Since(start), nil)
		return job, nil
	}

	completed, err := s.registry.Complete(ctx, job.ID, resp.Result)
	if err != nil {
		// A concurrent reaper sweep can beat a slow synchronous response.
		s.logWarn(ctx, "complete after synchronous response failed", "id", job.ID, "error", err)
		s.emit(job.Kind, "dispatch", metrics.ResultError, time.Since(start), err)
		return s.snapshot(ctx, job)
	}

	s.consolef("%s job %s completed", job.Kind, job.ID)
	s.emit(job.Kind, "dispatch", metrics.ResultSuccess, time.Since(start), nil)
	return completed, nil
}

// recordDispatchFailure marks the job failed so the UI always has a terminal
// status to show, then returns the failed snapshot.
func (s *DispatchService) recordDispatchFailure(
	ctx context.Context,
	job *model.Job,
	start time.Time,
	sendErr error,
) (*model.Job, error) {
	dispatchErr := apperrors.Wrapf(sendErr, apperrors.ErrCodeDispatch, "dispatch %s job", job.Kind)

	s.logWarn(ctx, "provider send failed", "id", job.ID, "kind", job.Kind, "error", sendErr)
	s.consolef("%s job %s failed: %v", job.Kind, job.ID, sendErr)
	s.emit(job.Kind, "dispatch", metrics.ResultError, time.Since(start), dispatchErr)

	failed, err := s.registry.Fail(ctx, job.ID, dispatchErr.Error())
	if err != nil {
		s.logWarn(ctx, "record dispatch failure failed", "id", job.ID, "error", err)
		return s.snapshot(ctx, job)
	}
	return failed, nil
}

// snapshot re-reads the job, falling back to the last known copy when the
// registry no longer has it.
func (s *DispatchService) snapshot(ctx context.Context, job *model.Job) (*model.Job, error) {
	fresh, err := s.registry.Get(ctx, job.ID)
	if err != nil {
		return job, nil
	}
	return fresh, nil
}

func (s *DispatchService) callbackURL(jobID string) string {
	return s.baseURL + webhookPath + "?job_id=" + url.QueryEscape(jobID)
}

// validatePayload applies kind-specific payload validation before a job is
// created, so client mistakes surface as 400s instead of failed jobs.
func validatePayload(kind model.JobKind, payload json.RawMessage) error {
	switch kind {
	case model.JobKindImage:
		var p model.ImagePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode image payload: %w", err)
		}
		return p.Validate()
	case model.JobKindText:
		var p model.TextPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode text payload: %w", err)
		}
		return p.Validate()
	case model.JobKindVoice:
		var p model.VoicePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return fmt.Errorf("decode voice payload: %w", err)
		}
		return p.Validate()
	default:
		return fmt.Errorf("invalid job kind: %q", kind)
	}
}

func (s *DispatchService) consolef(format string, args ...any) {
	if s.console != nil {
		s.console.Append(fmt.Sprintf(format, args...))
	}
}

func (s *DispatchService) emit(
	kind model.JobKind,
	transition, result string,
	duration time.Duration,
	err error,
) {
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Kind:       string(kind),
		Transition: transition,
		Result:     result,
		Duration:   duration,
		Err:        err,
	})
}

func (s *DispatchService) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *DispatchService) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
