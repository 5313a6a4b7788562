package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"
	"github.com/blogi/relay/internal/observability/metrics"
	"github.com/blogi/relay/internal/observability/statsd"

	apperrors "github.com/blogi/relay/internal/errors"
)

// JMESPathEvaluator abstracts JMESPath operations for testability.
type JMESPathEvaluator interface {
	Validate(expr string) error
	Evaluate(expr string, data any) (any, error)
}

// jmespathLibEvaluator implements JMESPathEvaluator using go-jmespath.
type jmespathLibEvaluator struct{}

func (j jmespathLibEvaluator) Validate(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := jmespath.Compile(expr)
	return err
}

func (j jmespathLibEvaluator) Evaluate(expr string, data any) (any, error) {
	return jmespath.Search(expr, data)
}

// Canonical callback field names, used when no expression is configured.
const (
	defaultJobIDExpr  = "job_id"
	defaultResultExpr = "result"
	defaultErrorExpr  = "error"
)

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Registry  core.JobRegistry     // Required: job registry
	Config    config.WebhookConfig // Optional: payload mapping expressions
	Logger    *slog.Logger         // Optional: structured logger
	Console   core.ConsoleLog      // Optional: admin console sink
	Metrics   statsd.Sink          // Optional: metrics sink (StatsD-compatible)
	Evaluator JMESPathEvaluator    // Optional: override JMESPath evaluation
}

// WebhookService applies inbound provider callbacks to the job registry.
//
// Providers disagree about callback shapes, so the service maps each body
// onto the canonical {job_id, result, error} form with configurable JMESPath
// expressions before applying the state transition. A callback for an
// already-terminal job is absorbed as a benign duplicate: providers retry
// delivery, and the first writer has already won.
type WebhookService struct {
	registry core.JobRegistry
	cfg      config.WebhookConfig
	logger   *slog.Logger
	console  core.ConsoleLog
	metrics  statsd.Sink
	jems     JMESPathEvaluator
}

// WebhookOutcome reports how a callback was applied.
type WebhookOutcome struct {
	JobID string
	// Status is the job's status after the callback was applied.
	Status model.JobStatus
	// Duplicate is true when the job was already terminal and the callback
	// was accepted without mutating state.
	Duplicate bool
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Registry == nil {
		return nil, errors.New("JobRegistry is required")
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	for _, expr := range []string{opts.Config.JobIDExpr, opts.Config.ResultExpr, opts.Config.ErrorExpr} {
		if err := jems.Validate(expr); err != nil {
			return nil, fmt.Errorf("invalid webhook mapping expression %q: %w", expr, err)
		}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{
		registry: opts.Registry,
		cfg:      opts.Config,
		logger:   logger,
		console:  opts.Console,
		metrics:  opts.Metrics,
		jems:     jems,
	}, nil
}

// MustNewWebhookService constructs a new WebhookService and panics on error.
func MustNewWebhookService(opts WebhookServiceOptions) *WebhookService {
	svc, err := NewWebhookService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create WebhookService: %v", err))
	}
	return svc
}

// HandleCallback decodes and applies one inbound callback body. urlJobID is
// the correlation id from the callback URL's query string; it backstops
// providers whose bodies do not echo the id.
//
// Error codes: validation when the body cannot be decoded or mapped,
// not_found when the job id is unknown (the registry may have been cleared;
// an accepted loss, never a reason to create an entry).
func (s *WebhookService) HandleCallback(
	ctx context.Context,
	body []byte,
	urlJobID string,
) (*WebhookOutcome, error) {
	cb, err := s.decode(body, urlJobID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome, err := s.apply(ctx, cb)
	if err != nil {
		s.emit(metrics.ResultError, time.Since(start), err)
		return nil, err
	}

	result := metrics.ResultSuccess
	if outcome.Duplicate {
		result = metrics.ResultDuplicate
	}
	s.emit(result, time.Since(start), nil)
	return outcome, nil
}

func (s *WebhookService) apply(
	ctx context.Context,
	cb *model.WebhookCallback,
) (*WebhookOutcome, error) {
	var (
		job *model.Job
		err error
	)
	if cb.Error != "" {
		job, err = s.registry.Fail(ctx, cb.JobID, cb.Error)
	} else {
		job, err = s.registry.Complete(ctx, cb.JobID, cb.Result)
	}

	switch {
	case err == nil:
		s.logInfo(ctx, "callback applied", "id", job.ID, "status", job.Status)
		s.consolef("webhook: %s job %s is %s", job.Kind, job.ID, job.Status)
		return &WebhookOutcome{JobID: job.ID, Status: job.Status}, nil

	case apperrors.IsConflict(err):
		// Already terminal: idempotent accept, stored state untouched.
		existing, getErr := s.registry.Get(ctx, cb.JobID)
		if getErr != nil {
			return nil, getErr
		}
		s.logInfo(ctx, "duplicate callback ignored", "id", cb.JobID, "status", existing.Status)
		return &WebhookOutcome{JobID: cb.JobID, Status: existing.Status, Duplicate: true}, nil

	case apperrors.IsNotFound(err):
		s.logWarn(ctx, "callback for unknown job", "id", cb.JobID)
		return nil, err

	default:
		return nil, err
	}
}

// decode maps the raw callback body onto the canonical callback shape.
func (s *WebhookService) decode(body []byte, urlJobID string) (*model.WebhookCallback, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "decode callback body")
	}

	jobID, err := s.extractString(doc, s.cfg.JobIDExpr, defaultJobIDExpr)
	if err != nil {
		return nil, err
	}
	if jobID == "" {
		jobID = urlJobID
	}
	result, err := s.extractString(doc, s.cfg.ResultExpr, defaultResultExpr)
	if err != nil {
		return nil, err
	}
	errMsg, err := s.extractString(doc, s.cfg.ErrorExpr, defaultErrorExpr)
	if err != nil {
		return nil, err
	}

	cb := &model.WebhookCallback{JobID: jobID, Result: result, Error: errMsg}
	if err := cb.Validate(); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	return cb, nil
}

// extractString evaluates the configured expression (or the canonical field
// name) against the document. Missing values yield ""; structured values are
// re-encoded as JSON so a nested result payload survives as a string.
func (s *WebhookService) extractString(doc any, expr, fallback string) (string, error) {
	if expr == "" {
		expr = fallback
	}

	v, err := s.jems.Evaluate(expr, doc)
	if err != nil {
		return "", apperrors.Wrapf(err, apperrors.ErrCodeValidation, "evaluate %q", expr)
	}

	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return "", apperrors.Wrapf(err, apperrors.ErrCodeValidation, "encode %q value", expr)
		}
		return string(encoded), nil
	}
}

func (s *WebhookService) consolef(format string, args ...any) {
	if s.console != nil {
		s.console.Append(fmt.Sprintf(format, args...))
	}
}

func (s *WebhookService) emit(result string, duration time.Duration, err error) {
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Kind:       "callback",
		Transition: "webhook",
		Result:     result,
		Duration:   duration,
		Err:        err,
	})
}

func (s *WebhookService) logInfo(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

func (s *WebhookService) logWarn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
