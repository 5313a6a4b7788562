// Package core defines the ports between the relay's service layer and the
// registry/provider adapters. Services depend on these interfaces, not on
// concrete implementations.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/blogi/relay/internal/domain/model"
)

// JobRegistry defines the contract for the correlation-id job store.
//
// Implementations must make the terminal transition atomic: of two
// concurrent Complete/Fail calls on the same id, exactly one succeeds and
// the other observes a conflict error. Returned jobs are snapshots; mutating
// them never affects registry state.
type JobRegistry interface {
	// Create allocates a new pending job with a fresh correlation id.
	Create(ctx context.Context, kind model.JobKind, payload json.RawMessage) (*model.Job, error)

	// Get returns a snapshot of the job, or a not_found error.
	Get(ctx context.Context, id string) (*model.Job, error)

	// Complete transitions a pending job to completed with the given result.
	// Returns a conflict error if the job is already terminal and a
	// not_found error if the id is unknown.
	Complete(ctx context.Context, id, result string) (*model.Job, error)

	// Fail transitions a pending job to failed with the given error message.
	// Same error semantics as Complete.
	Fail(ctx context.Context, id, errMsg string) (*model.Job, error)

	// Stats returns job counts per lifecycle state.
	Stats(ctx context.Context) (*model.JobStats, error)

	// FailPendingBefore fails pending jobs created before the cutoff and
	// returns how many were failed. Used by the reaper for jobs whose
	// provider callback never arrived.
	FailPendingBefore(ctx context.Context, cutoff time.Time, reason string) (int, error)

	// DeleteTerminalBefore removes jobs in the given terminal status that
	// reached it before the cutoff and returns how many were removed.
	DeleteTerminalBefore(ctx context.Context, status model.JobStatus, cutoff time.Time) (int, error)
}

// ProviderRequest carries everything a provider adapter needs to build its
// outbound request.
type ProviderRequest struct {
	// JobID is the correlation id embedded in the outbound request.
	JobID string
	// Payload is the kind-specific request payload from the admin UI.
	Payload json.RawMessage
	// CallbackURL is the webhook URL (including the job id) an asynchronous
	// provider must POST its result to.
	CallbackURL string
}

// ProviderResponse is the synchronous outcome of a provider send.
type ProviderResponse struct {
	// Async is true when the provider only acknowledged the request and the
	// real result will arrive through the webhook receiver.
	Async bool
	// Result holds the generated artifact (text, audio URL) for synchronous
	// providers. Empty when Async is true.
	Result string
}

// Provider is the outbound port to one external generation capability.
type Provider interface {
	Kind() model.JobKind
	Send(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
}

// ConsoleLog records human-readable progress lines for the admin console.
type ConsoleLog interface {
	Append(line string)
}
