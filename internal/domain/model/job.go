// Package model defines the core data types used throughout the relay.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobKind represents the external capability a job invokes.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobKind string

// JobStatus represents the current lifecycle state of a job.
type JobStatus string

const (
	// JobKindImage represents an asynchronous image-generation job. The
	// provider acknowledges the request and reports the result through the
	// webhook receiver.
	JobKindImage JobKind = "image"
	// JobKindVoice represents a voice-synthesis job.
	JobKindVoice JobKind = "voice"
	// JobKindText represents a text-generation (blog post) job.
	JobKindText JobKind = "text"

	// JobStatusPending indicates a job is waiting for its provider result.
	JobStatusPending JobStatus = "pending"
	// JobStatusCompleted indicates a job finished successfully. Terminal.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job failed. Terminal.
	JobStatusFailed JobStatus = "failed"
)

// UnmarshalText implements encoding.TextUnmarshaler for JobKind to allow env parsing.
func (k *JobKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	jk := JobKind(v)
	if jk.Valid() {
		*k = jk
		return nil
	}
	return fmt.Errorf("invalid JobKind: %q", v)
}

// Valid returns true if the JobKind is valid.
func (k JobKind) Valid() bool {
	return k == JobKindImage || k == JobKindVoice || k == JobKindText
}

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusPending || s == JobStatusCompleted || s == JobStatusFailed
}

// Terminal returns true once the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job represents one tracked asynchronous generation request. The ID doubles
// as the correlation token embedded in outbound provider requests, so the
// provider's eventual callback can be matched to the job that triggered it.
//
// Invariants, enforced by the registry: ID never changes; Result and Error
// are mutually exclusive and both nil while Status is pending; a terminal
// Status is never mutated again.
type Job struct {
	ID          string          `json:"id"`
	Kind        JobKind         `json:"kind"`
	Status      JobStatus       `json:"status"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Result      *string         `json:"result,omitempty"`
	Error       *string         `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy so registry internals never leak a shared Job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	cp := *j
	if j.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), j.Payload...)
	}
	if j.Result != nil {
		v := *j.Result
		cp.Result = &v
	}
	if j.Error != nil {
		v := *j.Error
		cp.Error = &v
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// DispatchRequest represents an admin-UI request to dispatch a generation job.
type DispatchRequest struct {
	Kind    JobKind         `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Validate validates the DispatchRequest fields.
func (r *DispatchRequest) Validate() error {
	if !r.Kind.Valid() {
		return errors.New("kind must be one of image, voice, text")
	}
	if len(r.Payload) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

// ImagePayload is the payload for image jobs.
type ImagePayload struct {
	Prompt string `json:"prompt"`
}

// Validate validates the ImagePayload fields.
func (p *ImagePayload) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return errors.New("prompt is required")
	}
	return nil
}

// TextPayload is the payload for text jobs. AgentType and AgentName mirror
// the admin form's agent selector.
type TextPayload struct {
	AgentType string `json:"agent_type"`
	AgentName string `json:"agent_name"`
	Topic     string `json:"topic,omitempty"`
}

// Validate validates the TextPayload against the agent catalog.
func (p *TextPayload) Validate() error {
	if err := ValidateAgent(p.AgentType, p.AgentName); err != nil {
		return err
	}
	if p.AgentType == AgentTypeResearcher && strings.TrimSpace(p.Topic) == "" {
		return errors.New("topic is required for researcher agents")
	}
	return nil
}

// VoicePayload is the payload for voice jobs.
type VoicePayload struct {
	Text string `json:"text"`
}

// Validate validates the VoicePayload fields.
func (p *VoicePayload) Validate() error {
	if strings.TrimSpace(p.Text) == "" {
		return errors.New("text is required")
	}
	return nil
}

// JobStatusResponse is the poller view of a job: status plus the terminal
// result or error, nothing else.
type JobStatusResponse struct {
	Status JobStatus `json:"status"`
	Result *string   `json:"result,omitempty"`
	Error  *string   `json:"error,omitempty"`
}

// StatusResponse projects a Job onto its poller view.
func (j *Job) StatusResponse() JobStatusResponse {
	return JobStatusResponse{
		Status: j.Status,
		Result: j.Result,
		Error:  j.Error,
	}
}

// JobStats represents counts of jobs per lifecycle state.
type JobStats struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// WebhookCallback is the canonical shape of an inbound provider callback
// after JMESPath mapping. Exactly one of Result or Error is expected.
type WebhookCallback struct {
	JobID  string `json:"job_id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Validate validates the WebhookCallback fields.
func (c *WebhookCallback) Validate() error {
	if strings.TrimSpace(c.JobID) == "" {
		return errors.New("job_id is required")
	}
	if c.Result == "" && c.Error == "" {
		return errors.New("callback must carry a result or an error")
	}
	return nil
}
