// Package httpx provides the HTTP surface of the relay: dispatching jobs,
// receiving provider webhooks, and the admin polling endpoints.
package httpx

import (
	"errors"
	"net/http"

	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"
	"github.com/blogi/relay/internal/service"
)

// JobHandlers provides HTTP handlers for dispatching and polling jobs.
type JobHandlers struct {
	Dispatch *service.DispatchService
	Registry core.JobRegistry
}

// DispatchJob handles HTTP requests to dispatch a new generation job.
//
// The response always carries a job with a pollable id. A provider that could
// not be reached shows up as an already-failed job, not as an HTTP error.
func (h *JobHandlers) DispatchJob(w http.ResponseWriter, r *http.Request) {
	var req model.DispatchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	job, err := h.Dispatch.Dispatch(r.Context(), &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// JobStatus handles the admin UI's polling requests. The response is the
// narrow status projection: status plus result or error.
func (h *JobHandlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Registry.Get(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job.StatusResponse())
}

// GetJob handles HTTP requests for the full job record, payload included.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("job id is required")},
		)
		return
	}

	job, err := h.Registry.Get(r.Context(), jobID)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// JobStats handles HTTP requests for job counts per lifecycle state.
func (h *JobHandlers) JobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Registry.Stats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}
