package httpx

import (
	"errors"
	"io"
	"net/http"

	"github.com/blogi/relay/internal/service"
)

// maxCallbackBody bounds inbound webhook bodies. Generated artifacts are URLs
// or text snippets, never megabytes.
const maxCallbackBody = 1 << 20

// WebhookHandlers provides the HTTP handler for inbound provider callbacks.
type WebhookHandlers struct {
	Svc *service.WebhookService
}

// ReceiveCallback handles a provider's result callback. The raw body is
// handed to the webhook service, which owns the payload-shape mapping.
//
// Duplicates are acknowledged with 200 so retrying providers stop retrying.
func (h *WebhookHandlers) ReceiveCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}
	if len(body) == 0 {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: errors.New("callback body is required")},
		)
		return
	}

	outcome, err := h.Svc.HandleCallback(r.Context(), body, r.URL.Query().Get("job_id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, outcome)
}
