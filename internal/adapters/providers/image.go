package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"
)

// ImageProvider dispatches Midjourney-style image generation requests. The
// provider only acknowledges the request; the rendered image arrives later
// as a POST to the webhook URL embedded in the request.
type ImageProvider struct {
	cfg    config.ImageProviderConfig
	client client
}

var _ core.Provider = (*ImageProvider)(nil)

// NewImageProvider constructs an image provider adapter. Pass a nil Doer to
// use a default http.Client with the given timeout.
func NewImageProvider(cfg config.ImageProviderConfig, doer Doer, timeout time.Duration) *ImageProvider {
	return &ImageProvider{cfg: cfg, client: newClient(doer, timeout)}
}

// Kind returns the job kind this provider serves.
func (p *ImageProvider) Kind() model.JobKind {
	return model.JobKindImage
}

type imagineRequest struct {
	Prompt      string `json:"prompt"`
	WebhookURL  string `json:"webhook_url"`
	Ref         string `json:"ref"`
	AccountHash string `json:"account_hash,omitempty"`
}

type imagineResponse struct {
	Hash   string `json:"hash"`
	Status string `json:"status"`
}

// Send submits the prompt with the correlation id both as the callback URL's
// job_id parameter and as the provider-side ref, then returns an async ack.
func (p *ImageProvider) Send(ctx context.Context, req core.ProviderRequest) (*core.ProviderResponse, error) {
	var payload model.ImagePayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	out := imagineRequest{
		Prompt:      payload.Prompt,
		WebhookURL:  req.CallbackURL,
		Ref:         req.JobID,
		AccountHash: p.cfg.AccountHash,
	}

	var ack imagineResponse
	headers := map[string]string{"api-key": p.cfg.APIKey}
	if err := p.client.postJSON(ctx, p.cfg.URL, headers, out, &ack); err != nil {
		return nil, err
	}

	return &core.ProviderResponse{Async: true}, nil
}
