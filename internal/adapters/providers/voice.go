package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/domain/model"
)

// VoiceProvider fronts the voice-synthesis API that reads a post aloud. The
// provider answers synchronously with a URL to the rendered audio.
type VoiceProvider struct {
	cfg    config.VoiceProviderConfig
	client client
}

var _ core.Provider = (*VoiceProvider)(nil)

// NewVoiceProvider constructs a voice provider adapter.
func NewVoiceProvider(cfg config.VoiceProviderConfig, doer Doer, timeout time.Duration) *VoiceProvider {
	return &VoiceProvider{cfg: cfg, client: newClient(doer, timeout)}
}

// Kind returns the job kind this provider serves.
func (p *VoiceProvider) Kind() model.JobKind {
	return model.JobKindVoice
}

type synthesizeRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
	Ref     string `json:"ref"`
}

type synthesizeResponse struct {
	AudioURL string `json:"audio_url"`
	Error    string `json:"error,omitempty"`
}

// Send submits the text and returns the audio URL.
func (p *VoiceProvider) Send(ctx context.Context, req core.ProviderRequest) (*core.ProviderResponse, error) {
	var payload model.VoicePayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode voice payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	out := synthesizeRequest{
		Text:    payload.Text,
		VoiceID: p.cfg.VoiceID,
		Ref:     req.JobID,
	}

	var resp synthesizeResponse
	headers := map[string]string{"xi-api-key": p.cfg.APIKey}
	if err := p.client.postJSON(ctx, p.cfg.URL, headers, out, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("provider error: %s", resp.Error)
	}
	if resp.AudioURL == "" {
		return nil, errors.New("provider returned empty audio url")
	}

	return &core.ProviderResponse{Result: resp.AudioURL}, nil
}
