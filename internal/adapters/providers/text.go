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

// TextProvider fronts the LLM that writes post bodies. The provider answers
// synchronously: the generated text is the job result.
type TextProvider struct {
	cfg    config.TextProviderConfig
	client client
}

var _ core.Provider = (*TextProvider)(nil)

// NewTextProvider constructs a text provider adapter.
func NewTextProvider(cfg config.TextProviderConfig, doer Doer, timeout time.Duration) *TextProvider {
	return &TextProvider{cfg: cfg, client: newClient(doer, timeout)}
}

// Kind returns the job kind this provider serves.
func (p *TextProvider) Kind() model.JobKind {
	return model.JobKindText
}

type generateRequest struct {
	Model     string `json:"model"`
	AgentType string `json:"agent_type"`
	AgentName string `json:"agent_name"`
	Topic     string `json:"topic,omitempty"`
	Ref       string `json:"ref"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Send submits the agent selection and topic and returns the generated text.
func (p *TextProvider) Send(ctx context.Context, req core.ProviderRequest) (*core.ProviderResponse, error) {
	var payload model.TextPayload
	if err := json.Unmarshal(req.Payload, &payload); err != nil {
		return nil, fmt.Errorf("decode text payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	out := generateRequest{
		Model:     p.cfg.Model,
		AgentType: payload.AgentType,
		AgentName: payload.AgentName,
		Topic:     payload.Topic,
		Ref:       req.JobID,
	}

	var resp generateResponse
	headers := map[string]string{"x-api-key": p.cfg.APIKey}
	if err := p.client.postJSON(ctx, p.cfg.URL, headers, out, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("provider error: %s", resp.Error)
	}
	if resp.Text == "" {
		return nil, errors.New("provider returned empty text")
	}

	return &core.ProviderResponse{Result: resp.Text}, nil
}
