package config

import (
	"strings"
	"time"
)

// ProvidersConfig groups configuration for the external generation providers.
type ProvidersConfig struct {
	// RequestTimeout bounds a single outbound provider call.
	RequestTimeout time.Duration `env:"PROVIDER_REQUEST_TIMEOUT" envDefault:"30s"`

	Text  TextProviderConfig  `envPrefix:"TEXT_PROVIDER_"`
	Image ImageProviderConfig `envPrefix:"IMAGE_PROVIDER_"`
	Voice VoiceProviderConfig `envPrefix:"VOICE_PROVIDER_"`

	Webhook WebhookConfig
}

// Sanitize applies guardrails to provider configuration values.
func (p *ProvidersConfig) Sanitize() {
	if p.RequestTimeout < time.Second {
		p.RequestTimeout = time.Second
	}
	p.Webhook.Sanitize()
}

// TextProviderConfig configures the LLM text-generation provider.
// The provider answers synchronously with the generated post body.
type TextProviderConfig struct {
	URL    string `env:"URL"    envDefault:"https://api.anthropic.com/v1/messages"`
	APIKey string `env:"API_KEY"`
	Model  string `env:"MODEL"  envDefault:"claude-3-haiku-20240307"`
}

// ImageProviderConfig configures the Midjourney-style image provider.
// The provider acknowledges the request and later POSTs the result to the
// webhook URL this service embeds in the request.
type ImageProviderConfig struct {
	URL         string `env:"URL" envDefault:"https://api.userapi.ai/midjourney/v2/imagine"`
	APIKey      string `env:"API_KEY"`
	AccountHash string `env:"ACCOUNT_HASH"`
}

// VoiceProviderConfig configures the voice-synthesis provider.
type VoiceProviderConfig struct {
	URL     string `env:"URL" envDefault:"https://api.elevenlabs.io/v1/text-to-speech"`
	APIKey  string `env:"API_KEY"`
	VoiceID string `env:"VOICE_ID" envDefault:"default"`
}

// WebhookConfig controls how inbound provider callbacks are mapped onto the
// canonical {job_id, result, error} shape. Each field is a JMESPath
// expression evaluated against the decoded callback body; empty expressions
// fall back to the canonical field names.
type WebhookConfig struct {
	JobIDExpr  string `env:"WEBHOOK_JOB_ID_EXPR"  envDefault:""`
	ResultExpr string `env:"WEBHOOK_RESULT_EXPR"  envDefault:""`
	ErrorExpr  string `env:"WEBHOOK_ERROR_EXPR"   envDefault:""`
}

// Sanitize trims stray whitespace from the configured expressions.
func (w *WebhookConfig) Sanitize() {
	w.JobIDExpr = strings.TrimSpace(w.JobIDExpr)
	w.ResultExpr = strings.TrimSpace(w.ResultExpr)
	w.ErrorExpr = strings.TrimSpace(w.ErrorExpr)
}
