package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogi/relay/config"
	"github.com/blogi/relay/internal/core"
)

const testTimeout = 5 * time.Second

func TestImageProviderSend(t *testing.T) {
	var got imagineRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-123", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hash":"abc","status":"queued"}`))
	}))
	defer srv.Close()

	p := NewImageProvider(config.ImageProviderConfig{
		URL:         srv.URL,
		APIKey:      "key-123",
		AccountHash: "acct-1",
	}, nil, testTimeout)

	resp, err := p.Send(context.Background(), core.ProviderRequest{
		JobID:       "job-1",
		Payload:     json.RawMessage(`{"prompt":"a fox in watercolor"}`),
		CallbackURL: "https://relay.example.com/api/webhook?job_id=job-1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Async)
	assert.Empty(t, resp.Result)

	assert.Equal(t, "a fox in watercolor", got.Prompt)
	assert.Equal(t, "https://relay.example.com/api/webhook?job_id=job-1", got.WebhookURL)
	assert.Equal(t, "job-1", got.Ref)
	assert.Equal(t, "acct-1", got.AccountHash)
}

func TestImageProviderRejectsEmptyPrompt(t *testing.T) {
	p := NewImageProvider(config.ImageProviderConfig{URL: "http://unused"}, nil, testTimeout)

	_, err := p.Send(context.Background(), core.ProviderRequest{
		JobID:   "job-1",
		Payload: json.RawMessage(`{"prompt":"  "}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt is required")
}

func TestImageProviderSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	p := NewImageProvider(config.ImageProviderConfig{URL: srv.URL}, nil, testTimeout)

	_, err := p.Send(context.Background(), core.ProviderRequest{
		JobID:   "job-1",
		Payload: json.RawMessage(`{"prompt":"a fox"}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "402")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestTextProviderSend(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"text":"# Go Generics\n\nA post."}`))
	}))
	defer srv.Close()

	p := NewTextProvider(config.TextProviderConfig{
		URL:   srv.URL,
		Model: "claude-3-haiku-20240307",
	}, nil, testTimeout)

	resp, err := p.Send(context.Background(), core.ProviderRequest{
		JobID: "job-2",
		Payload: json.RawMessage(
			`{"agent_type":"blog_researcher_ai_agent","agent_name":"topic_researcher","topic":"go generics"}`,
		),
	})
	require.NoError(t, err)
	assert.False(t, resp.Async)
	assert.Contains(t, resp.Result, "Go Generics")

	assert.Equal(t, "claude-3-haiku-20240307", got.Model)
	assert.Equal(t, "topic_researcher", got.AgentName)
	assert.Equal(t, "go generics", got.Topic)
	assert.Equal(t, "job-2", got.Ref)
}

func TestTextProviderEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()

	p := NewTextProvider(config.TextProviderConfig{URL: srv.URL}, nil, testTimeout)

	_, err := p.Send(context.Background(), core.ProviderRequest{
		JobID: "job-2",
		Payload: json.RawMessage(
			`{"agent_type":"blog_artist_ai_agent","agent_name":"prompt_artist"}`,
		),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty text")
}

func TestTextProviderProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model overloaded"}`))
	}))
	defer srv.Close()

	p := NewTextProvider(config.TextProviderConfig{URL: srv.URL}, nil, testTimeout)

	_, err := p.Send(context.Background(), core.ProviderRequest{
		JobID: "job-2",
		Payload: json.RawMessage(
			`{"agent_type":"blog_artist_ai_agent","agent_name":"prompt_artist"}`,
		),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestVoiceProviderSend(t *testing.T) {
	var got synthesizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "xi-key", r.Header.Get("xi-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"audio_url":"https://audio/x.mp3"}`))
	}))
	defer srv.Close()

	p := NewVoiceProvider(config.VoiceProviderConfig{
		URL:     srv.URL,
		APIKey:  "xi-key",
		VoiceID: "narrator",
	}, nil, testTimeout)

	resp, err := p.Send(context.Background(), core.ProviderRequest{
		JobID:   "job-3",
		Payload: json.RawMessage(`{"text":"read this post"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "https://audio/x.mp3", resp.Result)
	assert.Equal(t, "narrator", got.VoiceID)
	assert.Equal(t, "job-3", got.Ref)
}

func TestVoiceProviderNetworkError(t *testing.T) {
	// Closed server: the send itself fails.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	p := NewVoiceProvider(config.VoiceProviderConfig{URL: srv.URL}, nil, testTimeout)

	_, err := p.Send(context.Background(), core.ProviderRequest{
		JobID:   "job-3",
		Payload: json.RawMessage(`{"text":"read this"}`),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")
}

func TestProviderKinds(t *testing.T) {
	assert.Equal(t, "image", string(NewImageProvider(config.ImageProviderConfig{}, nil, testTimeout).Kind()))
	assert.Equal(t, "text", string(NewTextProvider(config.TextProviderConfig{}, nil, testTimeout).Kind()))
	assert.Equal(t, "voice", string(NewVoiceProvider(config.VoiceProviderConfig{}, nil, testTimeout).Kind()))
}
