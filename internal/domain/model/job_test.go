package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobKindValid(t *testing.T) {
	assert.True(t, JobKindImage.Valid())
	assert.True(t, JobKindVoice.Valid())
	assert.True(t, JobKindText.Valid())
	assert.False(t, JobKind("video").Valid())
	assert.False(t, JobKind("").Valid())
}

func TestJobKindUnmarshalText(t *testing.T) {
	var k JobKind
	require.NoError(t, k.UnmarshalText([]byte(" Image ")))
	assert.Equal(t, JobKindImage, k)

	err := k.UnmarshalText([]byte("video"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JobKind")
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusPending.Terminal())
	assert.True(t, JobStatusCompleted.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}

func TestJobClone(t *testing.T) {
	result := "https://img/x.png"
	now := time.Now()
	job := &Job{
		ID:          "job-1",
		Kind:        JobKindImage,
		Status:      JobStatusCompleted,
		Payload:     json.RawMessage(`{"prompt":"a fox"}`),
		Result:      &result,
		CreatedAt:   now,
		CompletedAt: &now,
	}

	cp := job.Clone()
	require.NotSame(t, job, cp)
	assert.Equal(t, job, cp)

	*cp.Result = "mutated"
	cp.Payload[0] = 'X'
	assert.Equal(t, "https://img/x.png", *job.Result)
	assert.Equal(t, byte('{'), job.Payload[0])
}

func TestDispatchRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     DispatchRequest
		wantErr string
	}{
		{
			name: "valid image",
			req:  DispatchRequest{Kind: JobKindImage, Payload: json.RawMessage(`{"prompt":"a fox"}`)},
		},
		{
			name:    "invalid kind",
			req:     DispatchRequest{Kind: "video", Payload: json.RawMessage(`{}`)},
			wantErr: "kind must be one of",
		},
		{
			name:    "missing payload",
			req:     DispatchRequest{Kind: JobKindText},
			wantErr: "payload is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestTextPayloadValidate(t *testing.T) {
	valid := TextPayload{AgentType: AgentTypeResearcher, AgentName: AgentNameTopicResearcher, Topic: "go generics"}
	require.NoError(t, valid.Validate())

	missingTopic := TextPayload{AgentType: AgentTypeResearcher, AgentName: AgentNameTopicEngineer}
	require.Error(t, missingTopic.Validate())

	artist := TextPayload{AgentType: AgentTypeArtist, AgentName: AgentNamePromptArtist}
	require.NoError(t, artist.Validate())

	badName := TextPayload{AgentType: AgentTypeArtist, AgentName: AgentNameTopicEngineer}
	require.Error(t, badName.Validate())

	badType := TextPayload{AgentType: "poet", AgentName: AgentNamePromptArtist}
	require.Error(t, badType.Validate())
}

func TestImageAndVoicePayloadValidate(t *testing.T) {
	require.Error(t, (&ImagePayload{Prompt: "  "}).Validate())
	require.NoError(t, (&ImagePayload{Prompt: "a fox"}).Validate())

	require.Error(t, (&VoicePayload{}).Validate())
	require.NoError(t, (&VoicePayload{Text: "read this"}).Validate())
}

func TestWebhookCallbackValidate(t *testing.T) {
	require.Error(t, (&WebhookCallback{Result: "x"}).Validate())
	require.Error(t, (&WebhookCallback{JobID: "job-1"}).Validate())
	require.NoError(t, (&WebhookCallback{JobID: "job-1", Result: "https://img/x.png"}).Validate())
	require.NoError(t, (&WebhookCallback{JobID: "job-1", Error: "render failed"}).Validate())
}

func TestStatusResponseProjection(t *testing.T) {
	errMsg := "provider timeout"
	job := &Job{ID: "job-2", Status: JobStatusFailed, Error: &errMsg}

	resp := job.StatusResponse()
	assert.Equal(t, JobStatusFailed, resp.Status)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, errMsg, *resp.Error)
}
