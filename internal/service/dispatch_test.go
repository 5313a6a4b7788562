package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/blogi/relay/internal/core"
	"github.com/blogi/relay/internal/data/memstore"
	"github.com/blogi/relay/internal/domain/model"
	"github.com/blogi/relay/internal/mocks"

	apperrors "github.com/blogi/relay/internal/errors"
)

const testBaseURL = "https://relay.example.ngrok.app"

func newDispatchService(t *testing.T, reg core.JobRegistry, providers ...core.Provider) *DispatchService {
	t.Helper()
	svc, err := NewDispatchService(DispatchServiceOptions{
		Registry:  reg,
		Providers: providers,
		BaseURL:   testBaseURL,
	})
	require.NoError(t, err)
	return svc
}

func imageProvider(ctrl *gomock.Controller) *mocks.MockProvider {
	p := mocks.NewMockProvider(ctrl)
	p.EXPECT().Kind().Return(model.JobKindImage).AnyTimes()
	return p
}

func TestNewDispatchServiceValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()
	provider := imageProvider(ctrl)

	_, err := NewDispatchService(DispatchServiceOptions{
		Providers: []core.Provider{provider}, BaseURL: testBaseURL,
	})
	require.Error(t, err)

	_, err = NewDispatchService(DispatchServiceOptions{
		Registry: reg, Providers: []core.Provider{provider},
	})
	require.Error(t, err)

	_, err = NewDispatchService(DispatchServiceOptions{
		Registry: reg, BaseURL: testBaseURL,
	})
	require.Error(t, err)

	dup := imageProvider(ctrl)
	_, err = NewDispatchService(DispatchServiceOptions{
		Registry: reg, Providers: []core.Provider{provider, dup}, BaseURL: testBaseURL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider")
}

func TestDispatchAsyncProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()
	provider := imageProvider(ctrl)

	var captured core.ProviderRequest
	provider.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req core.ProviderRequest) (*core.ProviderResponse, error) {
			captured = req
			return &core.ProviderResponse{Async: true}, nil
		})

	svc := newDispatchService(t, reg, provider)

	job, err := svc.Dispatch(context.Background(), &model.DispatchRequest{
		Kind:    model.JobKindImage,
		Payload: json.RawMessage(`{"prompt":"a fox in the snow"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, job.Status)

	// The correlation id travels with the outbound request.
	assert.Equal(t, job.ID, captured.JobID)
	assert.Equal(t, testBaseURL+"/api/webhook?job_id="+job.ID, captured.CallbackURL)
	assert.JSONEq(t, `{"prompt":"a fox in the snow"}`, string(captured.Payload))

	got, err := reg.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)
}

func TestDispatchSyncProviderCompletesInline(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Kind().Return(model.JobKindText).AnyTimes()
	provider.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(&core.ProviderResponse{Result: "generated post body"}, nil)

	svc := newDispatchService(t, reg, provider)

	job, err := svc.Dispatch(context.Background(), &model.DispatchRequest{
		Kind:    model.JobKindText,
		Payload: json.RawMessage(`{"agent_type":"blog_researcher_ai_agent","agent_name":"topic_researcher","topic":"go generics"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Result)
	assert.Equal(t, "generated post body", *job.Result)
}

// A provider send failure never bubbles up as an error: the job is failed in
// the registry first so the caller still gets a pollable id.
func TestDispatchProviderFailureRecordsFailedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()
	provider := imageProvider(ctrl)
	provider.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	svc := newDispatchService(t, reg, provider)

	job, err := svc.Dispatch(context.Background(), &model.DispatchRequest{
		Kind:    model.JobKindImage,
		Payload: json.RawMessage(`{"prompt":"a fox"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	require.NotNil(t, job.Error)
	assert.NotEmpty(t, *job.Error)
	assert.Contains(t, *job.Error, "connection refused")

	got, err := reg.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)
}

func TestDispatchValidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()
	svc := newDispatchService(t, reg, imageProvider(ctrl))
	ctx := context.Background()

	tests := []struct {
		name string
		req  *model.DispatchRequest
	}{
		{"invalid kind", &model.DispatchRequest{Kind: "video", Payload: json.RawMessage(`{}`)}},
		{"missing payload", &model.DispatchRequest{Kind: model.JobKindImage}},
		{"empty prompt", &model.DispatchRequest{Kind: model.JobKindImage, Payload: json.RawMessage(`{"prompt":"  "}`)}},
		{"malformed payload", &model.DispatchRequest{Kind: model.JobKindImage, Payload: json.RawMessage(`{`)}},
		{"researcher without topic", &model.DispatchRequest{
			Kind:    model.JobKindText,
			Payload: json.RawMessage(`{"agent_type":"blog_researcher_ai_agent","agent_name":"topic_researcher"}`),
		}},
		{"unknown agent", &model.DispatchRequest{
			Kind:    model.JobKindText,
			Payload: json.RawMessage(`{"agent_type":"blog_researcher_ai_agent","agent_name":"nope"}`),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Dispatch(ctx, tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "want validation error, got %v", err)
		})
	}

	// No jobs were created for any rejected request.
	stats, err := reg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.JobStats{}, stats)
}

func TestDispatchUnknownKindHasNoProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()
	svc := newDispatchService(t, reg, imageProvider(ctrl))

	_, err := svc.Dispatch(context.Background(), &model.DispatchRequest{
		Kind:    model.JobKindVoice,
		Payload: json.RawMessage(`{"text":"hello"}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestDispatchRegistryCreateFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockJobRegistry(ctrl)
	registry.EXPECT().
		Create(gomock.Any(), model.JobKindImage, gomock.Any()).
		Return(nil, apperrors.Internal("redis down"))

	svc := newDispatchService(t, registry, imageProvider(ctrl))

	_, err := svc.Dispatch(context.Background(), &model.DispatchRequest{
		Kind:    model.JobKindImage,
		Payload: json.RawMessage(`{"prompt":"a fox"}`),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsInternal(err))
}

func TestDispatchWritesConsoleLines(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := memstore.NewRegistry()
	provider := imageProvider(ctrl)
	provider.EXPECT().
		Send(gomock.Any(), gomock.Any()).
		Return(&core.ProviderResponse{Async: true}, nil)

	console := NewConsoleService(ConsoleServiceOptions{})
	svc, err := NewDispatchService(DispatchServiceOptions{
		Registry:  reg,
		Providers: []core.Provider{provider},
		BaseURL:   testBaseURL,
		Console:   console,
	})
	require.NoError(t, err)

	job, err := svc.Dispatch(context.Background(), &model.DispatchRequest{
		Kind:    model.JobKindImage,
		Payload: json.RawMessage(`{"prompt":"a fox"}`),
	})
	require.NoError(t, err)

	entries, _ := console.Tail(0)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Line, job.ID)
	assert.Contains(t, entries[1].Line, "awaiting provider callback")
}
