package redisstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blogi/relay/internal/domain/model"
	"github.com/blogi/relay/internal/testutil"

	apperrors "github.com/blogi/relay/internal/errors"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	client := testutil.SetupTestRedis(t)

	reg, err := NewRegistry(Options{Client: client, TTL: time.Hour})
	require.NoError(t, err)
	return reg
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(Options{TTL: time.Hour})
	require.Error(t, err)

	client := testutil.SetupTestRedis(t)
	_, err = NewRegistry(Options{Client: client})
	require.Error(t, err)
}

func TestCreateAndGet(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	job, err := reg.Create(ctx, model.JobKindImage, json.RawMessage(`{"prompt":"a fox"}`))
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, model.JobStatusPending, job.Status)

	got, err := reg.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, model.JobKindImage, got.Kind)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Error)
}

func TestGetUnknownID(t *testing.T) {
	reg := setupRegistry(t)

	_, err := reg.Get(context.Background(), "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCompleteAndFail(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	job, err := reg.Create(ctx, model.JobKindImage, nil)
	require.NoError(t, err)

	done, err := reg.Complete(ctx, job.ID, "https://img/x.png")
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, done.Status)
	require.NotNil(t, done.Result)
	assert.Equal(t, "https://img/x.png", *done.Result)

	// Terminal jobs reject further transitions.
	_, err = reg.Fail(ctx, job.ID, "late")
	assert.True(t, apperrors.IsConflict(err))

	other, err := reg.Create(ctx, model.JobKindVoice, nil)
	require.NoError(t, err)
	failed, err := reg.Fail(ctx, other.ID, "provider timeout")
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "provider timeout", *failed.Error)
}

func TestConcurrentTerminalTransitions(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	job, err := reg.Create(ctx, model.JobKindImage, nil)
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)

	for i := range callers {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			var opErr error
			if n%2 == 0 {
				_, opErr = reg.Complete(ctx, job.ID, "https://img/x.png")
			} else {
				_, opErr = reg.Fail(ctx, job.ID, "raced")
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case opErr == nil:
				wins++
			case apperrors.IsConflict(opErr):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", opErr)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
}

func TestStats(t *testing.T) {
	reg := setupRegistry(t)
	ctx := context.Background()

	a, _ := reg.Create(ctx, model.JobKindImage, nil)
	b, _ := reg.Create(ctx, model.JobKindText, nil)
	_, _ = reg.Create(ctx, model.JobKindVoice, nil)

	_, err := reg.Complete(ctx, a.ID, "done")
	require.NoError(t, err)
	_, err = reg.Fail(ctx, b.ID, "broke")
	require.NoError(t, err)

	stats, err := reg.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, &model.JobStats{Pending: 1, Completed: 1, Failed: 1}, stats)
}

func TestReaperOperations(t *testing.T) {
	current := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	client := testutil.SetupTestRedis(t)
	reg, err := NewRegistry(Options{
		Client: client,
		TTL:    time.Hour,
		Now:    func() time.Time { return current },
	})
	require.NoError(t, err)
	ctx := context.Background()

	stale, err := reg.Create(ctx, model.JobKindImage, nil)
	require.NoError(t, err)
	oldDone, err := reg.Create(ctx, model.JobKindImage, nil)
	require.NoError(t, err)
	_, err = reg.Complete(ctx, oldDone.ID, "done")
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)
	fresh, err := reg.Create(ctx, model.JobKindImage, nil)
	require.NoError(t, err)

	failed, err := reg.FailPendingBefore(ctx, current.Add(-time.Hour), "no callback received")
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	got, err := reg.Get(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, got.Status)

	got, err = reg.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPending, got.Status)

	deleted, err := reg.DeleteTerminalBefore(ctx, model.JobStatusCompleted, current.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = reg.Get(ctx, oldDone.ID)
	assert.True(t, apperrors.IsNotFound(err))
}
