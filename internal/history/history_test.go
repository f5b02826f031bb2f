package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaconv/internal/dispatch"
	"mediaconv/internal/model"
)

func sampleSummary(id string, started time.Time) dispatch.Summary {
	ok := model.JobResult{Filename: "a.mkv", InputPath: "/in/a.mkv", OutputPath: "/in/converted/a.mp4", Slot: 1, Succeeded: true, Elapsed: 3 * time.Second, OutputSize: 2048}
	bad := model.JobResult{Filename: "b.avi", InputPath: "/in/b.avi", Slot: 2, Elapsed: time.Second, Err: "ffmpeg failed: exit status 1"}
	return dispatch.Summary{
		SessionID:  id,
		PoolSize:   2,
		Total:      3,
		Submitted:  2,
		Succeeded:  []model.JobResult{ok},
		Failed:     []model.JobResult{bad},
		Cancelled:  []model.JobSpec{{InputPath: "/in/c.mp4", Format: model.FormatVideo}},
		Results:    []model.JobResult{bad, ok},
		StartedAt:  started,
		FinishedAt: started.Add(4 * time.Second),
		Elapsed:    4 * time.Second,
	}
}

func TestRecordAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Record(ctx, sampleSummary("older", base), model.FormatVideo))
	require.NoError(t, store.Record(ctx, sampleSummary("newer", base.Add(time.Hour)), model.FormatMP3))

	got, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "newer", got[0].ID)
	assert.Equal(t, "mp3", got[0].Format)
	assert.Equal(t, 1, got[0].Succeeded)
	assert.Equal(t, 1, got[0].Failed)
	assert.Equal(t, 1, got[0].Cancelled)
	assert.Equal(t, int64(2048), got[0].OutputSize)
	assert.Equal(t, 4*time.Second, got[0].Elapsed())

	require.Len(t, got[0].Jobs, 2)
	assert.Equal(t, "b.avi", got[0].Jobs[0].Filename)
	assert.False(t, got[0].Jobs[0].Succeeded)
	assert.Equal(t, "a.mkv", got[0].Jobs[1].Filename)

	limited, err := store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetUnknownSession(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()

	_, err = store.Get(context.Background(), "missing")
	assert.Error(t, err)

	require.NoError(t, store.Record(context.Background(), sampleSummary("s1", time.Now()), model.FormatAC3))
	s, err := store.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "ac3", s.Format)
	assert.Len(t, s.Jobs, 2)
}

func TestRecordDuplicateSessionFails(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer func() {
		_ = store.Close()
	}()
	sum := sampleSummary("dup", time.Now())
	require.NoError(t, store.Record(context.Background(), sum, model.FormatVideo))
	assert.Error(t, store.Record(context.Background(), sum, model.FormatVideo))
}
