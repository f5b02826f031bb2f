package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunFlushesSettledBatch(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	batches := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []string{dir}, Options{SkipDirName: "converted", Settle: 100 * time.Millisecond}, func(_ context.Context, paths []string) error {
			batches <- paths
			return nil
		})
	}()

	// let the watcher register before files appear
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.avi"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".a.partial.mp4"), []byte("x"), 0o644))

	select {
	case got := <-batches:
		assert.Equal(t, []string{filepath.Join(dir, "a.avi"), filepath.Join(dir, "b.mkv")}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no batch flushed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestSettleQueueWaitsForStableSize(t *testing.T) {
	dir := t.TempDir()
	growing := filepath.Join(dir, "growing.mkv")
	require.NoError(t, os.WriteFile(growing, []byte("part"), 0o644))

	q := newSettleQueue()
	require.True(t, q.add(growing))
	require.True(t, q.add(filepath.Join(dir, "gone.mkv")))

	batch, waiting := q.flush()
	assert.Empty(t, batch, "first flush only records sizes")
	assert.True(t, waiting)

	f, err := os.OpenFile(growing, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("-more")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	batch, waiting = q.flush()
	assert.Empty(t, batch, "a file still growing stays queued")
	assert.True(t, waiting)

	batch, waiting = q.flush()
	assert.Equal(t, []string{growing}, batch)
	assert.False(t, waiting)

	assert.False(t, q.add(growing), "a flushed file is not queued again")
	batch, _ = q.flush()
	assert.Empty(t, batch)
}

func TestRunStopsOnHandlerError(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	boom := errors.New("boom")
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, []string{dir}, Options{Settle: 50 * time.Millisecond}, func(context.Context, []string) error {
			return boom
		})
	}()

	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, boom)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not return handler error")
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	noop := func(context.Context, []string) error { return nil }
	assert.Error(t, Run(context.Background(), nil, Options{}, noop))
	assert.Error(t, Run(context.Background(), []string{filepath.Join(t.TempDir(), "missing")}, Options{}, noop))
	assert.Error(t, Run(context.Background(), []string{t.TempDir()}, Options{}, nil))
}

func TestEligible(t *testing.T) {
	exts := []string{".mkv"}
	assert.True(t, eligible("/in/a.mkv", exts, "converted"))
	assert.False(t, eligible("/in/converted/a.mkv", exts, "converted"))
	assert.False(t, eligible("/in/.a.partial.mkv", exts, "converted"))
	assert.False(t, eligible("/in/a.txt", exts, "converted"))
}
