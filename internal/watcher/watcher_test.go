package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) handle(_ context.Context, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, paths)
	return nil
}

func (r *recorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]string(nil), r.calls...)
}

func TestWatcher_DebouncesWatchedFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "ratings.csv")
	other := filepath.Join(dir, "notes.txt")

	rec := &recorder{}
	w, err := New(Config{DebounceDelay: 50 * time.Millisecond}, rec.handle, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.AddFile(target))
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte("Const\n"), 0o600))
	}

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	calls := rec.snapshot()
	require.Len(t, calls, 1, "bursts collapse into one call")
	abs, err := filepath.Abs(target)
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, calls[0])
}

func TestWatcher_SeesAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "history.jsonl")

	rec := &recorder{}
	w, err := New(Config{DebounceDelay: 20 * time.Millisecond}, rec.handle, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.AddFile(target))
	w.Start()
	t.Cleanup(func() { _ = w.Stop() })

	tmp := filepath.Join(dir, ".history.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("{}\n"), 0o600))
	require.NoError(t, os.Rename(tmp, target))

	require.Eventually(t, func() bool { return len(rec.snapshot()) >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_AddFileMissingDir(t *testing.T) {
	w, err := New(DefaultConfig(), func(context.Context, []string) error { return nil }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	assert.Error(t, w.AddFile(filepath.Join(t.TempDir(), "nope", "ratings.csv")))
	assert.Empty(t, w.Files())
}
