package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, p string) {
	r.mu.Lock()
	r.paths = append(r.paths, p)
	r.mu.Unlock()
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestWatcherReportsSettledImages(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "2024"), 0o755))

	rec := &recorder{}
	w, err := New(root, []string{"png", "jpg"}, 50*time.Millisecond, rec.handle)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	img := filepath.Join(root, "2024", "a.png")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(img, []byte{byte(i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024", "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "2024", ".tmp.png"), []byte("x"), 0o644))

	assert.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{img}, rec.seen())
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w, err := New(root, []string{"jpg"}, 20*time.Millisecond, rec.handle)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	dir := filepath.Join(root, "2025")
	require.NoError(t, os.Mkdir(dir, 0o755))
	// Give the loop a moment to add the new directory.
	time.Sleep(100 * time.Millisecond)

	img := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(img, []byte("jpg"), 0o644))

	assert.Eventually(t, func() bool {
		seen := rec.seen()
		return len(seen) == 1 && seen[0] == img
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStopDropsPendingEvents(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w, err := New(root, []string{"png"}, time.Hour, rec.handle)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(root, "c.png"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, w.Stop())
	assert.Empty(t, rec.seen())
}
