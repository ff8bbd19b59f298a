package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChanges(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "resources"), 0o755))

	var changes atomic.Int32
	w, err := New(root, func() { changes.Add(1) }, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, os.WriteFile(filepath.Join(root, "resources", "app.js"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return changes.Load() > 0 }, 5*time.Second, 10*time.Millisecond)

	// New directories are watched too.
	nested := filepath.Join(root, "resources", "mylib")
	require.NoError(t, os.Mkdir(nested, 0o755))
	require.Eventually(t, func() bool {
		before := changes.Load()
		_ = os.WriteFile(filepath.Join(nested, "style.css"), []byte("a{}"), 0o644)
		time.Sleep(20 * time.Millisecond)
		return changes.Load() > before
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewFailsOnMissingRoot(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), func() {}, nil)
	assert.Error(t, err)
}
