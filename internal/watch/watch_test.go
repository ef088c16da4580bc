package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsReferenceFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"refs.txt", true},
		{"/in/batch.XLSX", true},
		{"list.csv", true},
		{"video.mp4", false},
		{".hidden.txt", false},
		{"~$refs.xlsx", false},
		{"noext", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsReferenceFile(tt.path), tt.path)
	}
}

func TestWatcherHandlesSettledFilesOnce(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var handled []string
	done := make(chan struct{}, 4)
	handler := func(ctx context.Context, path string) error {
		mu.Lock()
		handled = append(handled, filepath.Base(path))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}

	w, err := New(dir, handler, 50*time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- w.Run(ctx) }()

	path := filepath.Join(dir, "refs.txt")
	require.NoError(t, os.WriteFile(path, []byte("dQw4w9WgXcQ\n"), 0o644))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("@creator\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "clip.mp4"), []byte("x"), 0o644))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reference file was not handled")
	}
	time.Sleep(200 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-runErr, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"refs.txt"}, handled)
}

func TestNewFailsForMissingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil, 0, zap.NewNop())
	assert.Error(t, err)
}
