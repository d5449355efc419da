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
)

func TestWatcher_shouldWatch(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]bool
		exclude []string
		path    string
		want    bool
	}{
		{
			name:  "watched file",
			files: map[string]bool{"/project/schema.graphql": true},
			path:  "/project/schema.graphql",
			want:  true,
		},
		{
			name:  "unclean path",
			files: map[string]bool{"/project/schema.graphql": true},
			path:  "/project/./schema.graphql",
			want:  true,
		},
		{
			name:  "sibling file",
			files: map[string]bool{"/project/schema.graphql": true},
			path:  "/project/notes.md",
			want:  false,
		},
		{
			name:    "exclude overrides file",
			files:   map[string]bool{"/project/schema.graphql": true},
			exclude: []string{"*.graphql"},
			path:    "/project/schema.graphql",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &Watcher{files: tt.files, exclude: tt.exclude}
			assert.Equal(t, tt.want, w.shouldWatch(tt.path))
		})
	}
}

func TestWatcher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	tmpDir := t.TempDir()
	schemaPath := filepath.Join(tmpDir, "schema.graphql")
	require.NoError(t, os.WriteFile(schemaPath, []byte("type Query { a: Int }"), 0o644))

	w, err := New([]string{schemaPath}, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	var (
		mu      sync.Mutex
		batches [][]string
	)
	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- w.Run(ctx, func(changed []string) {
			mu.Lock()
			defer mu.Unlock()
			batches = append(batches, changed)
		})
	}()

	// Give watcher time to start
	time.Sleep(50 * time.Millisecond)

	// Several writes in a burst collapse into one batch; the sibling is ignored
	require.NoError(t, os.WriteFile(schemaPath, []byte("type Query { b: Int }"), 0o644))
	require.NoError(t, os.WriteFile(schemaPath, []byte("type Query { c: Int }"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "other.txt"), []byte("x"), 0o644))

	expected, err := filepath.Abs(schemaPath)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{expected}, batches[0])
	mu.Unlock()

	cancel()
	assert.ErrorIs(t, <-errChan, context.Canceled)
}

func TestWatcher_Close(t *testing.T) {
	w, err := New(nil)
	require.NoError(t, err)

	// Close should not error
	assert.NoError(t, w.Close())

	// Double close should also be safe
	assert.NoError(t, w.Close())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing", "schema.graphql")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to watch directory")
}
