// Package watch reports edits to a fixed set of files.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period before a batch of changes is reported.
const DefaultDebounce = 100 * time.Millisecond

// Watcher watches individual files. It subscribes to their directories so
// that editors replacing a file by rename are still seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	files    map[string]bool
	exclude  []string
	debounce time.Duration
	logger   zerolog.Logger
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period. Non-positive values keep the default.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithExclude ignores files whose base name matches one of the patterns
func WithExclude(patterns []string) Option {
	return func(w *Watcher) {
		w.exclude = patterns
	}
}

// WithLogger sets the logger for watcher errors
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a watcher for files
func New(files []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool, len(files)),
		debounce: DefaultDebounce,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run blocks until ctx is done. After each burst of events settles it calls
// onChange with the changed files in sorted order.
func (w *Watcher) Run(ctx context.Context, onChange func(changed []string)) error {
	var (
		pending = make(map[string]bool)
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher channel closed")
			}
			if event.Op == fsnotify.Chmod || !w.shouldWatch(event.Name) {
				continue
			}
			pending[filepath.Clean(event.Name)] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			changed := make([]string, 0, len(pending))
			for path := range pending {
				changed = append(changed, path)
			}
			sort.Strings(changed)
			pending = make(map[string]bool)
			onChange(changed)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			if err != nil {
				// Log error but continue watching
				w.logger.Warn().Err(err).Msg("watcher error")
			}
		}
	}
}

// shouldWatch checks whether an event path is one of the watched files
func (w *Watcher) shouldWatch(path string) bool {
	path = filepath.Clean(path)
	base := filepath.Base(path)
	for _, pattern := range w.exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	return w.files[path]
}

// Close stops the watcher
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
