package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ErrFileRemoved is reported when a watched file disappears.
var ErrFileRemoved = errors.New("watch: watched file was removed")

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the quiet period per file.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOnError sets the callback invoked on watcher errors.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// Watcher reports changes to a fixed set of files, one debounced callback
// per file. Parent directories are watched so atomic renames are seen.
type Watcher struct {
	files    map[string]*Debouncer
	dirs     []string
	onChange func(path string)
	onError  func(error)
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a watcher for paths. onChange receives the absolute path of
// the file that changed.
func New(paths []string, onChange func(path string), opts ...Option) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no files to watch")
	}
	if onChange == nil {
		return nil, errors.New("watch: nil change callback")
	}

	w := &Watcher{
		files:    map[string]*Debouncer{},
		onChange: onChange,
		onError:  func(error) {},
		debounce: DefaultDebounceDuration,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	seenDirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", p, err)
		}
		abs = filepath.Clean(abs)
		w.files[abs] = NewDebouncer(w.debounce)
		dir := filepath.Dir(abs)
		if _, ok := seenDirs[dir]; !ok {
			seenDirs[dir] = struct{}{}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Paths returns the watched files.
func (w *Watcher) Paths() []string {
	out := make([]string, 0, len(w.files))
	for p := range w.files {
		out = append(out, p)
	}
	return out
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("watch: already running")
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
		w.logger.Debug().Str("dir", dir).Msg("watching directory")
	}
	defer func() {
		for _, d := range w.files {
			d.Cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			debouncer, watched := w.files[path]
			if !watched {
				continue
			}
			switch {
			case event.Op&fsnotify.Remove != 0:
				w.logger.Warn().Str("path", path).Msg("watched file removed")
				w.onError(fmt.Errorf("%w: %s", ErrFileRemoved, path))
			case event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0:
				debouncer.Trigger(func() {
					if ctx.Err() != nil {
						return
					}
					w.onChange(path)
				})
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.onError(err)
		}
	}
}
