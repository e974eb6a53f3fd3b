// Package watcher triggers a callback when any of a fixed set of files
// changes on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeHandler receives the watched files that changed in one debounce
// window.
type ChangeHandler func(ctx context.Context, paths []string) error

// Config holds watcher configuration.
type Config struct {
	// DebounceDelay is how long to wait after the last event before calling
	// the handler.
	DebounceDelay time.Duration
}

// DefaultConfig returns default watcher configuration.
func DefaultConfig() Config {
	return Config{DebounceDelay: 2 * time.Second}
}

// Watcher monitors individual files. It watches their parent directories so
// that atomic replace-by-rename is seen as a change.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	config    Config
	logger    zerolog.Logger
	handler   ChangeHandler

	files map[string]bool
	dirs  map[string]bool

	pendingMu sync.Mutex
	pending   map[string]bool
	timer     *time.Timer
	due       chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher that calls handler after changes settle.
func New(config Config, handler ChangeHandler, logger zerolog.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultConfig().DebounceDelay
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		fsWatcher: fsWatcher,
		config:    config,
		logger:    logger.With().Str("component", "watcher").Logger(),
		handler:   handler,
		files:     make(map[string]bool),
		dirs:      make(map[string]bool),
		pending:   make(map[string]bool),
		due:       make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// AddFile registers a file to watch. The file itself need not exist yet, but
// its directory must. Call before Start.
func (w *Watcher) AddFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	w.logger.Info().Str("path", abs).Msg("Watching file")
	return nil
}

// Files returns the watched files, sorted.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Start begins processing events.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.eventLoop()
}

// Stop stops the watcher after any running handler returns. Pending
// changes are dropped.
func (w *Watcher) Stop() error {
	w.cancel()
	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()
	w.wg.Wait()
	return w.fsWatcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case <-w.due:
			w.flush()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil || !w.files[abs] {
		return
	}

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[abs] = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.DebounceDelay, func() {
		select {
		case w.due <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]bool)
	w.timer = nil
	w.pendingMu.Unlock()

	if len(paths) == 0 || w.ctx.Err() != nil {
		return
	}
	sort.Strings(paths)

	w.logger.Info().Strs("paths", paths).Msg("Watched files changed")
	if err := w.handler(w.ctx, paths); err != nil {
		w.logger.Error().Err(err).Msg("Change handler failed")
	}
}
