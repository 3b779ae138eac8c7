package credential

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SeedWatcher watches a seed file of raw cookie-header lines and
// re-imports it whenever the file changes, so operators can add
// credentials by appending to a file instead of calling the admin
// import endpoint. Changes are debounced to absorb editor write storms.
type SeedWatcher struct {
	manager *Manager
	watcher *fsnotify.Watcher
	logger  *slog.Logger
	path    string

	// debounce is the quiet period after the last event before a reload.
	debounce time.Duration

	mu      sync.Mutex
	running bool
}

// NewSeedWatcher creates a watcher over the seed file at path.
func NewSeedWatcher(manager *Manager, path string, debounce time.Duration) (*SeedWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("seed file path cannot be empty")
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &SeedWatcher{
		manager:  manager,
		watcher:  watcher,
		logger:   slog.Default().With("component", "credential.seedwatcher"),
		path:     path,
		debounce: debounce,
	}, nil
}

// Watch imports the seed file once, then blocks re-importing it on every
// debounced change until the context is cancelled. The parent directory
// is watched rather than the file itself so atomic rename-into-place
// saves are still observed.
func (w *SeedWatcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("seed watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	// Initial import; a missing file is fine, it may appear later.
	if err := w.importFile(ctx); err != nil && !os.IsNotExist(err) {
		w.logger.Warn("initial seed import failed", "path", w.path, "error", err)
	}

	w.logger.Info("seed watcher started",
		"path", w.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("seed watcher stopped")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevantEvent(event) {
				continue
			}
			// Restart the debounce window.
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerCh = timer.C

		case <-timerCh:
			timerCh = nil
			if err := w.importFile(ctx); err != nil {
				w.logger.Warn("seed import failed", "path", w.path, "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("seed watcher error", "error", err)
		}
	}
}

// relevantEvent reports whether an fsnotify event concerns the seed file.
func (w *SeedWatcher) relevantEvent(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	return filepath.Clean(event.Name) == filepath.Clean(w.path)
}

// importFile imports the seed file's current contents.
func (w *SeedWatcher) importFile(ctx context.Context) error {
	result, err := w.manager.ImportSeedFile(ctx, w.path)
	if err != nil {
		return err
	}

	if result.TokensAdded > 0 || result.CookiesAdded > 0 {
		w.logger.Info("seed file imported",
			"path", w.path,
			"tokens_added", result.TokensAdded,
			"cookies_added", result.CookiesAdded,
		)
	}
	return nil
}
