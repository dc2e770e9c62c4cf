package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mshogin/lineage/internal/infrastructure/logging"
)

// Watcher watches a catalog directory and re-ingests YAML files when
// they change. Events are debounced so editors that write in several
// steps trigger a single reload.
type Watcher struct {
	dir          string
	loader       *Loader
	watcher      *fsnotify.Watcher
	logger       *logging.StructuredLogger
	debounceTime time.Duration

	mu            sync.Mutex
	pendingEvents map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over dir that re-ingests through loader.
func NewWatcher(dir string, loader *Loader, logger *logging.StructuredLogger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}

	if logger == nil {
		logger = logging.GetDefaultLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		dir:           dir,
		loader:        loader,
		watcher:       fsWatcher,
		logger:        logger,
		debounceTime:  500 * time.Millisecond,
		pendingEvents: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

// Start begins watching the catalog directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch catalog directory %s: %w", w.dir, err)
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	w.logger.Info("Catalog watcher started", map[string]interface{}{
		"dir": w.dir,
	})

	return nil
}

// Stop stops the watcher and waits for its goroutines to exit.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Catalog watcher error", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !isCatalogFile(event.Name) {
		return
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		w.mu.Lock()
		w.pendingEvents[event.Name] = true
		w.mu.Unlock()
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.processPendingEvents()
		}
	}
}

func (w *Watcher) processPendingEvents() {
	w.mu.Lock()
	if len(w.pendingEvents) == 0 {
		w.mu.Unlock()
		return
	}

	paths := make([]string, 0, len(w.pendingEvents))
	for path := range w.pendingEvents {
		paths = append(paths, path)
	}
	w.pendingEvents = make(map[string]bool)
	w.mu.Unlock()

	for _, path := range paths {
		if err := w.loader.LoadFile(w.ctx, path); err != nil {
			w.logger.Error("Catalog reload failed", err, map[string]interface{}{
				"file": path,
			})
			continue
		}

		w.logger.Info("Catalog file reloaded", map[string]interface{}{
			"file": path,
		})
	}
}
