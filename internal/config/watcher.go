package config

import (
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unbound-ml/unbound/errors"
	"github.com/unbound-ml/unbound/logger"
)

// Watcher watches a config file and triggers reload callbacks on change.
// Long-running processes pair it with Apply so an edited config file flips
// the capability mode without a restart.
type Watcher struct {
	configPath     string
	watcher        *fsnotify.Watcher
	callbacks      []ReloadCallback
	mu             sync.RWMutex
	debounceTimer  *time.Timer
	debouncePeriod time.Duration
	ownWrite       bool
	ownWriteMu     sync.Mutex
}

// ReloadCallback receives the freshly loaded config after a file change.
type ReloadCallback func(*Config) error

var (
	globalWatcher   *Watcher
	globalWatcherMu sync.Mutex
)

// NewWatcher creates a watcher for the config file at configPath.
func NewWatcher(configPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	if err := fw.Add(configPath); err != nil {
		_ = fw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}

	return &Watcher{
		configPath:     configPath,
		watcher:        fw,
		debouncePeriod: 500 * time.Millisecond,
	}, nil
}

// OnReload registers a callback for config reloads.
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// MarkOwnWrite flags the next file event as one of ours, so persisting a
// setting does not bounce back as a reload.
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

func (w *Watcher) checkOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if isBackupFile(event.Name) {
				continue
			}

			logger.Debugw("config watcher event",
				"file", event.Name,
				"op", event.Op.String())
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnw("config watcher error", "error", err)
		}
	}
}

// scheduleReload debounces rapid successive file events.
func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, func() {
		// One save can surface as several write events; the own-write
		// flag is consumed once per debounced batch.
		if w.checkOwnWrite() {
			logger.Debugw("config watcher ignoring own write", "path", w.configPath)
			return
		}
		logger.Infow("config watcher detected change", "path", w.configPath)
		if err := w.reload(); err != nil {
			logger.Errorw("config reload failed", "error", err)
		}
	})
}

func (w *Watcher) reload() error {
	cfg, err := LoadFromFile(w.configPath)
	if err != nil {
		return err
	}

	logger.Infow("config reloaded", "path", w.configPath)

	w.mu.RLock()
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	for _, callback := range callbacks {
		if err := callback(cfg); err != nil {
			// Keep going; one failing consumer must not starve the rest.
			logger.Warnw("config reload callback error", "error", err)
		}
	}

	return nil
}

// Stop stops watching and cancels any pending reload.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func isBackupFile(path string) bool {
	return strings.HasSuffix(path, ".back1") ||
		strings.HasSuffix(path, ".back2") ||
		strings.HasSuffix(path, ".back3")
}

// SetGlobalWatcher installs the process watcher so persistence helpers can
// mark their own writes.
func SetGlobalWatcher(w *Watcher) {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	globalWatcher = w
}

// GetGlobalWatcher returns the process watcher, if any.
func GetGlobalWatcher() *Watcher {
	globalWatcherMu.Lock()
	defer globalWatcherMu.Unlock()
	return globalWatcher
}
