// Package watch re-reads a configuration document when it changes on disk.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 250 * time.Millisecond

// ReloadFunc receives the document bytes and their fingerprint whenever the
// watched file changed. An error keeps the previously applied document active.
type ReloadFunc func(data []byte, fingerprint string) error

// Config holds configuration for the Watcher.
type Config struct {
	// FilePath is the configuration document to watch.
	FilePath string
	// Debounce coalesces bursts of events (editor save sequences) into one reload.
	Debounce time.Duration
}

// Watcher watches a configuration document and invokes a ReloadFunc when its
// content changes. Events that leave the bytes unchanged do not trigger a reload.
type Watcher struct {
	config Config
	reload ReloadFunc
	logger *zap.Logger

	cancel  context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}

	mu              sync.Mutex
	debounceTimer   *time.Timer
	lastFingerprint string
	startErr        error

	// reloadMu serialises reloads fired by overlapping debounce timers.
	reloadMu sync.Mutex
}

// New creates a watcher for the given file.
func New(config Config, reload ReloadFunc, logger *zap.Logger) (*Watcher, error) {
	if config.FilePath == "" {
		return nil, errors.New("file path cannot be empty")
	}
	if reload == nil {
		return nil, errors.New("reload callback cannot be nil")
	}
	if config.Debounce <= 0 {
		config.Debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		config:  config,
		reload:  reload,
		logger:  logger.With(zap.String("file", config.FilePath)),
		stopped: make(chan struct{}),
		ready:   make(chan struct{}),
	}, nil
}

// Fingerprint returns the hex SHA-256 digest identifying a document revision.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Start applies the current document and then watches for changes in the
// background. It fails fast if the initial document cannot be read or applied.
func (w *Watcher) Start(ctx context.Context) error {
	data, err := os.ReadFile(w.config.FilePath)
	if err != nil {
		return fmt.Errorf("read initial config: %w", err)
	}
	fingerprint := Fingerprint(data)
	if err := w.reload(data, fingerprint); err != nil {
		return fmt.Errorf("apply initial config: %w", err)
	}
	w.setLastFingerprint(fingerprint)
	w.logger.Info("loaded initial config", zap.String("fingerprint", fingerprint))

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return errors.New("timeout waiting for file watcher to initialize")
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.startErr
}

// Stop ends the watch loop, waiting up to five seconds for it to exit.
func (w *Watcher) Stop() error {
	if w.cancel == nil {
		return nil
	}
	w.cancel()

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()

	// Wait out a reload that is already running; later ones see the cancelled context.
	w.reloadMu.Lock()
	w.reloadMu.Unlock()

	select {
	case <-w.stopped:
		w.logger.Info("config watcher stopped")
		return nil
	case <-time.After(5 * time.Second):
		return errors.New("timeout waiting for watcher to stop")
	}
}

func (w *Watcher) signalReady(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		w.startErr = err
		close(w.ready)
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.signalReady(fmt.Errorf("create file watcher: %w", err))
		return
	}
	defer watcher.Close()

	// The directory is watched rather than the file so that the watch survives
	// the file being deleted, renamed away or replaced by an atomic save.
	dir, name := filepath.Split(filepath.Clean(w.config.FilePath))
	if dir == "" {
		dir = "."
	}
	if err := watcher.Add(dir); err != nil {
		w.signalReady(fmt.Errorf("watch %s: %w", dir, err))
		return
	}

	w.logger.Info("watching config for changes", zap.Duration("debounce", w.config.Debounce))
	w.signalReady(nil)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				w.logger.Warn("watcher events channel closed")
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				w.scheduleReload(ctx)
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				w.logger.Warn("config file went away (keeping previous config)", zap.Stringer("op", event.Op))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				w.logger.Warn("watcher errors channel closed")
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.config.Debounce, func() {
		w.reloadIfChanged(ctx)
	})
}

func (w *Watcher) reloadIfChanged(ctx context.Context) {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	if ctx.Err() != nil {
		return
	}

	data, err := os.ReadFile(w.config.FilePath)
	if err != nil {
		w.logger.Warn("failed to read config (keeping previous config)", zap.Error(err))
		return
	}

	fingerprint := Fingerprint(data)
	if fingerprint == w.getLastFingerprint() {
		w.logger.Debug("config unchanged, skipping reload")
		return
	}

	if err := w.reload(data, fingerprint); err != nil {
		w.logger.Warn("config rejected (keeping previous config)", zap.Error(err))
		return
	}
	w.setLastFingerprint(fingerprint)
	w.logger.Info("config reloaded", zap.String("fingerprint", fingerprint))
}

func (w *Watcher) getLastFingerprint() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastFingerprint
}

func (w *Watcher) setLastFingerprint(fingerprint string) {
	w.mu.Lock()
	w.lastFingerprint = fingerprint
	w.mu.Unlock()
}
