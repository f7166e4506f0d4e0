package config

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/deckhand-ai/deckhand/internal/logging"
)

// watchDebounce coalesces the write bursts editors produce when saving.
const watchDebounce = 250 * time.Millisecond

// Watcher reloads the config file when it changes on disk and hands the
// freshly validated result to the callback. A file that fails to load or
// validate keeps the previous configuration; the error is logged only.
type Watcher struct {
	path     string
	logger   *logging.Logger
	onReload func(*Config)

	fw   *fsnotify.Watcher
	stop chan struct{}
}

// NewWatcher creates a watcher for an explicit config file path.
func NewWatcher(path string, logger *logging.Logger, onReload func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace files by rename,
	// which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:     path,
		logger:   logger,
		onReload: onReload,
		fw:       fw,
		stop:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fw.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err.Error())
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := NewLoader().WithConfigFile(w.path).Load()
	if err != nil {
		w.logger.Warn("config reload rejected, keeping previous", "path", w.path, "error", err.Error())
		return
	}
	w.logger.Info("config reloaded", "path", w.path)
	w.onReload(cfg)
}
