package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the configuration file whenever it changes on disk and
// hands every valid new configuration to a callback. Invalid files are
// logged and ignored, so the last good configuration stays in effect.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)
	watcher  *fsnotify.Watcher
	done     chan struct{}
	once     sync.Once
}

// NewWatcher starts watching path. Bursts of events within debounce are
// collapsed into a single reload.
func NewWatcher(path string, debounce time.Duration, onReload func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	// Editors often replace the file, so watch its directory.
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		path:     abs,
		debounce: debounce,
		onReload: onReload,
		watcher:  fw,
		done:     make(chan struct{}),
	}
	go w.run()
	log.Info().Str("path", abs).Dur("debounce", debounce).Msg("watching config file")
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod || filepath.Clean(event.Name) != w.path {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		log.Warn().Err(err).Str("path", w.path).Msg("ignoring invalid config change")
		return
	}
	log.Info().Str("path", w.path).Msg("config reloaded")
	w.onReload(cfg)
}

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		err = w.watcher.Close()
		<-w.done
	})
	return err
}
