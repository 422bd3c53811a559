// Package settingsync keeps the stored analysis settings in step with an
// optional YAML file edited outside the app.
package settingsync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"breeze/internal/domain"
)

// Store is the settings repository the file is synced into.
type Store interface {
	Load(ctx context.Context) domain.AnalysisSettings
	Save(ctx context.Context, settings domain.AnalysisSettings) error
}

// Watcher applies the settings file on start and after every change.
type Watcher struct {
	path  string
	store Store
	log   logrus.FieldLogger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func New(path string, store Store, log logrus.FieldLogger) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		path:  filepath.Clean(path),
		store: store,
		log:   log.WithFields(logrus.Fields{"component": "settingsync", "path": path}),
	}
}

// Start syncs the file once and then watches its directory. Editors often
// replace files instead of writing in place, so events are matched by name.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return errors.New("settings watcher already started")
	}

	if err := w.Sync(ctx); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.log.WithError(err).Warn("initial settings sync failed")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create settings watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}

	w.watcher = watcher
	w.done = make(chan struct{})
	go w.loop(ctx, watcher, w.done)
	return nil
}

// Close stops watching and waits for the loop to exit.
func (w *Watcher) Close() error {
	w.mu.Lock()
	watcher, done := w.watcher, w.done
	w.watcher = nil
	w.mu.Unlock()

	if watcher == nil {
		return nil
	}
	err := watcher.Close()
	<-done
	return err
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := w.Sync(ctx); err != nil {
				w.log.WithError(err).Warn("settings file rejected")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("settings watcher error")
		}
	}
}

// Sync reads the file and saves it through the store. Keys missing from the
// file keep their currently stored values.
func (w *Watcher) Sync(ctx context.Context) error {
	contents, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}

	settings := w.store.Load(ctx)
	previous := settings.Provider
	if err := yaml.Unmarshal(contents, &settings); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}
	var explicit struct {
		Model *string `yaml:"model"`
	}
	_ = yaml.Unmarshal(contents, &explicit)
	if explicit.Model == nil && !strings.EqualFold(string(settings.Provider), string(previous)) {
		// The stored model belongs to the previous provider.
		settings.Model = ""
	}
	if err := w.store.Save(ctx, settings); err != nil {
		return err
	}

	w.log.WithFields(logrus.Fields{
		"provider": settings.Provider,
		"model":    settings.Model,
	}).Info("analysis settings updated from file")
	return nil
}
