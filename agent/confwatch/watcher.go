// SPDX-License-Identifier: GPL-3.0-or-later

// Package confwatch signals when the plugin configuration file changes in substance.
package confwatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gohugoio/hashstructure"

	"github.com/netdata/netdata/go/world.d.plugin/logger"
)

// LoadFunc reads and decodes the configuration file.
type LoadFunc func(path string) (any, error)

// Watcher compares the structure hash of the decoded file on every file
// system event and on a slow refresh timer. Formatting-only edits do not
// count as changes.
type Watcher struct {
	*logger.Logger

	path         string
	load         LoadFunc
	refreshEvery time.Duration
	settle       time.Duration

	hash uint64
}

func New(path string, load LoadFunc) *Watcher {
	return &Watcher{
		Logger:       logger.New().With(slog.String("component", "config watcher")),
		path:         path,
		load:         load,
		refreshEvery: time.Minute,
		settle:       200 * time.Millisecond,
	}
}

// Run sends on changed every time the decoded configuration differs from the
// one seen before. It blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context, changed chan<- struct{}) {
	w.Info("instance is started")
	defer func() { w.Info("instance is stopped") }()

	w.hash, _ = w.currentHash()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.Errorf("fsnotify watcher initialization: %v", err)
		return
	}
	defer func() { _ = watcher.Close() }()

	// editors replace files by rename, so the directory is watched
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		w.Errorf("watch '%s': %v", w.path, err)
		return
	}

	tk := time.NewTicker(w.refreshEvery)
	defer tk.Stop()

	// one save can produce several events, check once they settle
	settle := time.NewTimer(w.settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			w.check(ctx, changed)
		case <-settle.C:
			w.check(ctx, changed)
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !w.isConfigEvent(event) {
				continue
			}
			w.Debugf("config file event: %s", event)
			settle.Reset(w.settle)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.Warningf("watch: %v", err)
		}
	}
}

func (w *Watcher) isConfigEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) check(ctx context.Context, changed chan<- struct{}) {
	hash, err := w.currentHash()
	if err != nil {
		w.Debugf("skip config check: %v", err)
		return
	}
	if hash == w.hash {
		return
	}
	w.hash = hash

	w.Info("config file changed")

	select {
	case <-ctx.Done():
	case changed <- struct{}{}:
	}
}

func (w *Watcher) currentHash() (uint64, error) {
	v, err := w.load(w.path)
	if err != nil {
		return 0, err
	}
	return hashstructure.Hash(v, nil)
}
