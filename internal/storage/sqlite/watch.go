package sqlite

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

// fileWatcher turns writes to the database file (or its WAL/journal) by any
// process into hub notifications. The file does not say which collection
// changed, so every watched collection is woken.
type fileWatcher struct {
	fsw  *fsnotify.Watcher
	base string
	hub  *storage.Hub
	done chan struct{}
	once sync.Once
}

func newFileWatcher(dbPath string, hub *storage.Hub) (*fileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(dbPath)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &fileWatcher{
		fsw:  fsw,
		base: filepath.Base(dbPath),
		hub:  hub,
		done: make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *fileWatcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return false
	}
	return strings.HasPrefix(filepath.Base(ev.Name), w.base)
}

func (w *fileWatcher) run() {
	var (
		timer   *time.Timer
		trigger <-chan time.Time
	)
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(constants.WatchDebounce)
			} else {
				timer.Reset(constants.WatchDebounce)
			}
			trigger = timer.C
		case <-trigger:
			trigger = nil
			w.hub.PublishAll()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.Warn("database file watcher error", "error", err)
		}
	}
}

func (w *fileWatcher) Close() {
	w.once.Do(func() {
		close(w.done)
		w.fsw.Close()
	})
}
