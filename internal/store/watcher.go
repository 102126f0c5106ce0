// This file implements a file system watcher for the cache database.
// External processes (or the user) can touch or replace the database file;
// when that happens we refresh store statistics instead of serving stale ones.

package store

import (
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the directory holding the cache database and invokes a
// refresh callback, debounced, when the database changes on disk.
type Watcher struct {
	dbPath        string
	onChange      func()
	watcher       *fsnotify.Watcher
	mu            sync.Mutex
	debounceTimer *time.Timer
	debounceDelay time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewWatcher creates a watcher for the given database path. onChange runs
// after writes settle for the debounce period.
func NewWatcher(dbPath string, onChange func()) *Watcher {
	return &Watcher{
		dbPath:        dbPath,
		onChange:      onChange,
		debounceDelay: 2 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// SetDebounceDelay overrides the settle period before onChange fires.
// Must be called before Start.
func (w *Watcher) SetDebounceDelay(d time.Duration) {
	w.debounceDelay = d
}

// Start begins watching the database directory for changes.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	dir := filepath.Dir(w.dbPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	log.Printf("Cache watcher started for: %s", dir)
	go w.processEvents()
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Cache watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Chmod events fire when files are merely opened; ignore them.
	if event.Op == fsnotify.Chmod {
		return
	}
	if !w.isDatabaseFile(event.Name) {
		return
	}

	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.fire)
	w.mu.Unlock()
}

// isDatabaseFile matches the database itself plus SQLite sidecar files
// (-wal, -shm, -journal).
func (w *Watcher) isDatabaseFile(path string) bool {
	base := filepath.Base(w.dbPath)
	name := filepath.Base(path)
	return name == base || strings.HasPrefix(name, base+"-")
}

func (w *Watcher) fire() {
	log.Println("Cache watcher detected database changes, refreshing stats")
	w.onChange()
}
