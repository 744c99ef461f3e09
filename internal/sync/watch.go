package sync

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches an export drop directory and fires a callback once writes
// settle. Events are coalesced: a burst of file writes produces one callback
// after the debounce interval passes without further changes.
type Watcher struct {
	onDrop   func()
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	lastEvt time.Time
	dirty   bool

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWatcher(dir string, debounce time.Duration, onDrop func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("sync: creating watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("sync: watching %s: %w", dir, err)
	}

	w := &Watcher{
		onDrop:   onDrop,
		watcher:  fsw,
		debounce: debounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Stop shuts the watcher down and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
		<-w.done
		w.watcher.Close()
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.dirty = true
			w.lastEvt = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("sync: watcher error: %v", err)

		case <-ticker.C:
			w.mu.Lock()
			fire := w.dirty && time.Since(w.lastEvt) >= w.debounce
			if fire {
				w.dirty = false
			}
			w.mu.Unlock()
			if fire {
				w.onDrop()
			}
		}
	}
}
