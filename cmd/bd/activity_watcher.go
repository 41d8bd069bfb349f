package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 50 * time.Millisecond

// dbWatcher signals when the SQLite database (or its WAL) changes on disk.
// Falls back to polling modification times when fsnotify is unavailable.
type dbWatcher struct {
	watcher      *fsnotify.Watcher
	paths        []string
	polling      bool
	pollInterval time.Duration
	events       chan struct{}
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	mu       sync.Mutex
	modTimes map[string]time.Time
}

// newDBWatcher watches the database file, its -wal sidecar and the
// directory holding them. forcePolling skips fsnotify entirely.
func newDBWatcher(dbFile string, pollInterval time.Duration, forcePolling bool) *dbWatcher {
	w := &dbWatcher{
		pollInterval: pollInterval,
		events:       make(chan struct{}, 1),
		modTimes:     make(map[string]time.Time),
	}

	for _, p := range []string{dbFile, dbFile + "-wal"} {
		if _, err := os.Stat(p); err == nil {
			w.paths = append(w.paths, p)
		}
	}
	if len(w.paths) == 0 {
		w.paths = append(w.paths, beadsDir)
	}
	for _, p := range w.paths {
		if st, err := os.Stat(p); err == nil {
			w.modTimes[p] = st.ModTime()
		}
	}

	if forcePolling {
		w.polling = true
		return w
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.polling = true
		return w
	}
	added := false
	for _, p := range w.paths {
		if err := fw.Add(p); err == nil {
			added = true
		}
	}
	if !added {
		_ = fw.Close()
		w.polling = true
		return w
	}
	w.watcher = fw
	return w
}

// Events delivers one debounced wake-up per burst of changes.
func (w *dbWatcher) Events() <-chan struct{} { return w.events }

func (w *dbWatcher) IsPolling() bool { return w.polling }

// Start runs the watch loop in the background until ctx is done or Close.
func (w *dbWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	if w.polling {
		go w.pollLoop(ctx)
	} else {
		go w.fsLoop(ctx)
	}
}

func (w *dbWatcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}

func (w *dbWatcher) fsLoop(ctx context.Context) {
	defer w.wg.Done()
	var last time.Time
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			now := time.Now()
			if now.Sub(last) < watchDebounce {
				continue
			}
			last = now
			w.notify()
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (w *dbWatcher) pollLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if w.changed() {
				w.notify()
			}
		case <-ctx.Done():
			return
		}
	}
}

// changed reports whether any watched path has a new modification time.
func (w *dbWatcher) changed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := false
	for _, p := range w.paths {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		if last, ok := w.modTimes[p]; !ok || !st.ModTime().Equal(last) {
			w.modTimes[p] = st.ModTime()
			changed = true
		}
	}
	return changed
}

func (w *dbWatcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	close(w.events)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
