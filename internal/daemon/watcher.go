package daemon

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpWrite indicates the snapshot was created, written or renamed into place.
	OpWrite EventOp = iota
	// OpDelete indicates the snapshot was removed.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpWrite:
		return "write"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a coalesced change to the snapshot file.
type Event struct {
	Path string
	// Op is the last operation seen in the debounce window.
	Op EventOp
	// Count is how many raw events were coalesced.
	Count int
}

// SnapshotWatcher watches a single file. Snapshots are replaced by
// rename, so the parent directory is watched and events are filtered by
// name. Bursts of events within the debounce window produce one Event.
type SnapshotWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	running bool
}

// NewSnapshotWatcher creates a watcher for path. It must be started with
// Start before it emits events.
func NewSnapshotWatcher(path string, debounce time.Duration) (*SnapshotWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &SnapshotWatcher{
		watcher:  w,
		path:     abs,
		debounce: debounce,
		events:   make(chan Event, 16),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The snapshot's directory must exist; the file
// itself may not exist yet.
func (sw *SnapshotWatcher) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.running {
		return fmt.Errorf("watcher already running")
	}
	dir := filepath.Dir(sw.path)
	if err := sw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	sw.running = true
	sw.wg.Add(1)
	go sw.processEvents()
	return nil
}

// Stop stops watching and closes the Events and Errors channels. It blocks
// until the event loop has exited. Stop on a watcher that was never
// started only releases the fsnotify handle.
func (sw *SnapshotWatcher) Stop() error {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return sw.watcher.Close()
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.done)
	if err := sw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	sw.wg.Wait()

	close(sw.events)
	close(sw.errors)
	return nil
}

// Events returns the channel of coalesced snapshot changes.
func (sw *SnapshotWatcher) Events() <-chan Event {
	return sw.events
}

// Errors returns the channel of watcher errors.
func (sw *SnapshotWatcher) Errors() <-chan error {
	return sw.errors
}

// IsRunning returns true if the watcher is currently running.
func (sw *SnapshotWatcher) IsRunning() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.running
}

func (sw *SnapshotWatcher) processEvents() {
	defer sw.wg.Done()

	var (
		pending Event
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-sw.done:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			op, ok := sw.convertEvent(event)
			if !ok {
				continue
			}
			pending.Path = sw.path
			pending.Op = op
			pending.Count++
			if timer == nil {
				timer = time.NewTimer(sw.debounce)
			} else {
				timer.Reset(sw.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case sw.events <- pending:
			case <-sw.done:
				return
			}
			pending = Event{}

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case sw.errors <- err:
			case <-sw.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event on the snapshot to an EventOp.
// Events for other files in the directory and chmod-only events are
// ignored.
func (sw *SnapshotWatcher) convertEvent(event fsnotify.Event) (EventOp, bool) {
	abs, err := filepath.Abs(event.Name)
	if err != nil || abs != sw.path {
		return 0, false
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return OpWrite, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return OpDelete, true
	}
	return 0, false
}
