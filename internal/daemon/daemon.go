// Package daemon keeps the dashboard's query cache in step with the
// snapshot file.
//
// The daemon:
//  1. Loads the snapshot into the cache on start
//  2. Watches the snapshot file and reloads the cache when it changes
//  3. Optionally runs a forward sync on a fixed interval
//  4. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dbvcapital/statusboard/internal/db"
	"github.com/dbvcapital/statusboard/internal/snapshot"
)

// Config holds configuration for the daemon.
type Config struct {
	// SnapshotPath is the file to watch and load.
	SnapshotPath string

	// DebounceInterval is how long the snapshot must be quiet before a
	// reload. This batches the events of one atomic replace together.
	DebounceInterval time.Duration

	// SyncInterval runs Sync periodically when both are set.
	SyncInterval time.Duration
	Sync         func(ctx context.Context) error

	// OnReload is called after every successful cache reload.
	OnReload func(rows int)

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 200 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Daemon reloads the cache whenever the snapshot changes.
type Daemon struct {
	cache  *db.DB
	config *Config

	reloadMu sync.Mutex
	// loaded identifies the snapshot version last read into the cache.
	loaded fileStamp
	wg     sync.WaitGroup
}

type fileStamp struct {
	mod  time.Time
	size int64
}

func stamp(path string) fileStamp {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}
	}
	return fileStamp{mod: info.ModTime(), size: info.Size()}
}

// New creates a daemon that loads into cache.
func New(cache *db.DB, config *Config) (*Daemon, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}
	if config == nil || config.SnapshotPath == "" {
		return nil, fmt.Errorf("snapshot path cannot be empty")
	}
	defaults := DefaultConfig()
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = defaults.DebounceInterval
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	return &Daemon{cache: cache, config: config}, nil
}

// Reload reads the snapshot and replaces the cache contents. A missing
// snapshot is not an error: the cache keeps what it has.
func (d *Daemon) Reload(ctx context.Context) (int, error) {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	return d.reloadLocked(ctx)
}

// reloadIfChanged skips the reload when the snapshot is the one already
// cached, e.g. after a sync that reloaded through Reload itself.
func (d *Daemon) reloadIfChanged(ctx context.Context) error {
	d.reloadMu.Lock()
	defer d.reloadMu.Unlock()
	if st := stamp(d.config.SnapshotPath); st != (fileStamp{}) && st == d.loaded {
		return nil
	}
	_, err := d.reloadLocked(ctx)
	return err
}

func (d *Daemon) reloadLocked(ctx context.Context) (int, error) {
	st := stamp(d.config.SnapshotPath)
	rows, err := snapshot.Read(d.config.SnapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		d.config.Logger.Printf("Snapshot %s does not exist yet", d.config.SnapshotPath)
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if err := d.cache.ReplaceTasksContext(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to load snapshot into cache: %w", err)
	}
	d.loaded = st

	d.config.Logger.Printf("Loaded %d tasks from %s", len(rows), d.config.SnapshotPath)
	if d.config.OnReload != nil {
		d.config.OnReload(len(rows))
	}
	return len(rows), nil
}

// Start loads the snapshot, then watches it until ctx is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if _, err := d.Reload(ctx); err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.config.SnapshotPath), 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	watcher, err := NewSnapshotWatcher(d.config.SnapshotPath, d.config.DebounceInterval)
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		_ = watcher.Stop()
		return err
	}
	d.config.Logger.Printf("Watching: %s", d.config.SnapshotPath)

	if d.config.Sync != nil && d.config.SyncInterval > 0 {
		d.wg.Add(1)
		go d.syncPeriodically(ctx)
	}

	d.watchEvents(ctx, watcher)

	d.config.Logger.Println("Stopping daemon")
	if err := watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}
	d.wg.Wait()
	d.config.Logger.Println("Daemon stopped")
	return nil
}

func (d *Daemon) watchEvents(ctx context.Context, watcher *SnapshotWatcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events():
			if !ok {
				return
			}
			if event.Op == OpDelete {
				d.config.Logger.Printf("Snapshot removed; keeping cached tasks")
				continue
			}
			if err := d.reloadIfChanged(ctx); err != nil {
				d.config.Logger.Printf("Error reloading snapshot: %v", err)
			}

		case err, ok := <-watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// syncPeriodically runs the configured forward sync on a ticker. The
// resulting snapshot write is picked up by the watcher.
func (d *Daemon) syncPeriodically(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.config.Sync(ctx); err != nil {
				d.config.Logger.Printf("Scheduled sync failed: %v", err)
			}
		}
	}
}
