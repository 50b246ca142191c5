package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dbvcapital/statusboard/internal/notion"
	"github.com/dbvcapital/statusboard/internal/sync"
)

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newClient builds the workspace client from the loaded config.
func newClient() *notion.Client {
	var opts []notion.Option
	if cfg.Notion.BaseURL != "" {
		opts = append(opts, notion.WithBaseURL(cfg.Notion.BaseURL))
	}
	return notion.NewClient(cfg.Notion.Token, opts...)
}

// newSyncer validates the config and builds a Syncer for it. With
// shareNames the user name cache lives as long as the Syncer; otherwise
// each run starts empty.
func newSyncer(shareNames bool) (sync.Syncer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout, err := cfg.SyncLayout()
	if err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	client := newClient()
	var users *sync.UserCache
	if shareNames {
		users = sync.NewUserCache(client, logs.Logger("sync"))
	}
	s := sync.New(client, sync.Options{
		Layout:       layout,
		SnapshotPath: cfg.Snapshot,
		Users:        users,
		Logger:       logs.Logger("sync"),
	})
	return s, nil
}
