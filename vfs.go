// Package vfs implements an embedded virtual file system on top of a
// pluggable transactional storage backend. Modules form independent
// node trees; files carry content, tags and metadata; mutations run
// through an ordered extension pipeline and surface as events once
// committed.
package vfs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
	"github.com/mushuanli/vfs/extension"
	"github.com/mushuanli/vfs/extension/sidecar"
	"github.com/mushuanli/vfs/log"
	"github.com/mushuanli/vfs/store"
)

// FileSystem is the facade every host application talks to.
// All operations are safe for concurrent use; isolation is delegated to
// the backend's transactions.
type FileSystem struct {
	backend  backend.Backend
	stores   *store.Stores
	registry *extension.Registry
	pipeline *extension.Composite
	events   *Events
	log      *log.Logger

	newID func() string
	now   func() time.Time
}

// New opens the backend and assembles the file system around it.
// The backend must support transactions and secondary indexes; the
// companion-directory extension is registered unless opted out.
func New(ctx context.Context, b backend.Backend, opts ...Option) (*FileSystem, error) {
	options := &Options{
		Logger: log.Discard(),
		Clock:  time.Now,
		NewID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}

	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	caps := b.GetCapabilities()
	if !caps.Contains(backend.CapabilityTransactions) {
		return nil, data.ErrInvalidOperation("backend '%s' does not support transactions", b.Name())
	}
	if !caps.Contains(backend.CapabilityIndexes) {
		return nil, data.ErrInvalidOperation("backend '%s' does not support indexes", b.Name())
	}

	if err := b.Open(ctx); err != nil {
		return nil, err
	}

	events := options.Events
	if events == nil {
		events = NewEvents()
	}

	fs := &FileSystem{
		backend:  b,
		stores:   store.New(b),
		registry: extension.NewRegistry(),
		events:   events,
		log:      options.Logger.Named("vfs"),
		newID:    options.NewID,
		now:      options.Clock,
	}

	if !options.DisableSidecar {
		companion := sidecar.New(fs.stores, options.Logger,
			sidecar.WithIDGenerator(fs.newID),
			sidecar.WithClock(fs.now))
		if err := fs.registry.Register(companion); err != nil {
			return nil, err
		}
	}

	for _, ext := range options.Extensions {
		if err := fs.registry.Register(ext); err != nil {
			return nil, err
		}
	}

	fs.pipeline = fs.registry.Build()
	fs.log.Info("file system ready on backend '%s'", b.Name())

	return fs, nil
}

// Register adds an extension at runtime and rebuilds the pipeline.
func (fs *FileSystem) Register(ext extension.Extension) error {
	if err := fs.registry.Register(ext); err != nil {
		return err
	}

	fs.pipeline = fs.registry.Build()
	return nil
}

// Unregister removes an extension by name and rebuilds the pipeline.
func (fs *FileSystem) Unregister(name string) bool {
	removed := fs.registry.Unregister(name)
	if removed {
		fs.pipeline = fs.registry.Build()
	}

	return removed
}

// Events returns the listener registry.
func (fs *FileSystem) Events() *Events {
	return fs.events
}

// Destroy drops every collection and its data.
func (fs *FileSystem) Destroy(ctx context.Context) error {
	return fs.backend.Destroy(ctx)
}

// Shutdown tears the pipeline down and closes the backend.
func (fs *FileSystem) Shutdown(ctx context.Context) error {
	errs := data.Errors{}
	errs.Add(fs.pipeline.Cleanup())
	fs.events.Close()
	errs.Add(fs.backend.Close(ctx))

	return errs.Errors()
}

func (fs *FileSystem) begin(ctx context.Context, mode backend.Mode) (backend.Transaction, error) {
	tx, err := fs.stores.Begin(ctx, mode, store.AllCollections()...)
	if err != nil {
		return nil, data.ErrTransactionFailed(err)
	}

	return tx, nil
}

func (fs *FileSystem) commit(ctx context.Context, tx backend.Transaction) error {
	if err := tx.Commit(ctx); err != nil {
		return data.ErrTransactionFailed(err)
	}

	return nil
}

func (fs *FileSystem) abort(ctx context.Context, tx backend.Transaction) {
	if err := tx.Abort(ctx); err != nil {
		fs.log.Error("transaction abort failed: %v", err)
	}
}
