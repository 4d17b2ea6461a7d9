// Package extension implements the pluggable hook pipeline that
// participates in VFS mutations. Extensions declare a priority and an
// applicability predicate; the individual lifecycle hooks are optional
// capability interfaces discovered by type assertion, so an extension
// implements only the subset it cares about.
package extension

import (
	"context"

	"github.com/mushuanli/vfs/backend"
	"github.com/mushuanli/vfs/data"
)

// Extension is the base contract every pipeline participant fulfills.
// Hook capabilities are separate interfaces; see below.
type Extension interface {
	// Name identifies the extension, e.g. in validation errors.
	Name() string

	// Priority orders hook invocation; higher runs first.
	// Registration order breaks ties.
	Priority() int

	// AppliesTo lets the extension opt out per node.
	AppliesTo(node *data.Inode) bool
}

// Validator may reject a pending write before anything is persisted.
// A returned error surfaces as a VALIDATION error carrying the
// extension name.
type Validator interface {
	Validate(ctx context.Context, node *data.Inode, content []byte) error
}

// BeforeWriter transforms content before it is persisted. The output of
// one extension feeds the next as input, in priority order.
// All store access must go through the supplied transaction.
type BeforeWriter interface {
	BeforeWrite(ctx context.Context, tx backend.Transaction, node *data.Inode, content []byte) ([]byte, error)
}

// AfterWriter derives metadata from persisted content. The maps of all
// applicable extensions are merged; later entries win on key collision.
type AfterWriter interface {
	AfterWrite(ctx context.Context, tx backend.Transaction, node *data.Inode, content []byte) (map[string]any, error)
}

// BeforeDeleter runs before a node is removed.
type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, tx backend.Transaction, node *data.Inode) error
}

// AfterDeleter runs after a node was removed, inside the same
// transaction as the primary delete.
type AfterDeleter interface {
	AfterDelete(ctx context.Context, tx backend.Transaction, node *data.Inode) error
}

// AfterMover runs after a node was relocated or renamed, inside the
// same transaction as the primary move.
type AfterMover interface {
	AfterMove(ctx context.Context, tx backend.Transaction, node *data.Inode, oldPath, newPath string) error
}

// AfterCopier runs after a node was duplicated, inside the same
// transaction as the primary copy. An error aborts the whole copy.
type AfterCopier interface {
	AfterCopy(ctx context.Context, tx backend.Transaction, source, target *data.Inode) error
}

// Cleaner releases extension resources at shutdown.
type Cleaner interface {
	Cleanup() error
}
