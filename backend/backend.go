package backend

import (
	"context"
	"errors"
	"slices"
)

// Storage errors shared by all backend implementations.
var (
	ErrNotExist          = errors.New("vfs: document does not exist")
	ErrUniqueViolation   = errors.New("vfs: unique index violation")
	ErrUnknownCollection = errors.New("vfs: collection not declared for transaction")
	ErrUnknownIndex      = errors.New("vfs: index not defined in schema")
	ErrTxDone            = errors.New("vfs: transaction already committed or aborted")
	ErrTxReadOnly        = errors.New("vfs: transaction is read-only")
	ErrMissingKey        = errors.New("vfs: document is missing its primary key")
)

// Backend is the pluggable storage engine behind the VFS.
// Collections are declared up front through schemas handed to the
// constructor; all data access happens through transactions.
type Backend interface {
	// Name returns the identifier name defined for this backend
	Name() string

	// Open is part of the lifecycle behaviour and gets called when opening this backend.
	Open(ctx context.Context) error

	// Close is part of the lifecycle behaviour and gets called when closing this backend.
	Close(ctx context.Context) error

	// Destroy drops every collection and its data.
	Destroy(ctx context.Context) error

	// Begin opens a transaction scoped to exactly the named collections.
	// Requesting any other collection from the transaction is an error.
	Begin(ctx context.Context, collections []string, mode Mode) (Transaction, error)

	// GetCapabilities returns a list of capabilities supported by this backend.
	GetCapabilities() *BackendCapabilities
}

type BackendCapability string

const (
	CapabilityTransactions BackendCapability = "transactions"
	CapabilityIndexes      BackendCapability = "indexes"
	CapabilityDurable      BackendCapability = "durable"
)

// BackendCapabilities describes what a backend supports
type BackendCapabilities struct {
	Capabilities []BackendCapability
}

// Contains checks if a capability is supported
func (bc *BackendCapabilities) Contains(cap BackendCapability) bool {
	return slices.Contains(bc.Capabilities, cap)
}
