package backend

import "context"

// Mode selects the access mode a transaction is opened with.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

func (m Mode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWrite:
		return "read-write"
	default:
		return "unknown"
	}
}

// Transaction scopes collection access to a declared set of collections
// and a mode. Commit makes all writes visible; Abort discards them as if
// they never happened. Once terminal, the handle is inert and every
// further call returns ErrTxDone.
type Transaction interface {
	// Collection resolves a collection declared at Begin.
	// Returns ErrUnknownCollection for any other name.
	Collection(name string) (Collection, error)

	Commit(ctx context.Context) error

	Abort(ctx context.Context) error

	Mode() Mode
}
