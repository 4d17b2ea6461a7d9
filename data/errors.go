package data

import (
	"errors"
	"fmt"
	"sync"
)

// Kind is the machine-checkable discriminant of a VFS error.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindAlreadyExists     Kind = "ALREADY_EXISTS"
	KindInvalidPath       Kind = "INVALID_PATH"
	KindInvalidOperation  Kind = "INVALID_OPERATION"
	KindDirectoryNotEmpty Kind = "DIRECTORY_NOT_EMPTY"
	KindValidation        Kind = "VALIDATION"
	KindTransactionFailed Kind = "TRANSACTION_FAILED"
	KindPermissionDenied  Kind = "PERMISSION_DENIED"
)

// Error is the typed error every VFS operation surfaces.
// Kind lets callers branch without string matching; Detail carries optional
// structured context such as a validation report.
type Error struct {
	Kind    Kind
	Message string
	Detail  any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vfs: %s: %v", e.Message, e.Err)
	}

	return "vfs: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same kind, so sentinel-style
// comparisons via errors.Is work across wrapping.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}

	return false
}

// IsKind checks whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var verr *Error
	if errors.As(err, &verr) {
		return verr.Kind == kind
	}

	return false
}

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func ErrNotFound(ref string) *Error {
	return newError(KindNotFound, nil, "node '%s' does not exist", ref)
}

func ErrAlreadyExists(path string) *Error {
	return newError(KindAlreadyExists, nil, "node already exists at '%s'", path)
}

func ErrInvalidPath(path string) *Error {
	return newError(KindInvalidPath, nil, "invalid path '%s' detected", path)
}

func ErrInvalidOperation(format string, args ...any) *Error {
	return newError(KindInvalidOperation, nil, format, args...)
}

func ErrDirectoryNotEmpty(path string) *Error {
	return newError(KindDirectoryNotEmpty, nil, "directory '%s' is not empty", path)
}

// ErrValidation reports a rejection raised by the named extension.
func ErrValidation(extension string, detail any) *Error {
	e := newError(KindValidation, nil, "validation failed in extension '%s'", extension)
	e.Detail = detail
	return e
}

func ErrTransactionFailed(err error) *Error {
	return newError(KindTransactionFailed, err, "transaction failed")
}

func ErrPermissionDenied(path string) *Error {
	return newError(KindPermissionDenied, nil, "permission denied for '%s'", path)
}

// Errors collects multiple errors and joins them on demand.
type Errors struct {
	mu     sync.RWMutex
	errors []error
}

func (e *Errors) Add(err error) {
	if err == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.errors = append(e.errors, err)
}

func (e *Errors) Errors() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.errors) == 0 {
		return nil
	}

	return errors.Join(e.errors...)
}
