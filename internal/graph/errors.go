package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures. They are wrapped in a
// *ValidationError and can be matched with errors.Is.
var (
	ErrSameDirection     = errors.New("sockets have the same direction")
	ErrIncompatibleTypes = errors.New("socket types are incompatible")
	ErrSelfLoop          = errors.New("socket cannot connect to itself")
	ErrAlreadyConnected  = errors.New("sockets are already connected")
	ErrInvalidParam      = errors.New("invalid parameter value")
	ErrUnknownParam      = errors.New("unknown parameter")
	ErrEmptyName         = errors.New("node name is empty")
	ErrDuplicateID       = errors.New("duplicate node id")
)

// Sentinel errors for failed lookups. They are wrapped in a *LookupError.
var (
	ErrUnknownKind        = errors.New("unknown node kind")
	ErrNodeNotFound       = errors.New("node not found")
	ErrSocketNotFound     = errors.New("socket not found")
	ErrConnectionNotFound = errors.New("connection not found")
)

// ValidationError reports a mutation that was rejected before it was applied.
// The graph is always left unchanged.
type ValidationError struct {
	// Op is the operation that was rejected, e.g. "connect".
	Op string

	// Err is one of the validation sentinels.
	Err error

	// Detail carries the offending values.
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// LookupError reports a reference to a kind, node, socket or connection that
// does not exist.
type LookupError struct {
	// Key is the identifier that could not be resolved.
	Key string

	// Err is one of the lookup sentinels.
	Err error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Key)
}

func (e *LookupError) Unwrap() error { return e.Err }

func invalid(op string, err error, format string, args ...any) error {
	return &ValidationError{Op: op, Err: err, Detail: fmt.Sprintf(format, args...)}
}

func notFound(err error, key string) error {
	return &LookupError{Key: key, Err: err}
}
