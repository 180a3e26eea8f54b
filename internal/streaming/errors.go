package streaming

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a streaming-core error for callers that need to
// branch on it rather than match a fixed sentinel.
type ErrorKind int

const (
	// KindInvalidState means the operation's precondition on the state
	// machine did not hold (start-when-active, pause-when-paused, ...).
	// Never recovered internally; always a caller bug.
	KindInvalidState ErrorKind = iota
	// KindInvalidArgument means a nil file, a file outside the torrent,
	// or a seek past end-of-file.
	KindInvalidArgument
	// KindConflict means the engine already hosts this infohash, or a
	// provider is already registered for it.
	KindConflict
	// KindCancelled means a suspended operation was cancelled by the
	// caller before it could complete.
	KindCancelled
	// KindStorageError means the engine's disk layer failed a read.
	// The stream remains usable for subsequent reads.
	KindStorageError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidState:
		return "invalid_state"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindCancelled:
		return "cancelled"
	case KindStorageError:
		return "storage_error"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every core operation. Op names the
// failing operation (e.g. "start", "create_stream") for logging.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("streaming: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("streaming: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, streaming.ErrInvalidState) style checks via the
// sentinel values below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Sentinels usable with errors.Is(err, streaming.ErrInvalidState), matching
// the Kind of any *Error regardless of Op/Err.
var (
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrCancelled       = &Error{Kind: KindCancelled}
	ErrStorage         = &Error{Kind: KindStorageError}
)
