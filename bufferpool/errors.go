package bufferpool

import (
	"errors"
	"fmt"
)

// Kind classifies a bufferpool error the way spec.md §7's error-kind
// table does, so callers can branch with errors.As instead of matching
// strings.
type Kind int

const (
	// KindConfiguration covers bad constructor arguments.
	KindConfiguration Kind = iota
	// KindAllocationFailure covers a backing allocator returning nothing.
	KindAllocationFailure
	// KindLifetimeViolation covers an external buffer observed dead.
	KindLifetimeViolation
	// KindProtocolViolation covers submit/release of a foreign buffer or
	// an illegal state transition.
	KindProtocolViolation
	// KindQueueFull covers injection past a dynamic pool's max capacity.
	KindQueueFull
	// KindInvalidInput covers an invalid or dead handle passed to inject.
	KindInvalidInput
	// KindNotSupported covers an operation the current mode does not
	// support (e.g. readFrameTo while a reader is in injection mode).
	KindNotSupported
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "Configuration"
	case KindAllocationFailure:
		return "AllocationFailure"
	case KindLifetimeViolation:
		return "LifetimeViolation"
	case KindProtocolViolation:
		return "ProtocolViolation"
	case KindQueueFull:
		return "QueueFull"
	case KindInvalidInput:
		return "InvalidInput"
	case KindNotSupported:
		return "NotSupported"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with a message, letting callers errors.As into a
// *Error and branch on Kind without string matching.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("bufferpool: %s: %s", e.Kind, e.Msg) }

func newError(k Kind, format string, args ...any) error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Sentinel errors for the common no-argument failure cases.
var (
	ErrEmptyExternalBuffers = errors.New("bufferpool: external buffer list is empty")
	ErrEmptyHandles         = errors.New("bufferpool: handle list is empty")
	ErrQueueFull            = &Error{Kind: KindQueueFull, Msg: "pool at max capacity"}
	ErrInvalidHandle        = &Error{Kind: KindInvalidInput, Msg: "handle is nil or already dead"}
)
