// Package errors provides structured error handling for the host bridge.
//
// Errors fall into three groups. Invariant violations (unknown node ids,
// duplicate ids in a multi-node lookup, host access outside an enter/exit
// bracket, nested enter) indicate corrupted internal bookkeeping and abort the
// current operation by panicking with a *BridgeError of KindInvariant.
// Structural misses (an insertion marker that is not a child of the target
// parent) are reported as plain boolean results by the tree package. Missing
// host resources are treated as unchanged and never surface as errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindInvariant indicates broken internal bookkeeping (a programmer error).
	KindInvariant
	// KindAccess indicates host access outside a valid lease.
	KindAccess
	// KindStructural indicates a failed structural tree edit.
	KindStructural
	// KindTask indicates a deferred task failure.
	KindTask
	// KindConfig indicates a configuration loading or validation error.
	KindConfig
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvariant:
		return "invariant"
	case KindAccess:
		return "access"
	case KindStructural:
		return "structural"
	case KindTask:
		return "task"
	case KindConfig:
		return "config"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Sentinel errors. Match them with Is; they are usually wrapped in a BridgeError.
var (
	ErrAccessNotAvailable = stderrors.New("host access not available")
	ErrAccessHeld         = stderrors.New("host access already held")
	ErrWrongGoroutine     = stderrors.New("called from a goroutine that does not own the host")
	ErrNodeNotFound       = stderrors.New("node not found")
	ErrNodeDestroyed      = stderrors.New("node destroyed")
	ErrDuplicateNode      = stderrors.New("duplicate node in multi-node lookup")
	ErrCycle              = stderrors.New("attach would create a cycle")
	ErrRootNotFound       = stderrors.New("root not found")
)

// BridgeError represents a structured error raised by the bridge.
type BridgeError struct {
	// Op is the operation that failed (e.g., "tree.Attach").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Node is the node id involved, if any.
	Node uint64
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BridgeError) Error() string {
	if e.Node != 0 {
		return fmt.Sprintf("%s [%s] node=%d: %v", e.Op, e.Kind, e.Node, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *BridgeError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "executor.Flush").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// BoundaryError is a panic recovered at a tick or mount boundary.
type BoundaryError struct {
	// Phase is the boundary that caught the panic ("tick", "mount", "unmount").
	Phase string
	// Recovered is the panic value.
	Recovered any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("panic during %s: %v", e.Phase, e.Recovered)
}

// Unwrap returns the recovered value when it is an error, so invariant
// violations remain matchable with Is after crossing a boundary.
func (e *BoundaryError) Unwrap() error {
	if err, ok := e.Recovered.(error); ok {
		return err
	}
	return nil
}

// Invariant builds a KindInvariant error with a captured stack.
func Invariant(op string, node uint64, err error) *BridgeError {
	return &BridgeError{
		Op:         op,
		Kind:       KindInvariant,
		Node:       node,
		Err:        err,
		StackTrace: CaptureStack(),
		Timestamp:  time.Now(),
	}
}

// Fatal panics with an invariant error. Used where the only legitimate
// producer of the failing input is the bridge itself.
func Fatal(op string, node uint64, err error) {
	panic(Invariant(op, node, err))
}

// IsInvariant reports whether err carries a KindInvariant BridgeError.
func IsInvariant(err error) bool {
	var be *BridgeError
	return stderrors.As(err, &be) && be.Kind == KindInvariant
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// New returns an error that formats as the given text.
func New(text string) error { return stderrors.New(text) }

// ErrorHandler receives errors reported by the bridge.
type ErrorHandler interface {
	// HandleError is called when an error occurs.
	HandleError(err *BridgeError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleBoundaryError is called when a tick or mount boundary catches a panic.
	HandleBoundaryError(err *BoundaryError)
}
