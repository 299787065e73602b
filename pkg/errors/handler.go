package errors

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"
)

// handlerSlot lets atomic.Pointer hold any ErrorHandler implementation.
type handlerSlot struct{ h ErrorHandler }

var current atomic.Pointer[handlerSlot]

func init() {
	current.Store(&handlerSlot{h: &LogHandler{}})
}

// SetHandler installs h as the global handler and returns the one it
// replaced. Nil installs a LogHandler writing to slog.Default().
func SetHandler(h ErrorHandler) ErrorHandler {
	if h == nil {
		h = &LogHandler{}
	}
	return current.Swap(&handlerSlot{h: h}).h
}

// Handler returns the global handler.
func Handler() ErrorHandler {
	return current.Load().h
}

// Report sends err to the global handler. A zero Timestamp is set to now.
// Invariant errors carry the reporter's stack when they have none.
func Report(err *BridgeError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	if err.Kind == KindInvariant && err.StackTrace == "" {
		err.StackTrace = captureStack(1)
	}
	Handler().HandleError(err)
}

// ReportAt reports err as a failure of op on node. If err wraps a
// BridgeError that one is reported, with op and node filling only the fields
// it left empty. Any other error is wrapped in a BridgeError of kind.
func ReportAt(op string, node uint64, kind ErrorKind, err error) {
	if err == nil {
		return
	}
	var be *BridgeError
	if !As(err, &be) {
		be = &BridgeError{Kind: kind, Err: err}
	}
	if be.Op == "" {
		be.Op = op
	}
	if be.Node == 0 {
		be.Node = node
	}
	Report(be)
}

// ReportPanic sends a panic error to the global handler.
func ReportPanic(err *PanicError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandlePanic(err)
}

// ReportBoundaryError sends a boundary error to the global handler.
func ReportBoundaryError(err *BoundaryError) {
	if err == nil {
		return
	}
	if err.Timestamp.IsZero() {
		err.Timestamp = time.Now()
	}
	Handler().HandleBoundaryError(err)
}

// Recover reports a panic in progress as a PanicError of op, then passes the
// recovered value to onPanic if it is not nil. It must be deferred directly:
//
//	defer errors.Recover("executor.Flush", nil)
//
// A recovered *BridgeError names the failing operation, so its Op is
// appended to op.
func Recover(op string, onPanic func(any)) {
	r := recover()
	if r == nil {
		return
	}
	if be, ok := r.(*BridgeError); ok && be.Op != "" && be.Op != op {
		op += "/" + be.Op
	}
	ReportPanic(&PanicError{Op: op, Value: r, StackTrace: captureStack(1)})
	if onPanic != nil {
		onPanic(r)
	}
}

// CaptureStack returns its caller's stack, one "function\n\tfile:line" entry
// per frame. Frames inside the Go runtime are left out.
func CaptureStack() string {
	return captureStack(1)
}

// captureStack skips skip frames above its own caller.
func captureStack(skip int) string {
	var pcs [32]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return ""
	}
	var sb strings.Builder
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&sb, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return sb.String()
}
