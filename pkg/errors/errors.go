// Package errors provides structured error handling for the Loom framework.
package errors

import (
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindNotFound indicates a reference to an element that does not exist.
	KindNotFound
	// KindAlreadyExists indicates an insertion that would duplicate an element.
	KindAlreadyExists
	// KindInvalidParent indicates a structural operation against an invalid parent.
	KindInvalidParent
	// KindCycleDetected indicates a reparent that would create a cycle.
	KindCycleDetected
	// KindMaxDepthExceeded indicates a traversal past the tree depth guard.
	KindMaxDepthExceeded
	// KindEmptyTree indicates an operation that requires a mounted root.
	KindEmptyTree
	// KindNotSupported indicates an operation the target element cannot perform.
	KindNotSupported
	// KindLayout indicates a layout failure (invalid constraints, re-entrancy).
	KindLayout
	// KindPaint indicates a paint failure.
	KindPaint
	// KindConcurrentModification indicates tree mutation off the frame goroutine.
	KindConcurrentModification
	// KindInternal indicates a broken framework invariant.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindAlreadyExists:
		return "already exists"
	case KindInvalidParent:
		return "invalid parent"
	case KindCycleDetected:
		return "cycle detected"
	case KindMaxDepthExceeded:
		return "max depth exceeded"
	case KindEmptyTree:
		return "empty tree"
	case KindNotSupported:
		return "not supported"
	case KindLayout:
		return "layout"
	case KindPaint:
		return "paint"
	case KindConcurrentModification:
		return "concurrent modification"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Recoverable reports whether an error of this kind can be contained to the
// offending subtree. Internal and ConcurrentModification escalate to a
// frame abort; everything else replaces the subtree with a fallback node
// and lets the rest of the frame proceed.
func (k ErrorKind) Recoverable() bool {
	switch k {
	case KindInternal, KindConcurrentModification:
		return false
	default:
		return true
	}
}

// TreeError represents a structured error in the Loom framework.
type TreeError struct {
	// Op is the operation that failed (e.g., "core.ElementTree.Reparent").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Element is the id of the element involved, zero when not applicable.
	Element uint32
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *TreeError) Error() string {
	if e.Element != 0 {
		return fmt.Sprintf("%s [%s] element=%d: %v", e.Op, e.Kind, e.Element, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *TreeError) Unwrap() error {
	return e.Err
}

// New builds a TreeError for the given operation and kind.
func New(op string, kind ErrorKind, format string, args ...any) *TreeError {
	return &TreeError{
		Op:        op,
		Kind:      kind,
		Err:       fmt.Errorf(format, args...),
		Timestamp: time.Now(),
	}
}

// NewFor is New with the offending element id attached.
func NewFor(op string, kind ErrorKind, element uint32, format string, args ...any) *TreeError {
	err := New(op, kind, format, args...)
	err.Element = element
	return err
}

// KindOf extracts the ErrorKind from an error chain.
// Returns KindUnknown when err is nil or carries no TreeError.
func KindOf(err error) ErrorKind {
	for err != nil {
		if te, ok := err.(*TreeError); ok {
			return te.Kind
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = unwrapper.Unwrap()
	}
	return KindUnknown
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "core.rebuildElement").
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

// BuildError represents a failure while building an element's configuration.
type BuildError struct {
	// View is the type name of the view configuration that failed.
	View string
	// Element is the id of the element whose build failed.
	Element uint32
	// Recovered is the panic value (nil for regular errors).
	Recovered any
	// Err is the underlying error (nil for panics).
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *BuildError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("panic building %s (element %d): %v", e.View, e.Element, e.Recovered)
	}
	if e.Err != nil {
		return fmt.Sprintf("error building %s (element %d): %v", e.View, e.Element, e.Err)
	}
	return fmt.Sprintf("unknown error building %s (element %d)", e.View, e.Element)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ErrorHandler receives errors reported by the Loom framework.
type ErrorHandler interface {
	// HandleError is called when a structured tree error occurs.
	HandleError(err *TreeError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
	// HandleBuildError is called when a view build fails.
	HandleBuildError(err *BuildError)
}
