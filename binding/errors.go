package qbind

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

var (
	// ErrNotifyDepth is returned by Notify when nested notifications exceed
	// Options.MaxNotifyDepth. The notification is dropped.
	ErrNotifyDepth = errors.New("qbind: notification depth exceeded")
	// ErrDisposed is returned by operations on a disposed Binding or Cursor.
	ErrDisposed = errors.New("qbind: disposed")
	// ErrNotWritable is returned when a writeback targets something that
	// cannot be assigned, such as the empty path or an unexported field.
	ErrNotWritable = errors.New("qbind: property is not writable")
	// ErrCycle is returned when reparenting a Node would create a cycle.
	ErrCycle = errors.New("qbind: node cannot be its own ancestor")
	// ErrSourceCollected is reported when a weakly held source or target
	// has been garbage collected.
	ErrSourceCollected = errors.New("qbind: object was collected")
)

// ParseError reports a malformed property path expression. No binding is
// created when parsing fails.
type ParseError struct {
	Expr   string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("qbind: invalid path %q at offset %d: %s", e.Expr, e.Pos, e.Reason)
}

// ResolutionKind identifies why a path could not be resolved.
type ResolutionKind int

const (
	// NullIntermediate means the root or an intermediate value was absent.
	NullIntermediate ResolutionKind = iota
	// MissingMember means a named property is not part of the value's
	// capability set.
	MissingMember
	// IndexOutOfRange means an index step was outside its collection.
	IndexOutOfRange
)

func (k ResolutionKind) String() string {
	switch k {
	case NullIntermediate:
		return "null intermediate"
	case MissingMember:
		return "missing member"
	case IndexOutOfRange:
		return "index out of range"
	default:
		return "unknown"
	}
}

// ResolutionError reports a path that could not be walked to its end.
// Bindings treat it as "no value" rather than as a failure.
type ResolutionError struct {
	Kind ResolutionKind
	Path PropertyPath
	// Step is the index of the step that failed, or -1 for the root.
	Step int
	// Type is the Go type of the value the step was applied to, if any.
	Type string
}

func (e *ResolutionError) Error() string {
	step := "root"
	if e.Step >= 0 && e.Step < len(e.Path.steps) {
		step = e.Path.steps[e.Step].String()
	}
	if e.Type != "" {
		return fmt.Sprintf("qbind: resolving %q: %s at %s on %s", e.Path.String(), e.Kind, step, e.Type)
	}
	return fmt.Sprintf("qbind: resolving %q: %s at %s", e.Path.String(), e.Kind, step)
}

// Is matches another *ResolutionError of the same kind, so callers can
// write errors.Is(err, &ResolutionError{Kind: MissingMember}).
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && t.Kind == e.Kind
}

// OutOfRangeError is returned by Cursor.SetCurrent for an invalid index.
// The cursor is left unchanged.
type OutOfRangeError struct {
	Index  int
	Length int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("qbind: index %d out of range [0,%d)", e.Index, e.Length)
}

// ConversionError reports a value that cannot be converted to the type of
// the property it is written to. The property keeps its prior value.
type ConversionError struct {
	Property string
	Want     string
	Got      string
	Err      error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("qbind: cannot convert %s to %s for %q: %v", e.Got, e.Want, e.Property, e.Err)
	}
	return fmt.Sprintf("qbind: cannot convert %s to %s for %q", e.Got, e.Want, e.Property)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// ListenerError wraps a failure of a single listener during notification.
// Delivery to the remaining listeners continues.
type ListenerError struct {
	// Op names the delivery, e.g. "notify name" or "collection".
	Op string
	// Err is the error returned by the listener, nil for panics.
	Err error
	// Recovered is the value passed to panic, nil for returned errors.
	Recovered  any
	StackTrace string
}

func (e *ListenerError) Error() string {
	if e.Recovered != nil {
		return fmt.Sprintf("qbind: listener panic in %s: %v", e.Op, e.Recovered)
	}
	return fmt.Sprintf("qbind: listener failed in %s: %v", e.Op, e.Err)
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}

// captureStack returns the current call stack as a string, skipping the
// recovery frames.
func captureStack() string {
	const maxDepth = 32
	var pcs [maxDepth]uintptr
	n := runtime.Callers(4, pcs[:])
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		sb.WriteString(frame.Function)
		sb.WriteString("\n\t")
		sb.WriteString(frame.File)
		sb.WriteString(":")
		fmt.Fprintf(&sb, "%d", frame.Line)
		sb.WriteString("\n")
		if !more {
			break
		}
	}
	return sb.String()
}
