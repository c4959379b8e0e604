package variables

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrStopIteration signals iterator exhaustion. Callers advancing a
// ListIteratorVariable must match it with errors.Is and translate it into
// the traced program's own exhaustion handling.
var ErrStopIteration = errors.New("stop iteration")

// Unsupported marks a construct the engine does not model symbolically.
// It is recoverable: the driver catches it and falls back to running the
// affected region outside the trace (a graph break).
type Unsupported struct {
	Msg string
}

func (e *Unsupported) Error() string {
	return "graph break: " + e.Msg
}

// IsUnsupported reports whether err is (or wraps) a graph break.
func IsUnsupported(err error) bool {
	var u *Unsupported
	return errors.As(err, &u)
}

func unsupported(format string, args ...interface{}) error {
	e := &Unsupported{Msg: fmt.Sprintf(format, args...)}
	tracer().Debugf(e.Msg)
	return e
}

func unsupportedMethod(v Variable, name string, args []Variable, kwargs Kwargs) error {
	return unsupported("call_method %s %s %s %s", v, name, fmtVars(args), fmtKwargs(kwargs))
}

// InvariantError reports a broken engine invariant. It is not meant to be
// recovered: reaching one means the tracer itself is wrong, not the traced
// program.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violation: " + e.Msg
}

func invariant(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(&InvariantError{Msg: fmt.Sprintf(format, args...)})
	}
}

func fmtVars(args []Variable) string {
	var b strings.Builder
	b.WriteString("[")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteString("]")
	return b.String()
}

func fmtKwargs(kwargs Kwargs) string {
	if len(kwargs) == 0 {
		return "{}"
	}
	names := make([]string, 0, len(kwargs))
	for k := range kwargs {
		names = append(names, k)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("{")
	for i, k := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, kwargs[k])
	}
	b.WriteString("}")
	return b.String()
}
