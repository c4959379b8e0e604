/*
Package guards models the predicates a trace must re-check before it can be
reused: each Guard names an externally resolvable location (an attribute
path, a container index, a global) together with the kind of check to
perform there. Guard sets are accumulated by the tracked variables in
internal/variables and only ever grow by union.

Sources are the provenance side of the same coin: a Source knows how to
name the location a value was derived from and how to build a Guard for it.
The engine never looks inside a Source beyond these two operations.
*/
package guards

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'symtrace.guards'.
func tracer() tracing.Trace {
	return tracing.Select("symtrace.guards")
}
