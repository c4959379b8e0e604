/*
Package variables implements the symbolic value-tracking core of the
tracer: for every live local of the traced program it maintains an
immutable Variable that knows enough of the concrete runtime value to fold
constants and specialize shapes, can project itself into the external
dataflow graph, and accumulates the guards the trace must re-check before
reuse.

Variables form a closed variant set. Every "mutation" produces a
replacement variable; the driver substitutes replacements into its locals
via ReplaceAll. Constructs the engine deliberately does not model surface
as catchable *Unsupported errors (graph breaks); broken internal
invariants panic with *InvariantError.
*/
package variables

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'symtrace.variables'.
func tracer() tracing.Trace {
	return tracing.Select("symtrace.variables")
}
