/*
Package graph defines the in-process contract between the engine and the
external dataflow graph: nodes, proxies, and the operation evaluator used
for example-value propagation. The graph backend itself (turning nodes into
executable code) lives outside this repository.
*/
package graph

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'symtrace.graph'.
func tracer() tracing.Trace {
	return tracing.Select("symtrace.graph")
}
