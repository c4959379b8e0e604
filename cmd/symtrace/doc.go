/*
Symtrace is the operator CLI for the tracing engine. It prints the
effective engine configuration after yaml overlays, and answers skip-policy
queries (whether a callable defined in a given file would be inlined or
treated as opaque).

Usage:

	symtrace config [-f settings.yaml]
	symtrace skip [-f settings.yaml] <filename> [filename...]
	symtrace help
*/
package main

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces with key 'symtrace.cli'
func tracer() tracing.Trace {
	return tracing.Select("symtrace.cli")
}
