package variables

import (
	"github.com/symtrace/symtrace/internal/graph"
	"github.com/symtrace/symtrace/internal/guards"
	"github.com/symtrace/symtrace/internal/host"
)

// Tx is the driver-side trace transaction the engine calls back into. The
// bytecode walker that owns the symbolic frame implements it; tests use a
// lightweight fake.
type Tx interface {
	// CreateProxy records a new operation in the external graph.
	CreateProxy(op graph.Op, target interface{}, args []interface{}, kwargs map[string]interface{}) *graph.Proxy

	// GetSubmodule resolves a registered layer by its key.
	GetSubmodule(key string) *host.Layer

	// AddSubmodule registers (or re-finds) a traced component reachable
	// from the layer at key and wraps it as a variable. component is the
	// attribute name or child index under the keyed layer.
	AddSubmodule(value interface{}, key string, component interface{}, source guards.Source, opts Options) Variable

	// CallFunction pushes a symbolic call whose result lands on the
	// driver's stack; Pop retrieves it.
	CallFunction(fn Variable, args []Variable, kwargs Kwargs) error
	Pop() Variable

	// InlineUserFunctionReturn symbolically executes fn inline and
	// returns its result variable.
	InlineUserFunctionReturn(fn Variable, args []Variable, kwargs Kwargs) (Variable, error)

	// ReplaceAll substitutes newVar for oldVar in every tracked location
	// (locals, stack, containers), matching by mutation token.
	ReplaceAll(oldVar, newVar Variable)

	// FGlobals is the global namespace of the traced frame.
	FGlobals() host.Namespace

	// SymbolicLocals is the live local-variable map of the traced frame.
	SymbolicLocals() map[string]Variable
}
