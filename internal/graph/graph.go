package graph

import (
	"fmt"

	"github.com/symtrace/symtrace/internal/host"
)

// Op classifies a dataflow node.
type Op string

const (
	Placeholder  Op = "placeholder"
	CallFunction Op = "call_function"
	CallMethod   Op = "call_method"
	CallModule   Op = "call_module"
	GetAttrOp    Op = "get_attr"
	Output       Op = "output"
)

// ExampleValueKey indexes the concrete sample a node carries in Meta. The
// sample is a side channel for specialization only; it is never part of the
// traced program.
const ExampleValueKey = "example_value"

// Node is one operation of the external dataflow graph. Args and Kwargs
// hold either *Node operands or concrete host values.
type Node struct {
	Op     Op
	Target interface{} // *host.Function, method name, or module key
	Args   []interface{}
	Kwargs map[string]interface{}
	Meta   map[string]host.Value
	Name   string
}

func (n *Node) String() string {
	return fmt.Sprintf("%%%s = %s(%v)", n.Name, n.Op, n.Target)
}

// TargetName renders the target for diagnostics.
func (n *Node) TargetName() string {
	switch t := n.Target.(type) {
	case *host.Function:
		return t.QualName()
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Proxy is the engine-facing handle for a node, bound to the graph that
// owns it so derived nodes land in the same graph.
type Proxy struct {
	node  *Node
	graph *Graph
}

// Node exposes the underlying graph node.
func (p *Proxy) Node() *Node { return p.node }

// Graph exposes the owning graph.
func (p *Proxy) Graph() *Graph { return p.graph }

// Attr derives a proxy for an attribute projection of this node.
func (p *Proxy) Attr(name string) *Proxy {
	return p.graph.CreateProxy(GetAttrOp, name, []interface{}{p}, nil)
}

func (p *Proxy) String() string { return p.node.String() }

// OpEvaluator re-executes single operations on concrete sample values,
// supplied by the driver. Only example-value propagation calls it.
type OpEvaluator interface {
	CallFunction(fn *host.Function, args []host.Value, kwargs map[string]host.Value) (host.Value, error)
	CallMethod(name string, self host.Value, args []host.Value, kwargs map[string]host.Value) (host.Value, error)
	CallLayer(layer *host.Layer, args []host.Value, kwargs map[string]host.Value) (host.Value, error)
}

// Graph accumulates nodes for one trace attempt.
type Graph struct {
	nodes     []*Node
	seq       int
	Evaluator OpEvaluator
}

// New builds an empty graph with an optional evaluator.
func New(eval OpEvaluator) *Graph {
	return &Graph{Evaluator: eval}
}

// Nodes lists the created nodes in order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Len is the node count.
func (g *Graph) Len() int { return len(g.nodes) }

// CreateProxy allocates a node and returns its proxy. Proxy-valued args and
// kwargs are unwrapped to their nodes.
func (g *Graph) CreateProxy(op Op, target interface{}, args []interface{}, kwargs map[string]interface{}) *Proxy {
	g.seq++
	n := &Node{
		Op:     op,
		Target: target,
		Args:   unwrapAll(args),
		Kwargs: unwrapMap(kwargs),
		Meta:   make(map[string]host.Value),
		Name:   fmt.Sprintf("n%d", g.seq),
	}
	g.nodes = append(g.nodes, n)
	tracer().Debugf("new node %s target=%s", n.Name, n.TargetName())
	return &Proxy{node: n, graph: g}
}

func unwrapAll(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, a := range args {
		out[i] = unwrap(a)
	}
	return out
}

func unwrapMap(kwargs map[string]interface{}) map[string]interface{} {
	if kwargs == nil {
		return nil
	}
	out := make(map[string]interface{}, len(kwargs))
	for k, v := range kwargs {
		out[k] = unwrap(v)
	}
	return out
}

func unwrap(a interface{}) interface{} {
	if p, ok := a.(*Proxy); ok {
		return p.node
	}
	return a
}

// MapArgs extracts the example values of a node's operands: node operands
// contribute their recorded sample, concrete values pass through. A node
// operand without a sample is an error (example-value propagation cannot
// proceed).
func MapArgs(n *Node) ([]host.Value, map[string]host.Value, error) {
	args := make([]host.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := exampleOf(a)
		if err != nil {
			return nil, nil, err
		}
		args[i] = v
	}
	var kwargs map[string]host.Value
	if len(n.Kwargs) > 0 {
		kwargs = make(map[string]host.Value, len(n.Kwargs))
		for k, a := range n.Kwargs {
			v, err := exampleOf(a)
			if err != nil {
				return nil, nil, err
			}
			kwargs[k] = v
		}
	}
	return args, kwargs, nil
}

func exampleOf(a interface{}) (host.Value, error) {
	operand, ok := a.(*Node)
	if !ok {
		return a, nil
	}
	v, ok := operand.Meta[ExampleValueKey]
	if !ok {
		return nil, fmt.Errorf("node %s has no example value", operand.Name)
	}
	return v, nil
}
