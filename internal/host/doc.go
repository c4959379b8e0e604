/*
Package host models the runtime object system of the traced host language:
literal values, type objects with method resolution, functions with code and
closure cells, modules, tensor metadata, and the layer tree that stands in
for a model's object hierarchy.

The engine in internal/variables folds over these values at trace time; it
never executes host code except through the explicit foldable Impl hooks on
builtin and math functions, and through the graph's operation evaluator for
example-value propagation.
*/
package host
