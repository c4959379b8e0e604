// Package config holds the process-wide engine configuration. Settings are
// package-level and expected to be fixed before any trace begins; the
// engine only reads them during tracing.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// DynamicPropagation enables eager re-execution of graph operations on
	// sample values to infer shapes and dtypes.
	DynamicPropagation = true

	// DynamicShapes disables full shape/stride specialization; when false,
	// shape-data-dependent operations refuse tracing.
	DynamicShapes = false

	// MaxRangeLen bounds eager materialization of literal ranges; larger
	// ranges are a graph-break.
	MaxRangeLen = 16384

	// SkipPrefixes seeds the allow/skip policy's file prefix table.
	SkipPrefixes = []string{"tensor/", "host/lib/"}

	constantFunctions = map[string]interface{}{
		"tensor.jit.is_scripting": false,
		"tensor.is_tracing":       false,
	}
)

// ConstantFunction looks up a function forced to a constant result
// irrespective of its arguments, by qualified name.
func ConstantFunction(qualname string) (interface{}, bool) {
	v, ok := constantFunctions[qualname]
	return v, ok
}

// SetConstantFunction forces qualname to return v; init-time only.
func SetConstantFunction(qualname string, v interface{}) {
	constantFunctions[qualname] = v
}

// ConstantFunctions returns a copy of the forced-constant table.
func ConstantFunctions() map[string]interface{} {
	cf := make(map[string]interface{}, len(constantFunctions))
	for k, v := range constantFunctions {
		cf[k] = v
	}
	return cf
}

// Settings is the yaml-overridable document form. Pointer fields leave the
// compiled default in place when absent.
type Settings struct {
	DynamicPropagation *bool                  `yaml:"dynamic_propagation"`
	DynamicShapes      *bool                  `yaml:"dynamic_shapes"`
	MaxRangeLen        *int                   `yaml:"max_range_len"`
	SkipPrefixes       []string               `yaml:"skip_prefixes"`
	ConstantFunctions  map[string]interface{} `yaml:"constant_functions"`
}

// Apply overlays s onto the package settings.
func Apply(s Settings) {
	if s.DynamicPropagation != nil {
		DynamicPropagation = *s.DynamicPropagation
	}
	if s.DynamicShapes != nil {
		DynamicShapes = *s.DynamicShapes
	}
	if s.MaxRangeLen != nil {
		MaxRangeLen = *s.MaxRangeLen
	}
	if s.SkipPrefixes != nil {
		SkipPrefixes = append([]string{}, s.SkipPrefixes...)
	}
	for k, v := range s.ConstantFunctions {
		constantFunctions[k] = v
	}
}

// LoadBytes parses a yaml settings document and applies it.
func LoadBytes(data []byte) error {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	Apply(s)
	return nil
}

// LoadFile reads and applies a yaml settings file.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return LoadBytes(data)
}

// Snapshot captures the current settings; Restore puts them back. Tests use
// the pair to isolate configuration changes.
type Snapshot struct {
	dynamicPropagation bool
	dynamicShapes      bool
	maxRangeLen        int
	skipPrefixes       []string
	constantFunctions  map[string]interface{}
}

// Save captures the package settings.
func Save() Snapshot {
	cf := make(map[string]interface{}, len(constantFunctions))
	for k, v := range constantFunctions {
		cf[k] = v
	}
	return Snapshot{
		dynamicPropagation: DynamicPropagation,
		dynamicShapes:      DynamicShapes,
		maxRangeLen:        MaxRangeLen,
		skipPrefixes:       append([]string{}, SkipPrefixes...),
		constantFunctions:  cf,
	}
}

// Restore reinstates a snapshot.
func Restore(s Snapshot) {
	DynamicPropagation = s.dynamicPropagation
	DynamicShapes = s.dynamicShapes
	MaxRangeLen = s.maxRangeLen
	SkipPrefixes = append([]string{}, s.skipPrefixes...)
	constantFunctions = make(map[string]interface{}, len(s.constantFunctions))
	for k, v := range s.constantFunctions {
		constantFunctions[k] = v
	}
}
