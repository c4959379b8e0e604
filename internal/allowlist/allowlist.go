// Package allowlist is the inlining policy collaborator: which callables
// may become single graph nodes, and which source files are opaque to the
// tracer. State is process-wide, initialized before tracing starts, and
// read-only afterwards.
package allowlist

import (
	"regexp"
	"strings"
	"sync"

	"github.com/symtrace/symtrace/internal/config"
	"github.com/symtrace/symtrace/internal/host"
)

// allowedModulePrefixes name the library namespaces whose callables are
// emitted directly into the graph instead of being inlined.
var allowedModulePrefixes = []string{"tensor", "math"}

// Allowed reports whether v is an approved external callable/module/class:
// one graph node instead of recursive symbolic evaluation.
func Allowed(v interface{}) bool {
	switch x := v.(type) {
	case *host.Function:
		return hasAllowedPrefix(x.Module)
	case *host.Class:
		return hasAllowedPrefix(x.ClsName)
	case *host.Module:
		return hasAllowedPrefix(x.ModName)
	case *host.DType, host.Device:
		return true
	default:
		return false
	}
}

// AllowedLayerClass reports whether a layer class is emitted as one
// call_module node rather than having its forward inlined.
func AllowedLayerClass(cls *host.Class) bool {
	return hasAllowedPrefix(cls.ClsName) && cls != host.BaseLayerClass
}

func hasAllowedPrefix(name string) bool {
	for _, p := range allowedModulePrefixes {
		if name == p || strings.HasPrefix(name, p+".") {
			return true
		}
	}
	return false
}

var (
	mu       sync.Mutex
	skipDirs []string
	skipRe   *regexp.Regexp
)

func init() {
	skipDirs = append(skipDirs, config.SkipPrefixes...)
	rebuild()
}

func rebuild() {
	parts := make([]string, len(skipDirs))
	for i, d := range skipDirs {
		parts[i] = regexp.QuoteMeta(d)
	}
	skipRe = regexp.MustCompile("^(" + strings.Join(parts, "|") + ")")
}

// AddSkip registers another skipped filename prefix; init-time only.
func AddSkip(prefix string) {
	mu.Lock()
	defer mu.Unlock()
	skipDirs = append(skipDirs, prefix)
	rebuild()
}

// SkipFile reports whether a callable defined in filename must not be
// inlined. Unknown provenance (empty filename) is always skipped.
func SkipFile(filename string) bool {
	if filename == "" {
		return true
	}
	return skipRe.MatchString(filename)
}
