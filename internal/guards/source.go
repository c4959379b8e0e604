package guards

import (
	"fmt"
)

// Source is the opaque provenance handle for a tracked value: it can name
// the location the value came from and mint a guard for that location.
// Root sources (locals, globals, call inputs) are supplied by the driver;
// the engine only derives nested sources from them.
type Source interface {
	Name() string
	CreateGuard(Kind) Guard
}

// LocalSource names a frame-local input of the traced region.
type LocalSource struct {
	Local string
}

func (s LocalSource) Name() string { return s.Local }

func (s LocalSource) CreateGuard(k Kind) Guard {
	return Guard{Name: s.Name(), Kind: k}
}

// GlobalSource names a module-global of the traced region.
type GlobalSource struct {
	Global string
}

func (s GlobalSource) Name() string { return s.Global }

func (s GlobalSource) CreateGuard(k Kind) Guard {
	return Guard{Name: s.Name(), Kind: k}
}

// AttrSource derives provenance through an attribute access.
type AttrSource struct {
	Base   Source
	Member string
}

func (s AttrSource) Name() string {
	return s.Base.Name() + "." + s.Member
}

func (s AttrSource) CreateGuard(k Kind) Guard {
	return Guard{Name: s.Name(), Kind: k}
}

// ItemSource derives provenance through a container subscript.
type ItemSource struct {
	Base  Source
	Index interface{}
}

func (s ItemSource) Name() string {
	if k, ok := s.Index.(string); ok {
		return fmt.Sprintf("%s[%q]", s.Base.Name(), k)
	}
	return fmt.Sprintf("%s[%v]", s.Base.Name(), s.Index)
}

func (s ItemSource) CreateGuard(k Kind) Guard {
	return Guard{Name: s.Name(), Kind: k}
}

// LayerSource wraps provenance that passes through the externally addressed
// layer tree. Guard names are unchanged; the wrapper records that re-deriving
// the value goes through the layer registry rather than plain attribute
// lookup.
type LayerSource struct {
	Inner Source
}

func (s LayerSource) Name() string { return s.Inner.Name() }

func (s LayerSource) CreateGuard(k Kind) Guard {
	return s.Inner.CreateGuard(k)
}

// Replace drops every guard named by source and re-creates the requested
// kinds from it. Used when a stronger specialization supersedes weaker
// guards on the same location.
func Replace(s *Set, source Source, kinds ...Kind) *Set {
	name := source.Name()
	out := NewSet()
	s.Each(func(g Guard) {
		if g.Name != name {
			out.inner.Add(g)
		}
	})
	for _, k := range kinds {
		out.inner.Add(source.CreateGuard(k))
	}
	tracer().Debugf("replaced guards for %s -> %s", name, out)
	return out
}
