// Package registry indexes immutable skill specs by name. A Registry is
// built once, read many times: after New returns, nothing mutates it, so
// concurrent lookups need no coordination.
package registry

import (
	"fmt"
	"strings"

	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/skill"
)

// Registry is the read-only index of loaded skill specs.
type Registry struct {
	specs  []*skill.Spec // insertion order
	byName map[string]*skill.Spec
}

// New indexes the given specs. Every spec must pass shape validation
// (MALFORMED_SPEC otherwise) and carry a unique name
// (DUPLICATE_SKILL_NAME otherwise). Loading is all-or-nothing: one bad
// document fails the whole registry.
func New(specs []*skill.Spec) (*Registry, error) {
	reg := &Registry{
		specs:  make([]*skill.Spec, 0, len(specs)),
		byName: make(map[string]*skill.Spec, len(specs)),
	}
	for _, spec := range specs {
		if spec == nil {
			return nil, sgerrors.New(sgerrors.CodeMalformedSpec, "nil skill spec", nil)
		}
		if err := spec.Validate(); err != nil {
			return nil, sgerrors.New(sgerrors.CodeMalformedSpec, "invalid skill document", err).
				WithSkill(spec.Name).WithPath(spec.Path)
		}
		if _, exists := reg.byName[spec.Name]; exists {
			return nil, sgerrors.New(sgerrors.CodeDuplicateSkill,
				fmt.Sprintf("skill %q declared more than once", spec.Name), nil).
				WithSkill(spec.Name).WithPath(spec.Path)
		}
		reg.byName[spec.Name] = spec
		reg.specs = append(reg.specs, spec)
	}
	return reg, nil
}

// LoadDir loads every skill document directly under dir into a fresh
// registry. Documents load in file-name order, which fixes insertion
// order across runs.
func LoadDir(dir string) (*Registry, error) {
	specs, err := skill.LoadDir(dir)
	if err != nil {
		return nil, sgerrors.New(sgerrors.CodeMalformedSpec, "load skill directory", err).WithPath(dir)
	}
	return New(specs)
}

// LoadFiles loads the given skill documents, in argument order, into a
// fresh registry.
func LoadFiles(paths ...string) (*Registry, error) {
	specs := make([]*skill.Spec, 0, len(paths))
	for _, path := range paths {
		spec, err := skill.LoadFile(path)
		if err != nil {
			return nil, sgerrors.New(sgerrors.CodeMalformedSpec, "load skill document", err).WithPath(path)
		}
		specs = append(specs, spec)
	}
	return New(specs)
}

// Lookup returns the spec registered under name, deprecated or not.
func (r *Registry) Lookup(name string) (*skill.Spec, error) {
	spec, ok := r.byName[name]
	if !ok {
		return nil, sgerrors.New(sgerrors.CodeSkillNotFound,
			fmt.Sprintf("skill %q is not registered", name), nil).WithSkill(name)
	}
	return spec, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Len returns the number of registered skills, deprecated included.
func (r *Registry) Len() int {
	return len(r.specs)
}

// ListOptions narrow List output. The zero value lists every
// non-deprecated skill.
type ListOptions struct {
	// Tiers restricts output to the given tiers; empty means all tiers.
	Tiers []skill.Tier
	// IncludeDeprecated also returns deprecated skills.
	IncludeDeprecated bool
}

// List returns specs in insertion order, filtered by opts.
func (r *Registry) List(opts ListOptions) []*skill.Spec {
	tierWanted := func(t skill.Tier) bool {
		if len(opts.Tiers) == 0 {
			return true
		}
		for _, want := range opts.Tiers {
			if t == want {
				return true
			}
		}
		return false
	}

	var out []*skill.Spec
	for _, spec := range r.specs {
		if spec.Deprecated && !opts.IncludeDeprecated {
			continue
		}
		if !tierWanted(spec.Tier) {
			continue
		}
		out = append(out, spec)
	}
	return out
}

// Search returns non-deprecated specs whose name or description contains
// query, case-insensitive, in insertion order.
func (r *Registry) Search(query string) []*skill.Spec {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var out []*skill.Spec
	for _, spec := range r.specs {
		if spec.Deprecated {
			continue
		}
		if strings.Contains(strings.ToLower(spec.Name), query) ||
			strings.Contains(strings.ToLower(spec.Description), query) {
			out = append(out, spec)
		}
	}
	return out
}

// CountByTier returns the number of registered skills per tier,
// deprecated included.
func (r *Registry) CountByTier() map[skill.Tier]int {
	counts := make(map[skill.Tier]int, 3)
	for _, spec := range r.specs {
		counts[spec.Tier]++
	}
	return counts
}
