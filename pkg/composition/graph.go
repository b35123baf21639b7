// Package composition derives the dependency graph declared by skill
// compositions, checks its invariants (resolvable references, strict tier
// descent, acyclicity), and flattens composite skills into atomic
// execution traces.
package composition

import (
	"fmt"
	"strings"

	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/registry"
	"github.com/zeonlabs/skillgraph/pkg/skill"
)

// Edge is one "composed of" relation, tagged with the declaring step's
// order index.
type Edge struct {
	From       string `json:"from"`
	To         string `json:"to"`
	OrderIndex int    `json:"order_index"`
	// RepeatUntil carries the declaring step's loop token, when any.
	RepeatUntil skill.Condition `json:"repeat_until,omitempty"`
}

// Graph is the dependency DAG derived from a registry. It is rebuilt
// wholesale whenever the registry changes and never mutated afterwards,
// so concurrent readers need no coordination.
type Graph struct {
	reg      *registry.Registry
	nodes    []string // registry insertion order
	children map[string][]Edge
	parents  map[string][]string
	topo     []string // dependencies first
}

// Build derives the composition graph from reg. Every composition
// reference must resolve (UNKNOWN_SUB_SKILL) and point to a strictly
// lower tier (TIER_VIOLATION). Tier descent already rules out cycles, but
// the builder still runs a full cycle check so an authoring bug surfaces
// as CYCLE_DETECTED here instead of corrupting execution order later.
func Build(reg *registry.Registry) (*Graph, error) {
	g := &Graph{
		reg:      reg,
		children: make(map[string][]Edge),
		parents:  make(map[string][]string),
	}

	for _, spec := range reg.List(registry.ListOptions{IncludeDeprecated: true}) {
		g.nodes = append(g.nodes, spec.Name)
		for _, step := range spec.Steps() {
			sub, err := reg.Lookup(step.Skill)
			if err != nil {
				return nil, sgerrors.New(sgerrors.CodeUnknownSubSkill,
					fmt.Sprintf("composition of %q references unknown skill %q", spec.Name, step.Skill), err).
					WithSkill(spec.Name)
			}
			if !spec.Tier.CanCompose(sub.Tier) {
				return nil, sgerrors.New(sgerrors.CodeTierViolation,
					fmt.Sprintf("%q (%s) cannot reference %q (%s): sub-skill tier must be strictly lower",
						spec.Name, spec.Tier, sub.Name, sub.Tier), nil).
					WithSkill(spec.Name).
					WithPath(spec.Name + " -> " + sub.Name)
			}
			g.children[spec.Name] = append(g.children[spec.Name], Edge{
				From:        spec.Name,
				To:          step.Skill,
				OrderIndex:  step.OrderIndex,
				RepeatUntil: step.RepeatUntil,
			})
			g.parents[step.Skill] = append(g.parents[step.Skill], spec.Name)
		}
	}

	sorted, cycle := sortDAG(g.nodes, g.dependencyNames)
	if cycle != nil {
		return nil, sgerrors.New(sgerrors.CodeCycleDetected,
			"composition graph contains a cycle", nil).
			WithPath(strings.Join(cycle, " -> "))
	}
	g.topo = sorted
	return g, nil
}

// dependencyNames returns the direct sub-skill names of name in
// order_index order.
func (g *Graph) dependencyNames(name string) []string {
	edges := g.children[name]
	if len(edges) == 0 {
		return nil
	}
	out := make([]string, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.To)
	}
	return out
}

// Registry returns the registry this graph was derived from.
func (g *Graph) Registry() *registry.Registry {
	return g.reg
}

// Nodes returns all skill names in registry insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns every composition edge, grouped by owner in insertion
// order and by order_index within one owner.
func (g *Graph) Edges() []Edge {
	var out []Edge
	for _, name := range g.nodes {
		out = append(out, g.children[name]...)
	}
	return out
}

// Children returns the direct composition edges of name.
func (g *Graph) Children(name string) ([]Edge, error) {
	if !g.reg.Has(name) {
		return nil, sgerrors.New(sgerrors.CodeSkillNotFound,
			fmt.Sprintf("skill %q is not registered", name), nil).WithSkill(name)
	}
	edges := g.children[name]
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out, nil
}

// Dependencies returns every skill name reachable from name, breadth
// first, excluding name itself.
func (g *Graph) Dependencies(name string) ([]string, error) {
	if !g.reg.Has(name) {
		return nil, sgerrors.New(sgerrors.CodeSkillNotFound,
			fmt.Sprintf("skill %q is not registered", name), nil).WithSkill(name)
	}
	seen := map[string]bool{name: true}
	queue := []string{name}
	var out []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range g.children[current] {
			if seen[edge.To] {
				continue
			}
			seen[edge.To] = true
			out = append(out, edge.To)
			queue = append(queue, edge.To)
		}
	}
	return out, nil
}

// Users returns the skills that directly compose name, in registry
// insertion order.
func (g *Graph) Users(name string) ([]string, error) {
	if !g.reg.Has(name) {
		return nil, sgerrors.New(sgerrors.CodeSkillNotFound,
			fmt.Sprintf("skill %q is not registered", name), nil).WithSkill(name)
	}
	direct := make(map[string]bool, len(g.parents[name]))
	for _, parent := range g.parents[name] {
		direct[parent] = true
	}
	var out []string
	for _, node := range g.nodes {
		if direct[node] {
			out = append(out, node)
		}
	}
	return out, nil
}

// TopoOrder returns all skills dependencies-first: every skill appears
// after the skills it composes.
func (g *Graph) TopoOrder() []string {
	out := make([]string, len(g.topo))
	copy(out, g.topo)
	return out
}

// ExecutionOrder returns the skills reachable from name, dependencies
// first and name last. A skill in this order can always be prepared
// before anything that composes it.
func (g *Graph) ExecutionOrder(name string) ([]string, error) {
	deps, err := g.Dependencies(name)
	if err != nil {
		return nil, err
	}
	reachable := make(map[string]bool, len(deps)+1)
	reachable[name] = true
	for _, dep := range deps {
		reachable[dep] = true
	}
	var out []string
	for _, node := range g.topo {
		if reachable[node] {
			out = append(out, node)
		}
	}
	return out, nil
}
