// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package composition

import (
	"fmt"

	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/skill"
)

// HierarchyNode is the recursive expansion tree of one skill.
type HierarchyNode struct {
	Name      string          `json:"name"`
	Tier      skill.Tier      `json:"tier"`
	SubSkills []HierarchyNode `json:"sub_skills,omitempty"`
}

// Hierarchy returns the full expansion tree rooted at name, with
// sub-skills in order_index order at every level.
func (g *Graph) Hierarchy(name string) (*HierarchyNode, error) {
	spec, err := g.reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	node := &HierarchyNode{Name: spec.Name, Tier: spec.Tier}
	for _, edge := range g.children[name] {
		child, err := g.Hierarchy(edge.To)
		if err != nil {
			return nil, err
		}
		node.SubSkills = append(node.SubSkills, *child)
	}
	return node, nil
}

// Depth returns the longest composition chain below name. Atomic skills
// have depth 0.
func (g *Graph) Depth(name string) (int, error) {
	if !g.reg.Has(name) {
		return 0, sgerrors.New(sgerrors.CodeSkillNotFound,
			fmt.Sprintf("skill %q is not registered", name), nil).WithSkill(name)
	}
	memo := make(map[string]int)
	return g.depth(name, memo), nil
}

func (g *Graph) depth(name string, memo map[string]int) int {
	if d, ok := memo[name]; ok {
		return d
	}
	max := 0
	for _, edge := range g.children[name] {
		if d := g.depth(edge.To, memo) + 1; d > max {
			max = d
		}
	}
	memo[name] = max
	return max
}

// Stats summarizes the composition graph. Ties for the superlatives
// resolve to the skill registered first.
type Stats struct {
	TotalSkills int                `json:"total_skills"`
	TierCounts  map[skill.Tier]int `json:"tier_counts"`
	EdgeCount   int                `json:"edge_count"`
	MaxDepth    int                `json:"max_depth"`
	MostComplex string             `json:"most_complex_skill,omitempty"`
	MostUsed    string             `json:"most_used_skill,omitempty"`
}

// Stats computes summary statistics over the whole graph.
func (g *Graph) Stats() Stats {
	stats := Stats{
		TotalSkills: len(g.nodes),
		TierCounts:  g.reg.CountByTier(),
	}

	memo := make(map[string]int)
	maxSubskills := 0
	maxUsers := 0
	for _, name := range g.nodes {
		stats.EdgeCount += len(g.children[name])
		if d := g.depth(name, memo); d > stats.MaxDepth {
			stats.MaxDepth = d
		}
		if n := len(g.children[name]); n > maxSubskills {
			maxSubskills = n
			stats.MostComplex = name
		}
		if n := len(g.parents[name]); n > maxUsers {
			maxUsers = n
			stats.MostUsed = name
		}
	}
	return stats
}

// ExportNode is one vertex of the exported graph.
type ExportNode struct {
	ID    string     `json:"id"`
	Label string     `json:"label"`
	Tier  skill.Tier `json:"tier"`
}

// ExportData bundles the graph for visualization frontends.
type ExportData struct {
	Nodes []ExportNode `json:"nodes"`
	Edges []Edge       `json:"edges"`
}

// Export returns the whole graph as plain nodes and edges, in the same
// deterministic order as Nodes and Edges.
func (g *Graph) Export() ExportData {
	data := ExportData{
		Nodes: make([]ExportNode, 0, len(g.nodes)),
		Edges: g.Edges(),
	}
	for _, name := range g.nodes {
		spec, err := g.reg.Lookup(name)
		if err != nil {
			continue
		}
		data.Nodes = append(data.Nodes, ExportNode{ID: name, Label: name, Tier: spec.Tier})
	}
	return data
}
