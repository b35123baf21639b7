package composition

import (
	"reflect"
	"testing"

	"github.com/zeonlabs/skillgraph/pkg/skill"
)

func TestHierarchyTree(t *testing.T) {
	g, err := Build(labRegistry(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tree, err := g.Hierarchy("transfer_liquid")
	if err != nil {
		t.Fatalf("hierarchy: %v", err)
	}
	if tree.Name != "transfer_liquid" || tree.Tier != skill.TierProcedural {
		t.Fatalf("root = %+v", tree)
	}
	if len(tree.SubSkills) != 2 {
		t.Fatalf("root has %d children, want 2", len(tree.SubSkills))
	}
	grab := tree.SubSkills[0]
	if grab.Name != "grab_tip" || len(grab.SubSkills) != 3 {
		t.Errorf("grab_tip subtree = %+v", grab)
	}
	if grab.SubSkills[0].Name != "move" || grab.SubSkills[0].Tier != skill.TierAtomic {
		t.Errorf("leaf = %+v", grab.SubSkills[0])
	}
}

func TestDepth(t *testing.T) {
	g, err := Build(labRegistry(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	cases := []struct {
		name string
		want int
	}{
		{"move", 0},
		{"grab_tip", 1},
		{"transfer_liquid", 2},
	}
	for _, tc := range cases {
		got, err := g.Depth(tc.name)
		if err != nil {
			t.Fatalf("depth(%s): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("depth(%s) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestStats(t *testing.T) {
	g, err := Build(labRegistry(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stats := g.Stats()
	if stats.TotalSkills != 6 {
		t.Errorf("total = %d", stats.TotalSkills)
	}
	if stats.TierCounts[skill.TierAtomic] != 3 || stats.TierCounts[skill.TierPattern] != 2 ||
		stats.TierCounts[skill.TierProcedural] != 1 {
		t.Errorf("tier counts = %v", stats.TierCounts)
	}
	if stats.EdgeCount != 7 {
		t.Errorf("edges = %d, want 7", stats.EdgeCount)
	}
	if stats.MaxDepth != 2 {
		t.Errorf("max depth = %d, want 2", stats.MaxDepth)
	}
	if stats.MostComplex != "grab_tip" {
		t.Errorf("most complex = %q", stats.MostComplex)
	}
	// move and vlm_assert are both used twice; ties go to the skill
	// registered first.
	if stats.MostUsed != "move" {
		t.Errorf("most used = %q", stats.MostUsed)
	}
}

func TestExport(t *testing.T) {
	g, err := Build(labRegistry(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data := g.Export()
	if len(data.Nodes) != 6 {
		t.Fatalf("exported %d nodes, want 6", len(data.Nodes))
	}
	if data.Nodes[0].ID != "move" || data.Nodes[0].Tier != skill.TierAtomic {
		t.Errorf("first node = %+v", data.Nodes[0])
	}
	if !reflect.DeepEqual(data.Edges, g.Edges()) {
		t.Errorf("export edges differ from graph edges")
	}
}
