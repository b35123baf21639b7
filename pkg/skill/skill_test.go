package skill

import (
	"strings"
	"testing"

	"github.com/zeonlabs/skillgraph/pkg/schema"
)

func minimalSpec(name string, tier Tier) *Spec {
	return &Spec{
		Name:        name,
		Version:     "1.0.0",
		Tier:        tier,
		InputSchema: &schema.Schema{},
	}
}

func TestValidateMinimalSpec(t *testing.T) {
	spec := minimalSpec("emergency_stop", TierAtomic)
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}
}

func TestValidateRejectsMalformedSpecs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		want   string
	}{
		{
			name:   "missing name",
			mutate: func(s *Spec) { s.Name = "" },
			want:   "name is required",
		},
		{
			name:   "bad name characters",
			mutate: func(s *Spec) { s.Name = "Grab-Tip" },
			want:   "name must match",
		},
		{
			name:   "name too long",
			mutate: func(s *Spec) { s.Name = strings.Repeat("a", 65) },
			want:   "name exceeds",
		},
		{
			name:   "missing tier",
			mutate: func(s *Spec) { s.Tier = "" },
			want:   "tier is required",
		},
		{
			name:   "unknown tier",
			mutate: func(s *Spec) { s.Tier = "T3" },
			want:   "unknown tier",
		},
		{
			name:   "missing input schema",
			mutate: func(s *Spec) { s.InputSchema = nil },
			want:   "input_schema is required",
		},
		{
			name:   "invalid postcondition token",
			mutate: func(s *Spec) { s.Postconditions = []Condition{"Tip Attached"} },
			want:   "invalid postcondition token",
		},
		{
			name: "atomic with composition",
			mutate: func(s *Spec) {
				s.Composition = []CompositionStep{{Skill: "move", OrderIndex: 1}}
			},
			want: "cannot declare a composition",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := minimalSpec("adjust_gripper", TierAtomic)
			tt.mutate(spec)
			err := spec.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateComposition(t *testing.T) {
	spec := minimalSpec("grab_tip", TierPattern)
	spec.Composition = []CompositionStep{
		{Skill: "move", OrderIndex: 1},
		{Skill: "adjust_gripper", OrderIndex: 1},
	}
	err := spec.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate order_index") {
		t.Fatalf("expected duplicate order_index error, got %v", err)
	}

	spec.Composition[1].OrderIndex = 2
	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid composition, got %v", err)
	}

	spec.Composition[1].RepeatUntil = "Mixed!"
	err = spec.Validate()
	if err == nil || !strings.Contains(err.Error(), "invalid repeat_condition") {
		t.Fatalf("expected repeat_condition error, got %v", err)
	}
}

func TestStepsSortedByOrderIndex(t *testing.T) {
	spec := minimalSpec("transfer_liquid", TierProcedural)
	spec.Composition = []CompositionStep{
		{Skill: "dispense", OrderIndex: 30},
		{Skill: "grab_tip", OrderIndex: 10},
		{Skill: "aspirate", OrderIndex: 20},
	}

	steps := spec.Steps()
	want := []string{"grab_tip", "aspirate", "dispense"}
	for i, name := range want {
		if steps[i].Skill != name {
			t.Errorf("step %d: expected %q, got %q", i, name, steps[i].Skill)
		}
	}
	// The spec itself keeps document order.
	if spec.Composition[0].Skill != "dispense" {
		t.Errorf("Steps must not mutate the spec")
	}
}

func TestTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{in: "T0", want: TierAtomic},
		{in: "t1", want: TierPattern},
		{in: " T2 ", want: TierProcedural},
		{in: "T3", wantErr: true},
		{in: "", wantErr: true},
		{in: "atomic", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTier(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTier(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTier(%q): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}

func TestTierCanCompose(t *testing.T) {
	tests := []struct {
		owner, sub Tier
		want       bool
	}{
		{TierPattern, TierAtomic, true},
		{TierProcedural, TierAtomic, true},
		{TierProcedural, TierPattern, true},
		{TierAtomic, TierAtomic, false},
		{TierPattern, TierPattern, false},
		{TierPattern, TierProcedural, false},
		{TierAtomic, TierPattern, false},
		{Tier("T9"), TierAtomic, false},
	}
	for _, tt := range tests {
		if got := tt.owner.CanCompose(tt.sub); got != tt.want {
			t.Errorf("%v.CanCompose(%v): expected %v, got %v", tt.owner, tt.sub, tt.want, got)
		}
	}
}

func TestCondition(t *testing.T) {
	if _, err := ParseCondition("tip_attached"); err != nil {
		t.Errorf("expected valid token: %v", err)
	}
	for _, bad := range []string{"", "Tip", "tip attached", "1st", "tip-on"} {
		if _, err := ParseCondition(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}

	list := []Condition{"tip_attached", "at_target"}
	if !ContainsCondition(list, "at_target") {
		t.Errorf("expected token match")
	}
	if ContainsCondition(list, "at_targe") {
		t.Errorf("matching must be exact")
	}
}
