// Package plan accepts candidate plans from an external planner and
// turns them into validated, executable artifacts. Validation is
// all-or-nothing: the first failing step rejects the whole plan with a
// step-indexed diagnostic.
package plan

import (
	"github.com/google/uuid"

	"github.com/zeonlabs/skillgraph/pkg/skill"
)

// Step is one proposed skill invocation. Rationale is diagnostic text
// from the planner and is never validated.
type Step struct {
	Skill     string         `yaml:"skill" json:"skill"`
	Inputs    map[string]any `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Rationale string         `yaml:"rationale,omitempty" json:"rationale,omitempty"`
}

// Plan is an ordered candidate sequence of skill invocations. Plans are
// transient: validated once, then discarded or handed on as a
// ValidatedPlan.
type Plan struct {
	Task  string `yaml:"task,omitempty" json:"task,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Len returns the number of steps.
func (p Plan) Len() int {
	return len(p.Steps)
}

// ValidatedStep pairs an accepted plan step with its resolved spec.
type ValidatedStep struct {
	Step
	Spec *skill.Spec `json:"-"`
}

// ValidatedPlan is the only artifact handed to an executor: every step
// resolved, schema-checked, and composition-resolvable. It is immutable
// after validation.
type ValidatedPlan struct {
	ID    uuid.UUID       `json:"id"`
	Task  string          `json:"task,omitempty"`
	Steps []ValidatedStep `json:"steps"`
}

// Len returns the number of validated steps.
func (p *ValidatedPlan) Len() int {
	return len(p.Steps)
}
