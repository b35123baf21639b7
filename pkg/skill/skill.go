// Package skill defines the declarative skill documents the engine
// operates on: tiered specs, their payload schemas, symbolic condition
// tokens, and declared compositions.
package skill

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zeonlabs/skillgraph/pkg/schema"
)

const (
	maxNameLen        = 64
	maxDescriptionLen = 1024
)

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Spec describes one skill. Specs are immutable once loaded into a
// registry; the engine never mutates them after Validate passes.
type Spec struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	Tier        Tier   `yaml:"tier" json:"tier"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	InputSchema  *schema.Schema `yaml:"input_schema" json:"input_schema"`
	OutputSchema *schema.Schema `yaml:"output_schema,omitempty" json:"output_schema,omitempty"`
	ErrorSchema  *schema.Schema `yaml:"error_schema,omitempty" json:"error_schema,omitempty"`

	Preconditions  []Condition `yaml:"preconditions,omitempty" json:"preconditions,omitempty"`
	Postconditions []Condition `yaml:"postconditions,omitempty" json:"postconditions,omitempty"`
	Invariants     []Condition `yaml:"invariants,omitempty" json:"invariants,omitempty"`

	Composition []CompositionStep `yaml:"composition,omitempty" json:"composition,omitempty"`

	// Execution-contract metadata, passed through unmodified to a
	// downstream executor. The engine never interprets these.
	TimeoutS    float64        `yaml:"timeout_s,omitempty" json:"timeout_s,omitempty"`
	RetryPolicy map[string]any `yaml:"retry_policy,omitempty" json:"retry_policy,omitempty"`
	Idempotency any            `yaml:"idempotency,omitempty" json:"idempotency,omitempty"`
	Concurrency map[string]any `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`

	// Deprecated skills stay resolvable but are excluded from planning
	// unless explicitly requested.
	Deprecated bool `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`

	// Path records the source file for diagnostics; empty for in-memory
	// specs.
	Path string `yaml:"-" json:"-"`
}

// CompositionStep is one entry of a higher-tier skill's declared
// expansion. Steps execute in order_index order.
type CompositionStep struct {
	Skill      string `yaml:"skill_name" json:"skill_name"`
	OrderIndex int    `yaml:"order_index" json:"order_index"`

	// Bindings map sub-skill input names to literal values or to "$field"
	// placeholders resolved against the owning skill's inputs.
	Bindings map[string]any `yaml:"parameter_bindings,omitempty" json:"parameter_bindings,omitempty"`

	// RepeatUntil marks the step as looped until the named condition is
	// asserted by a postcondition of the loop body's final invocation.
	RepeatUntil Condition `yaml:"repeat_condition,omitempty" json:"repeat_condition,omitempty"`
}

// Validate checks the document shape. It does not resolve composition
// references; that is graph-build work and needs the full registry.
func (s *Spec) Validate() error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return errors.New("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLen {
		return fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must match %s", namePattern.String())
	}
	if s.Tier == "" {
		return errors.New("tier is required")
	}
	if !s.Tier.Valid() {
		return fmt.Errorf("unknown tier %q (want T0, T1 or T2)", s.Tier)
	}
	if s.InputSchema == nil {
		return errors.New("input_schema is required")
	}
	if utf8.RuneCountInString(s.Description) > maxDescriptionLen {
		return fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}
	if err := checkConditions("precondition", s.Preconditions); err != nil {
		return err
	}
	if err := checkConditions("postcondition", s.Postconditions); err != nil {
		return err
	}
	if err := checkConditions("invariant", s.Invariants); err != nil {
		return err
	}
	if s.Tier == TierAtomic && len(s.Composition) > 0 {
		return errors.New("atomic (T0) skills cannot declare a composition")
	}
	seenOrder := make(map[int]bool, len(s.Composition))
	for i, step := range s.Composition {
		if strings.TrimSpace(step.Skill) == "" {
			return fmt.Errorf("composition step %d: skill_name is required", i)
		}
		if seenOrder[step.OrderIndex] {
			return fmt.Errorf("composition step %d: duplicate order_index %d", i, step.OrderIndex)
		}
		seenOrder[step.OrderIndex] = true
		if step.RepeatUntil != "" && !step.RepeatUntil.Valid() {
			return fmt.Errorf("composition step %d: invalid repeat_condition token %q", i, step.RepeatUntil)
		}
		for key := range step.Bindings {
			if strings.TrimSpace(key) == "" {
				return fmt.Errorf("composition step %d: empty parameter binding key", i)
			}
		}
	}
	return nil
}

func checkConditions(kind string, list []Condition) error {
	for _, c := range list {
		if !c.Valid() {
			return fmt.Errorf("invalid %s token %q", kind, c)
		}
	}
	return nil
}

// Steps returns the composition steps sorted by order_index. The receiver
// is never mutated.
func (s *Spec) Steps() []CompositionStep {
	if len(s.Composition) == 0 {
		return nil
	}
	steps := make([]CompositionStep, len(s.Composition))
	copy(steps, s.Composition)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].OrderIndex < steps[j].OrderIndex
	})
	return steps
}

// IsComposite reports whether the skill declares sub-skills.
func (s *Spec) IsComposite() bool {
	return len(s.Composition) > 0
}

// HasPostcondition reports whether token is declared as a postcondition.
func (s *Spec) HasPostcondition(token Condition) bool {
	return ContainsCondition(s.Postconditions, token)
}

// InputFields returns the declared input field names in schema order.
func (s *Spec) InputFields() []string {
	if s.InputSchema == nil {
		return nil
	}
	return s.InputSchema.FieldNames()
}

// DeclaresInput reports whether name is a declared input field.
func (s *Spec) DeclaresInput(name string) bool {
	if s.InputSchema == nil {
		return false
	}
	_, ok := s.InputSchema.Lookup(name)
	return ok
}
