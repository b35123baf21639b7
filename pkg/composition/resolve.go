// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package composition

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/skill"
	"github.com/zeonlabs/skillgraph/pkg/telemetry"
)

// EntryKind tags a trace entry as a direct invocation or a folded loop.
type EntryKind string

const (
	// EntryInvoke is a single atomic skill invocation with bound inputs.
	EntryInvoke EntryKind = "invoke"
	// EntryLoop wraps an inner sequence repeated until a condition token
	// is asserted. The engine never unrolls loops; repeat count is a
	// runtime decision of the executor.
	EntryLoop EntryKind = "loop"
)

// TraceEntry is one element of a flattened execution trace.
type TraceEntry struct {
	Kind EntryKind `json:"kind"`

	// Invoke fields.
	Skill  string         `json:"skill,omitempty"`
	Inputs map[string]any `json:"inputs,omitempty"`

	// Loop fields. Body is the untouched inner sequence; Until is the
	// termination token asserted by a postcondition of the body's last
	// step.
	Until skill.Condition `json:"until,omitempty"`
	Body  Trace           `json:"body,omitempty"`
}

// Trace is the fully ordered atomic-tier expansion of a skill. For a
// fixed registry it is a pure function of the skill name and inputs.
type Trace []TraceEntry

// Len counts the invocations in the trace, loop bodies included (each
// loop body counted once).
func (t Trace) Len() int {
	n := 0
	for _, entry := range t {
		if entry.Kind == EntryLoop {
			n += entry.Body.Len()
			continue
		}
		n++
	}
	return n
}

// Skills returns the invoked skill names in trace order, descending into
// loop bodies.
func (t Trace) Skills() []string {
	var out []string
	for _, entry := range t {
		if entry.Kind == EntryLoop {
			out = append(out, entry.Body.Skills()...)
			continue
		}
		out = append(out, entry.Skill)
	}
	return out
}

// ParamSource supplies fallback values for binding placeholders that the
// owning skill's inputs do not cover, such as machine-specific waypoints.
// The engine treats returned values as opaque.
type ParamSource interface {
	Param(skillName, name string) (any, bool)
}

// Resolver flattens composite skills into atomic execution traces over a
// fixed graph snapshot. It is safe for concurrent use.
type Resolver struct {
	graph   *Graph
	params  ParamSource
	metrics *telemetry.ValidationMetrics
	tracer  trace.Tracer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithParamSource installs a fallback parameter source consulted after
// the owning skill's inputs during binding resolution.
func WithParamSource(src ParamSource) ResolverOption {
	return func(r *Resolver) {
		r.params = src
	}
}

// WithMetrics records flatten durations to the given instruments.
func WithMetrics(m *telemetry.ValidationMetrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// NewResolver returns a resolver over the given graph.
func NewResolver(g *Graph, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		graph:  g,
		tracer: otel.Tracer("skillgraph/composition"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flatten expands name into its T0-only execution trace with inputs bound
// at every level. A T0 skill flattens to the single invocation of itself.
// Composite skills expand their steps in order_index order; steps marked
// with a repeat condition stay folded as loop entries.
func (r *Resolver) Flatten(ctx context.Context, name string, inputs map[string]any) (Trace, error) {
	_, span := r.tracer.Start(ctx, "Resolver.Flatten",
		trace.WithAttributes(telemetry.SkillAttributes(name, "")...),
	)
	defer span.End()
	started := time.Now()

	spec, err := r.graph.reg.Lookup(name)
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttributes(err)...)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrSkillTier, spec.Tier.String()))

	out, err := r.flatten(spec, inputs)
	if err != nil {
		span.SetAttributes(telemetry.ErrorAttributes(err)...)
		return nil, err
	}
	span.SetAttributes(attribute.Int(telemetry.AttrTraceLength, out.Len()))
	r.metrics.RecordFlatten(ctx, name, time.Since(started))
	return out, nil
}

func (r *Resolver) flatten(spec *skill.Spec, inputs map[string]any) (Trace, error) {
	if !spec.IsComposite() {
		return Trace{{Kind: EntryInvoke, Skill: spec.Name, Inputs: copyInputs(inputs)}}, nil
	}

	var out Trace
	for _, step := range spec.Steps() {
		sub, err := r.graph.reg.Lookup(step.Skill)
		if err != nil {
			// Build already resolved every reference; reaching this means
			// the graph and registry are out of sync.
			return nil, sgerrors.New(sgerrors.CodeUnknownSubSkill,
				fmt.Sprintf("composition of %q references unknown skill %q", spec.Name, step.Skill), err).
				WithSkill(spec.Name)
		}

		bound, err := r.bindStep(spec, step, inputs)
		if err != nil {
			return nil, err
		}
		body, err := r.flatten(sub, bound)
		if err != nil {
			return nil, err
		}

		if step.RepeatUntil != "" {
			if !sub.HasPostcondition(step.RepeatUntil) {
				return nil, sgerrors.New(sgerrors.CodeUnboundRepeatCondition,
					fmt.Sprintf("repeat condition %q is not a postcondition of %q",
						step.RepeatUntil, sub.Name), nil).
					WithSkill(spec.Name).
					WithPath(spec.Name + " -> " + sub.Name)
			}
			out = append(out, TraceEntry{Kind: EntryLoop, Until: step.RepeatUntil, Body: body})
			continue
		}
		out = append(out, body...)
	}
	return out, nil
}

// bindStep resolves a step's declared parameter bindings against the
// owning skill's invocation-time inputs. A "$field" placeholder resolves
// by exact key match against the owner's inputs, then against the
// fallback parameter source; anything else is passed through as a
// literal. Binding keys resolve in sorted order so the first failure is
// deterministic.
func (r *Resolver) bindStep(owner *skill.Spec, step skill.CompositionStep, inputs map[string]any) (map[string]any, error) {
	if len(step.Bindings) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(step.Bindings))
	for key := range step.Bindings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	bound := make(map[string]any, len(keys))
	for _, key := range keys {
		value := step.Bindings[key]
		placeholder, ok := placeholderName(value)
		if !ok {
			bound[key] = value
			continue
		}
		if v, ok := inputs[placeholder]; ok {
			bound[key] = v
			continue
		}
		if r.params != nil {
			if v, ok := r.params.Param(step.Skill, placeholder); ok {
				bound[key] = v
				continue
			}
		}
		return nil, sgerrors.New(sgerrors.CodeUnboundParameter,
			fmt.Sprintf("placeholder $%s of step %q has no matching input", placeholder, step.Skill), nil).
			WithSkill(owner.Name).
			WithPath(step.Skill + "." + key)
	}
	return bound, nil
}

// placeholderName reports whether value is a "$field" placeholder and
// returns the referenced field name.
func placeholderName(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || !strings.HasPrefix(s, "$") || len(s) < 2 {
		return "", false
	}
	return s[1:], true
}

func copyInputs(inputs map[string]any) map[string]any {
	if len(inputs) == 0 {
		return nil
	}
	out := make(map[string]any, len(inputs))
	for k, v := range inputs {
		out[k] = v
	}
	return out
}
