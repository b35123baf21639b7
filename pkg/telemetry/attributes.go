// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration for the skill
// engine: exporter setup, trace-aware logging, and the attribute and
// metric conventions shared by every span the engine emits.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/zeonlabs/skillgraph/pkg/errors"
)

// Semantic conventions for skillgraph telemetry. These follow
// OpenTelemetry naming conventions where applicable.
const (
	// Skill attributes
	AttrSkillName = "skillgraph.skill.name"
	AttrSkillTier = "skillgraph.skill.tier"

	// Registry attributes
	AttrRegistryDir    = "skillgraph.registry.dir"
	AttrRegistrySkills = "skillgraph.registry.skill_count"

	// Graph attributes
	AttrGraphNodes    = "skillgraph.graph.node_count"
	AttrGraphEdges    = "skillgraph.graph.edge_count"
	AttrGraphMaxDepth = "skillgraph.graph.max_depth"

	// Flatten attributes
	AttrTraceLength = "skillgraph.trace.length"

	// Plan attributes
	AttrPlanID      = "skillgraph.plan.id"
	AttrPlanSteps   = "skillgraph.plan.step_count"
	AttrPlanOutcome = "skillgraph.plan.outcome"

	// Error attributes
	AttrErrorCode   = "skillgraph.error.code"
	AttrErrorSkill  = "skillgraph.error.skill"
	AttrErrorStep   = "skillgraph.error.step_index"
	AttrRecoverable = "skillgraph.error.recoverable"
)

// SkillAttributes returns the common attributes for per-skill spans.
func SkillAttributes(name, tier string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrSkillName, name),
	}
	if tier != "" {
		attrs = append(attrs, attribute.String(AttrSkillTier, tier))
	}
	return attrs
}

// GraphAttributes returns attributes describing a built composition graph.
func GraphAttributes(nodes, edges, maxDepth int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGraphNodes, nodes),
		attribute.Int(AttrGraphEdges, edges),
		attribute.Int(AttrGraphMaxDepth, maxDepth),
	}
}

// PlanAttributes returns attributes for plan validation spans.
func PlanAttributes(planID string, stepCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int(AttrPlanSteps, stepCount),
	}
	if planID != "" {
		attrs = append(attrs, attribute.String(AttrPlanID, planID))
	}
	return attrs
}

// OutcomeAttributes returns attributes for a finished validation.
func OutcomeAttributes(accepted bool, errorCode string) []attribute.KeyValue {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	attrs := []attribute.KeyValue{
		attribute.String(AttrPlanOutcome, outcome),
	}
	if errorCode != "" {
		attrs = append(attrs, attribute.String(AttrErrorCode, errorCode))
	}
	return attrs
}

// ErrorAttributes returns attributes describing a typed engine error.
// Untyped errors get code INTERNAL_ERROR.
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	typed := errors.AsError(err)
	attrs := []attribute.KeyValue{
		attribute.String(AttrErrorCode, string(typed.Code)),
		attribute.String(AttrRecoverable, typed.RecoverableString()),
	}
	if typed.Skill != "" {
		attrs = append(attrs, attribute.String(AttrErrorSkill, typed.Skill))
	}
	if typed.StepIndex >= 0 {
		attrs = append(attrs, attribute.Int(AttrErrorStep, typed.StepIndex))
	}
	return attrs
}
