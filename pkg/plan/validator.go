// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package plan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeonlabs/skillgraph/pkg/composition"
	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/telemetry"
)

// Validator checks candidate plans against a graph snapshot. It holds no
// mutable state, so one Validator serves any number of concurrent calls.
type Validator struct {
	graph    *composition.Graph
	resolver *composition.Resolver
	audit    AuditStore
	metrics  *telemetry.ValidationMetrics
	logger   *slog.Logger
	tracer   trace.Tracer

	// expandComposite controls step (c): flattening composite steps to
	// prove their composition resolvable before accepting the plan.
	expandComposite bool
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithResolver overrides the resolver used for composite-step expansion,
// for example one carrying a machine parameter source.
func WithResolver(r *composition.Resolver) ValidatorOption {
	return func(v *Validator) {
		v.resolver = r
	}
}

// WithAuditStore records every validation outcome to the given store.
// Recording failures are logged, never propagated.
func WithAuditStore(store AuditStore) ValidatorOption {
	return func(v *Validator) {
		v.audit = store
	}
}

// WithMetrics publishes validation counters and durations.
func WithMetrics(m *telemetry.ValidationMetrics) ValidatorOption {
	return func(v *Validator) {
		v.metrics = m
	}
}

// WithLogger sets the logger; defaults to slog.Default.
func WithLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithoutExpansion skips flattening composite plan steps during
// validation. Unresolvable compositions then surface at flatten time
// instead of plan time.
func WithoutExpansion() ValidatorOption {
	return func(v *Validator) {
		v.expandComposite = false
	}
}

// NewValidator returns a validator over the given graph snapshot.
func NewValidator(graph *composition.Graph, opts ...ValidatorOption) *Validator {
	v := &Validator{
		graph:           graph,
		logger:          slog.Default(),
		tracer:          otel.Tracer("skillgraph/plan"),
		expandComposite: true,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.resolver == nil {
		v.resolver = composition.NewResolver(graph)
	}
	return v
}

// Validate checks every step of the plan in order: the skill must exist
// and not be deprecated, the inputs must satisfy its input schema, and a
// composite skill must flatten cleanly. The first failing step rejects
// the whole plan; no partially validated plan is ever returned.
func (v *Validator) Validate(ctx context.Context, p Plan) (*ValidatedPlan, error) {
	planID := uuid.New()
	ctx, span := v.tracer.Start(ctx, "Validator.ValidatePlan",
		trace.WithAttributes(telemetry.PlanAttributes(planID.String(), len(p.Steps))...),
	)
	defer span.End()
	started := time.Now()

	validated, err := v.validate(ctx, planID, p)
	v.record(ctx, planID, p, err, time.Since(started))
	if err != nil {
		typed := sgerrors.AsError(err)
		span.SetAttributes(telemetry.ErrorAttributes(err)...)
		span.SetAttributes(telemetry.OutcomeAttributes(false, string(typed.Code))...)
		span.RecordError(err)
		span.SetStatus(codes.Error, typed.Message)
		return nil, err
	}
	span.SetAttributes(telemetry.OutcomeAttributes(true, "")...)
	return validated, nil
}

func (v *Validator) validate(ctx context.Context, planID uuid.UUID, p Plan) (*ValidatedPlan, error) {
	if len(p.Steps) == 0 {
		return nil, sgerrors.New(sgerrors.CodeInvalidInput, "plan has no steps", nil)
	}

	reg := v.graph.Registry()
	steps := make([]ValidatedStep, 0, len(p.Steps))
	for i, step := range p.Steps {
		spec, err := reg.Lookup(step.Skill)
		if err != nil {
			return nil, sgerrors.New(sgerrors.CodeUnknownSkill,
				fmt.Sprintf("skill %q is not registered", step.Skill), err).
				WithSkill(step.Skill).WithStep(i)
		}
		if spec.Deprecated {
			return nil, sgerrors.New(sgerrors.CodeUnknownSkill,
				fmt.Sprintf("skill %q is deprecated and excluded from planning", step.Skill), nil).
				WithSkill(step.Skill).WithStep(i)
		}

		if violation := spec.InputSchema.Validate(step.Inputs); violation != nil {
			return nil, sgerrors.New(sgerrors.CodeInvalidInput,
				fmt.Sprintf("inputs for %q rejected: %s", step.Skill, violation.Error()),
				violation).
				WithSkill(step.Skill).WithStep(i).WithPath(violation.Path)
		}

		if v.expandComposite && spec.IsComposite() {
			if _, err := v.resolver.Flatten(ctx, step.Skill, step.Inputs); err != nil {
				return nil, sgerrors.New(sgerrors.CodeUnresolvableComposition,
					fmt.Sprintf("composition of %q cannot be flattened", step.Skill), err).
					WithSkill(step.Skill).WithStep(i)
			}
		}

		steps = append(steps, ValidatedStep{Step: step, Spec: spec})
	}

	return &ValidatedPlan{ID: planID, Task: p.Task, Steps: steps}, nil
}

// record writes the outcome to metrics and the audit store. Neither may
// fail validation.
func (v *Validator) record(ctx context.Context, planID uuid.UUID, p Plan, verr error, elapsed time.Duration) {
	outcome := AuditAccepted
	var code sgerrors.ErrorCode
	stepIndex := -1
	if verr != nil {
		outcome = AuditRejected
		typed := sgerrors.AsError(verr)
		code = typed.Code
		stepIndex = typed.StepIndex
	}

	if v.metrics != nil {
		v.metrics.RecordValidation(ctx, verr == nil, string(code), elapsed)
	}
	if v.audit == nil {
		return
	}
	event := AuditEvent{
		PlanID:    planID.String(),
		Task:      p.Task,
		StepCount: len(p.Steps),
		Outcome:   outcome,
		ErrorCode: string(code),
		StepIndex: stepIndex,
		CreatedAt: time.Now().UTC(),
	}
	if err := v.audit.Record(ctx, event); err != nil {
		v.logger.WarnContext(ctx, "plan audit record failed",
			"plan_id", planID.String(), "error", err)
	}
}
