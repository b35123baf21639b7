package plan

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zeonlabs/skillgraph/pkg/composition"
	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/registry"
	"github.com/zeonlabs/skillgraph/pkg/schema"
	"github.com/zeonlabs/skillgraph/pkg/skill"
	"github.com/zeonlabs/skillgraph/pkg/telemetry"
)

func number(name string, required bool) schema.Field {
	return schema.Field{Name: name, Type: schema.TypeNumber, Required: required}
}

func str(name string, required bool) schema.Field {
	return schema.Field{Name: name, Type: schema.TypeString, Required: required}
}

// labGraph builds the scenario registry: T0 move{x,y}, T0 adjust_gripper,
// T1 grab_tip (move then adjust_gripper) requiring rack_id.
func labGraph(t *testing.T) *composition.Graph {
	t.Helper()
	reg, err := registry.New([]*skill.Spec{
		{
			Name: "move", Tier: skill.TierAtomic,
			InputSchema: &schema.Schema{Fields: []schema.Field{
				number("x", true), number("y", true),
			}},
		},
		{
			Name: "adjust_gripper", Tier: skill.TierAtomic,
			InputSchema: &schema.Schema{AdditionalProperties: true},
		},
		{
			Name: "grab_tip", Tier: skill.TierPattern,
			InputSchema: &schema.Schema{Fields: []schema.Field{str("rack_id", true)}},
			Composition: []skill.CompositionStep{
				{Skill: "move", OrderIndex: 0},
				{Skill: "adjust_gripper", OrderIndex: 1},
			},
		},
		{
			Name: "legacy_grab", Tier: skill.TierAtomic,
			InputSchema: &schema.Schema{AdditionalProperties: true},
			Deprecated:  true,
		},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := composition.Build(reg)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	v := NewValidator(labGraph(t))
	validated, err := v.Validate(context.Background(), Plan{
		Task: "pick up a tip",
		Steps: []Step{
			{Skill: "move", Inputs: map[string]any{"x": 1.0, "y": 2.0}},
			{Skill: "grab_tip", Inputs: map[string]any{"rack_id": "r1"}},
		},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.Len() != 2 {
		t.Fatalf("validated %d steps, want 2", validated.Len())
	}
	if validated.ID == uuid.Nil {
		t.Error("validated plan has zero ID")
	}
	if validated.Steps[1].Spec == nil || validated.Steps[1].Spec.Name != "grab_tip" {
		t.Errorf("resolved spec missing: %+v", validated.Steps[1])
	}
}

func TestValidateRejectsUnknownSkill(t *testing.T) {
	v := NewValidator(labGraph(t))
	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "move", Inputs: map[string]any{"x": 0.0, "y": 0.0}},
		{Skill: "levitate"},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeUnknownSkill {
		t.Fatalf("expected UNKNOWN_SKILL, got %v", err)
	}
	if sgerrors.AsError(err).StepIndex != 1 {
		t.Errorf("step index = %d, want 1", sgerrors.AsError(err).StepIndex)
	}
}

func TestValidateRejectsDeprecatedSkill(t *testing.T) {
	v := NewValidator(labGraph(t))
	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "legacy_grab"},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeUnknownSkill {
		t.Fatalf("expected UNKNOWN_SKILL for deprecated skill, got %v", err)
	}
}

func TestValidateRejectsMissingRequiredInput(t *testing.T) {
	// A grab_tip step with empty inputs must fail at step 0 citing the
	// missing rack_id.
	v := NewValidator(labGraph(t))
	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "grab_tip", Inputs: map[string]any{}},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	typed := sgerrors.AsError(err)
	if typed.StepIndex != 0 {
		t.Errorf("step index = %d, want 0", typed.StepIndex)
	}
	if typed.Path != "rack_id" {
		t.Errorf("violation path = %q, want rack_id", typed.Path)
	}
}

func TestValidateIsAllOrNothing(t *testing.T) {
	// Step 2 of 4 fails; the plan is rejected at index 2 and later steps
	// are never reported as valid.
	audit := NewMemoryAuditStore()
	v := NewValidator(labGraph(t), WithAuditStore(audit))

	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "move", Inputs: map[string]any{"x": 0.0, "y": 0.0}},
		{Skill: "adjust_gripper"},
		{Skill: "move", Inputs: map[string]any{"x": "oops", "y": 0.0}},
		{Skill: "grab_tip", Inputs: map[string]any{"rack_id": "r1"}},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
	if sgerrors.AsError(err).StepIndex != 2 {
		t.Errorf("step index = %d, want 2", sgerrors.AsError(err).StepIndex)
	}

	events, _ := audit.List(context.Background(), AuditFilter{})
	if len(events) != 1 || events[0].Outcome != AuditRejected {
		t.Fatalf("audit events = %+v", events)
	}
	if events[0].StepIndex != 2 || events[0].ErrorCode != string(sgerrors.CodeInvalidInput) {
		t.Errorf("audit event = %+v", events[0])
	}
}

func TestValidateRejectsUndeclaredExtraField(t *testing.T) {
	v := NewValidator(labGraph(t))
	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "move", Inputs: map[string]any{"x": 1.0, "y": 2.0, "warp": true}},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT for extra field, got %v", err)
	}
	if got := sgerrors.AsError(err).Path; got != "warp" {
		t.Errorf("path = %q, want warp", got)
	}
}

func TestValidateRejectsUnresolvableComposition(t *testing.T) {
	reg, err := registry.New([]*skill.Spec{
		{Name: "move", Tier: skill.TierAtomic,
			InputSchema: &schema.Schema{AdditionalProperties: true}},
		{Name: "approach", Tier: skill.TierPattern,
			InputSchema: &schema.Schema{AdditionalProperties: true},
			Composition: []skill.CompositionStep{
				{Skill: "move", OrderIndex: 0, Bindings: map[string]any{"x": "$missing"}},
			}},
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := composition.Build(reg)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}

	v := NewValidator(g)
	_, err = v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "approach", Inputs: map[string]any{"speed": 1.0}},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeUnresolvableComposition {
		t.Fatalf("expected UNRESOLVABLE_COMPOSITION, got %v", err)
	}
	if !sgerrors.IsCode(err, sgerrors.CodeUnboundParameter) {
		t.Errorf("underlying UNBOUND_PARAMETER should be wrapped, got %v", err)
	}

	// Without expansion the same plan passes schema checks and the defect
	// surfaces only at flatten time.
	lazy := NewValidator(g, WithoutExpansion())
	if _, err := lazy.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "approach", Inputs: map[string]any{"speed": 1.0}},
	}}); err != nil {
		t.Errorf("unexpanded validation failed: %v", err)
	}
}

func TestValidateEmptyPlan(t *testing.T) {
	v := NewValidator(labGraph(t))
	_, err := v.Validate(context.Background(), Plan{})
	if sgerrors.CodeOf(err) != sgerrors.CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT for empty plan, got %v", err)
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	v := NewValidator(labGraph(t))
	p := Plan{Steps: []Step{
		{Skill: "move", Inputs: map[string]any{"x": 1.0, "y": 2.0}},
		{Skill: "grab_tip", Inputs: map[string]any{"wrong": 1}},
	}}
	first := sgerrors.AsError(mustFail(t, v, p))
	second := sgerrors.AsError(mustFail(t, v, p))
	if first.Code != second.Code || first.StepIndex != second.StepIndex || first.Path != second.Path {
		t.Errorf("diverging rejections: %+v vs %+v", first, second)
	}
}

func mustFail(t *testing.T, v *Validator, p Plan) error {
	t.Helper()
	_, err := v.Validate(context.Background(), p)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	return err
}

func TestValidateRecordsAcceptedOutcome(t *testing.T) {
	audit := NewMemoryAuditStore()
	v := NewValidator(labGraph(t), WithAuditStore(audit))
	validated, err := v.Validate(context.Background(), Plan{
		Task:  "homing",
		Steps: []Step{{Skill: "move", Inputs: map[string]any{"x": 0.0, "y": 0.0}}},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	events, _ := audit.List(context.Background(), AuditFilter{Outcome: AuditAccepted})
	if len(events) != 1 {
		t.Fatalf("audit events = %+v", events)
	}
	want := AuditEvent{
		PlanID:    validated.ID.String(),
		Task:      "homing",
		StepCount: 1,
		Outcome:   AuditAccepted,
		StepIndex: -1,
	}
	got := events[0]
	got.CreatedAt = want.CreatedAt
	if !reflect.DeepEqual(got, want) {
		t.Errorf("event = %+v, want %+v", got, want)
	}
}

func recordedSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func validateSpan(t *testing.T, recorder *tracetest.SpanRecorder) map[attribute.Key]attribute.Value {
	t.Helper()
	for _, s := range recorder.Ended() {
		if s.Name() != "Validator.ValidatePlan" {
			continue
		}
		attrs := make(map[attribute.Key]attribute.Value, len(s.Attributes()))
		for _, kv := range s.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		return attrs
	}
	t.Fatal("no validation span was ended")
	return nil
}

func TestValidateSpanCarriesOutcome(t *testing.T) {
	recorder := recordedSpans(t)
	v := NewValidator(labGraph(t))

	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "move", Inputs: map[string]any{"x": 0.0, "y": 0.0}},
	}})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}

	attrs := validateSpan(t, recorder)
	if got := attrs[attribute.Key(telemetry.AttrPlanOutcome)].AsString(); got != "accepted" {
		t.Errorf("outcome = %q, want accepted", got)
	}
	if got := attrs[attribute.Key(telemetry.AttrPlanSteps)].AsInt64(); got != 1 {
		t.Errorf("step count = %d, want 1", got)
	}
}

func TestValidateRejectionSpanCarriesErrorCode(t *testing.T) {
	recorder := recordedSpans(t)
	v := NewValidator(labGraph(t))

	_, err := v.Validate(context.Background(), Plan{Steps: []Step{
		{Skill: "levitate"},
	}})
	if sgerrors.CodeOf(err) != sgerrors.CodeUnknownSkill {
		t.Fatalf("expected UNKNOWN_SKILL, got %v", err)
	}

	attrs := validateSpan(t, recorder)
	if got := attrs[attribute.Key(telemetry.AttrErrorCode)].AsString(); got != string(sgerrors.CodeUnknownSkill) {
		t.Errorf("error code = %q, want %s", got, sgerrors.CodeUnknownSkill)
	}
	if got := attrs[attribute.Key(telemetry.AttrPlanOutcome)].AsString(); got != "rejected" {
		t.Errorf("outcome = %q, want rejected", got)
	}
	if got := attrs[attribute.Key(telemetry.AttrErrorStep)].AsInt64(); got != 0 {
		t.Errorf("step index = %d, want 0", got)
	}
}
