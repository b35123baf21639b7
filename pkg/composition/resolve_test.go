package composition

import (
	"context"
	"reflect"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	sgerrors "github.com/zeonlabs/skillgraph/pkg/errors"
	"github.com/zeonlabs/skillgraph/pkg/registry"
	"github.com/zeonlabs/skillgraph/pkg/skill"
	"github.com/zeonlabs/skillgraph/pkg/telemetry"
)

func labResolver(t *testing.T, opts ...ResolverOption) *Resolver {
	t.Helper()
	g, err := Build(labRegistry(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return NewResolver(g, opts...)
}

func TestFlattenAtomicIsIdentity(t *testing.T) {
	r := labResolver(t)
	inputs := map[string]any{"x": 1.0, "y": 2.0}
	trace, err := r.Flatten(context.Background(), "move", inputs)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(trace) != 1 {
		t.Fatalf("atomic trace has %d entries, want 1", len(trace))
	}
	if trace[0].Kind != EntryInvoke || trace[0].Skill != "move" {
		t.Errorf("entry = %+v", trace[0])
	}
	if !reflect.DeepEqual(trace[0].Inputs, inputs) {
		t.Errorf("inputs = %v, want %v", trace[0].Inputs, inputs)
	}
}

func TestFlattenPatternConcatenatesSteps(t *testing.T) {
	r := labResolver(t)
	trace, err := r.Flatten(context.Background(), "grab_tip", nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := []string{"move", "adjust_gripper", "vlm_assert"}
	if !reflect.DeepEqual(trace.Skills(), want) {
		t.Errorf("skills = %v, want %v", trace.Skills(), want)
	}
}

func TestFlattenProceduralExpandsRecursively(t *testing.T) {
	r := labResolver(t)
	trace, err := r.Flatten(context.Background(), "transfer_liquid", nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := []string{"move", "adjust_gripper", "vlm_assert", "move", "vlm_assert"}
	if !reflect.DeepEqual(trace.Skills(), want) {
		t.Errorf("skills = %v, want %v", trace.Skills(), want)
	}
	if trace.Len() != 5 {
		t.Errorf("trace length = %d, want 5", trace.Len())
	}
}

func TestFlattenIsDeterministic(t *testing.T) {
	r := labResolver(t)
	first, err := r.Flatten(context.Background(), "transfer_liquid", map[string]any{"volume": 50.0})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	second, err := r.Flatten(context.Background(), "transfer_liquid", map[string]any{"volume": 50.0})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("flatten is not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestFlattenUnknownSkill(t *testing.T) {
	r := labResolver(t)
	_, err := r.Flatten(context.Background(), "levitate", nil)
	if sgerrors.CodeOf(err) != sgerrors.CodeSkillNotFound {
		t.Fatalf("expected SKILL_NOT_FOUND, got %v", err)
	}
}

func TestFlattenResolvesBindings(t *testing.T) {
	reg, err := registry.New([]*skill.Spec{
		atomicSpec("move"),
		compositeSpec("approach", skill.TierPattern, skill.CompositionStep{
			Skill:      "move",
			OrderIndex: 0,
			Bindings: map[string]any{
				"x":     "$target_x",
				"y":     "$target_y",
				"speed": 0.25,
			},
		}),
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	trace, err := NewResolver(g).Flatten(context.Background(), "approach",
		map[string]any{"target_x": 10.0, "target_y": -4.0})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := map[string]any{"x": 10.0, "y": -4.0, "speed": 0.25}
	if !reflect.DeepEqual(trace[0].Inputs, want) {
		t.Errorf("bound inputs = %v, want %v", trace[0].Inputs, want)
	}
}

func TestFlattenUnboundPlaceholder(t *testing.T) {
	reg, err := registry.New([]*skill.Spec{
		atomicSpec("move"),
		compositeSpec("approach", skill.TierPattern, skill.CompositionStep{
			Skill:      "move",
			OrderIndex: 0,
			Bindings:   map[string]any{"x": "$target_x"},
		}),
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = NewResolver(g).Flatten(context.Background(), "approach", map[string]any{"other": 1})
	if sgerrors.CodeOf(err) != sgerrors.CodeUnboundParameter {
		t.Fatalf("expected UNBOUND_PARAMETER, got %v", err)
	}
	if got := sgerrors.AsError(err).Path; got != "move.x" {
		t.Errorf("path = %q, want move.x", got)
	}
}

type mapParams map[string]any

func (m mapParams) Param(_, name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func TestFlattenFallsBackToParamSource(t *testing.T) {
	reg, err := registry.New([]*skill.Spec{
		atomicSpec("move"),
		compositeSpec("dock", skill.TierPattern, skill.CompositionStep{
			Skill:      "move",
			OrderIndex: 0,
			Bindings:   map[string]any{"x": "$dock_x"},
		}),
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	r := NewResolver(g, WithParamSource(mapParams{"dock_x": 42.5}))
	trace, err := r.Flatten(context.Background(), "dock", nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if trace[0].Inputs["x"] != 42.5 {
		t.Errorf("machine fallback not applied: %v", trace[0].Inputs)
	}

	// Caller inputs win over the fallback source.
	trace, err = r.Flatten(context.Background(), "dock", map[string]any{"dock_x": 1.0})
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if trace[0].Inputs["x"] != 1.0 {
		t.Errorf("caller input should shadow param source: %v", trace[0].Inputs)
	}
}

func TestFlattenKeepsLoopsFolded(t *testing.T) {
	reg, err := registry.New([]*skill.Spec{
		atomicSpec("move", "at_target"),
		atomicSpec("vlm_assert", "scene_verified"),
		compositeSpec("mix", skill.TierPattern,
			skill.CompositionStep{Skill: "move", OrderIndex: 0},
			skill.CompositionStep{Skill: "move", OrderIndex: 1, RepeatUntil: "at_target"},
			skill.CompositionStep{Skill: "vlm_assert", OrderIndex: 2},
		),
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	trace, err := NewResolver(g).Flatten(context.Background(), "mix", nil)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if len(trace) != 3 {
		t.Fatalf("trace has %d entries, want 3 (loop folded)", len(trace))
	}
	loop := trace[1]
	if loop.Kind != EntryLoop {
		t.Fatalf("entry 1 = %+v, want loop", loop)
	}
	if loop.Until != "at_target" {
		t.Errorf("termination token = %q", loop.Until)
	}
	if !reflect.DeepEqual(loop.Body.Skills(), []string{"move"}) {
		t.Errorf("loop body = %v", loop.Body.Skills())
	}
}

func TestFlattenRejectsUnboundRepeatCondition(t *testing.T) {
	reg, err := registry.New([]*skill.Spec{
		atomicSpec("move", "at_target"),
		compositeSpec("shake", skill.TierPattern,
			skill.CompositionStep{Skill: "move", OrderIndex: 0, RepeatUntil: "well_mixed"},
		),
	})
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	g, err := Build(reg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	_, err = NewResolver(g).Flatten(context.Background(), "shake", nil)
	if sgerrors.CodeOf(err) != sgerrors.CodeUnboundRepeatCondition {
		t.Fatalf("expected UNBOUND_REPEAT_CONDITION, got %v", err)
	}
}

func TestFlattenRecordsDuration(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	ctx := context.Background()
	vm, err := telemetry.NewValidationMetrics(ctx)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}

	r := labResolver(t, WithMetrics(vm))
	if _, err := r.Flatten(ctx, "grab_tip", nil); err != nil {
		t.Fatalf("flatten: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	hist := flattenHistogram(t, rm)
	if len(hist.DataPoints) != 1 {
		t.Fatalf("data points = %d, want 1", len(hist.DataPoints))
	}
	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("count = %d, want 1", dp.Count)
	}
	name, ok := dp.Attributes.Value(attribute.Key(telemetry.AttrSkillName))
	if !ok || name.AsString() != "grab_tip" {
		t.Errorf("skill attribute = %v, want grab_tip", name)
	}
}

func flattenHistogram(t *testing.T, rm metricdata.ResourceMetrics) metricdata.Histogram[float64] {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != "skillgraph.flatten.duration_ms" {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("unexpected data type %T", m.Data)
			}
			return hist
		}
	}
	t.Fatal("flatten duration histogram was not recorded")
	return metricdata.Histogram[float64]{}
}
