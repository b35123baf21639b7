// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ValidationMetrics tracks plan validation throughput, rejection codes,
// and registry/graph health for production monitoring.
type ValidationMetrics struct {
	// plansValidated counts validations by outcome and error code.
	plansValidated metric.Int64Counter

	// validationDuration tracks end-to-end validation latency.
	validationDuration metric.Float64Histogram

	// flattenDuration tracks resolver expansion latency.
	flattenDuration metric.Float64Histogram

	// registrySkills tracks the size of the active registry snapshot.
	registrySkills metric.Int64Gauge

	// graphRebuilds counts snapshot rebuilds by outcome.
	graphRebuilds metric.Int64Counter
}

// NewValidationMetrics creates the validation metric instruments on the
// global meter provider.
func NewValidationMetrics(_ context.Context) (*ValidationMetrics, error) {
	meter := otel.Meter("skillgraph/engine")

	plansValidated, err := meter.Int64Counter(
		"skillgraph.plans.validated",
		metric.WithDescription("Plans validated by outcome and error code"),
	)
	if err != nil {
		return nil, err
	}

	validationDuration, err := meter.Float64Histogram(
		"skillgraph.plans.validation_duration_ms",
		metric.WithDescription("Plan validation latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	flattenDuration, err := meter.Float64Histogram(
		"skillgraph.flatten.duration_ms",
		metric.WithDescription("Composition flatten latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	registrySkills, err := meter.Int64Gauge(
		"skillgraph.registry.skills",
		metric.WithDescription("Skills in the active registry snapshot, by tier"),
	)
	if err != nil {
		return nil, err
	}

	graphRebuilds, err := meter.Int64Counter(
		"skillgraph.graph.rebuilds",
		metric.WithDescription("Registry/graph snapshot rebuilds by outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &ValidationMetrics{
		plansValidated:     plansValidated,
		validationDuration: validationDuration,
		flattenDuration:    flattenDuration,
		registrySkills:     registrySkills,
		graphRebuilds:      graphRebuilds,
	}, nil
}

// RecordValidation records one finished plan validation. errorCode is
// empty for accepted plans.
func (vm *ValidationMetrics) RecordValidation(ctx context.Context, accepted bool, errorCode string, elapsed time.Duration) {
	if vm == nil {
		return
	}
	attrs := OutcomeAttributes(accepted, errorCode)
	vm.plansValidated.Add(ctx, 1, metric.WithAttributes(attrs...))
	vm.validationDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0,
		metric.WithAttributes(attrs...))
}

// RecordFlatten records one resolver expansion.
func (vm *ValidationMetrics) RecordFlatten(ctx context.Context, skillName string, elapsed time.Duration) {
	if vm == nil {
		return
	}
	vm.flattenDuration.Record(ctx, float64(elapsed.Microseconds())/1000.0,
		metric.WithAttributes(attribute.String(AttrSkillName, skillName)))
}

// RecordRegistrySize records the per-tier size of the active snapshot.
func (vm *ValidationMetrics) RecordRegistrySize(ctx context.Context, tierCounts map[string]int) {
	if vm == nil {
		return
	}
	for tier, count := range tierCounts {
		vm.registrySkills.Record(ctx, int64(count),
			metric.WithAttributes(attribute.String(AttrSkillTier, tier)))
	}
}

// RecordRebuild counts one snapshot rebuild attempt.
func (vm *ValidationMetrics) RecordRebuild(ctx context.Context, success bool) {
	if vm == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "failed"
	}
	vm.graphRebuilds.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}
