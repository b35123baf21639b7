// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine assembles the registry, composition graph, resolver,
// and plan validator into one atomically swappable snapshot. Readers
// always observe a graph consistent with a single registry revision;
// reloads build a fresh snapshot aside and publish it in one pointer
// swap.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zeonlabs/skillgraph/pkg/composition"
	"github.com/zeonlabs/skillgraph/pkg/plan"
	"github.com/zeonlabs/skillgraph/pkg/registry"
	"github.com/zeonlabs/skillgraph/pkg/skill"
	"github.com/zeonlabs/skillgraph/pkg/telemetry"
)

// Snapshot is one immutable revision of the engine state. All fields are
// derived from the same registry load.
type Snapshot struct {
	Registry  *registry.Registry
	Graph     *composition.Graph
	Resolver  *composition.Resolver
	Validator *plan.Validator
}

// Engine owns the active snapshot and rebuilds it from the skill
// directory on demand. Reads never block; Reload is the only operation
// holding the writer lock.
type Engine struct {
	dir     string
	params  composition.ParamSource
	audit   plan.AuditStore
	metrics *telemetry.ValidationMetrics
	logger  *slog.Logger
	tracer  trace.Tracer

	expandComposite bool

	reloadMu sync.Mutex
	current  atomic.Pointer[Snapshot]
}

// Option configures an Engine.
type Option func(*Engine)

// WithParamSource installs a machine parameter source used during
// flattening.
func WithParamSource(src composition.ParamSource) Option {
	return func(e *Engine) {
		e.params = src
	}
}

// WithAuditStore records every plan validation outcome.
func WithAuditStore(store plan.AuditStore) Option {
	return func(e *Engine) {
		e.audit = store
	}
}

// WithMetrics publishes engine metrics.
func WithMetrics(m *telemetry.ValidationMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger; defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithoutExpansion disables composite-step flattening during plan
// validation.
func WithoutExpansion() Option {
	return func(e *Engine) {
		e.expandComposite = false
	}
}

// New loads the skill directory and returns an engine holding the first
// snapshot. A registry or graph defect fails construction: the engine
// refuses to start on a broken registry rather than serving partially.
func New(ctx context.Context, dir string, opts ...Option) (*Engine, error) {
	e := &Engine{
		dir:             dir,
		logger:          slog.Default(),
		tracer:          otel.Tracer("skillgraph/engine"),
		expandComposite: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Dir returns the watched skill directory.
func (e *Engine) Dir() string {
	return e.dir
}

// Snapshot returns the active snapshot. The result is immutable and
// stays valid after later reloads.
func (e *Engine) Snapshot() *Snapshot {
	return e.current.Load()
}

// Reload rebuilds the snapshot from the skill directory and swaps it in.
// On failure the previous snapshot stays active.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "Engine.Reload",
		trace.WithAttributes(attribute.String(telemetry.AttrRegistryDir, e.dir)),
	)
	defer span.End()

	snapshot, err := e.build()
	if err != nil {
		e.metrics.RecordRebuild(ctx, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "snapshot rebuild failed")
		e.logger.ErrorContext(ctx, "snapshot rebuild failed",
			"dir", e.dir, "error", err)
		return err
	}

	e.current.Store(snapshot)
	e.metrics.RecordRebuild(ctx, true)
	e.recordRegistrySize(ctx, snapshot.Registry)
	stats := snapshot.Graph.Stats()
	span.SetAttributes(attribute.Int(telemetry.AttrRegistrySkills, snapshot.Registry.Len()))
	span.SetAttributes(telemetry.GraphAttributes(stats.TotalSkills, stats.EdgeCount, stats.MaxDepth)...)
	e.logger.InfoContext(ctx, "snapshot published",
		"dir", e.dir, "skills", snapshot.Registry.Len())
	return nil
}

func (e *Engine) build() (*Snapshot, error) {
	reg, err := registry.LoadDir(e.dir)
	if err != nil {
		return nil, err
	}
	graph, err := composition.Build(reg)
	if err != nil {
		return nil, err
	}

	var resolverOpts []composition.ResolverOption
	if e.params != nil {
		resolverOpts = append(resolverOpts, composition.WithParamSource(e.params))
	}
	if e.metrics != nil {
		resolverOpts = append(resolverOpts, composition.WithMetrics(e.metrics))
	}
	resolver := composition.NewResolver(graph, resolverOpts...)

	validatorOpts := []plan.ValidatorOption{
		plan.WithResolver(resolver),
		plan.WithLogger(e.logger),
	}
	if e.audit != nil {
		validatorOpts = append(validatorOpts, plan.WithAuditStore(e.audit))
	}
	if e.metrics != nil {
		validatorOpts = append(validatorOpts, plan.WithMetrics(e.metrics))
	}
	if !e.expandComposite {
		validatorOpts = append(validatorOpts, plan.WithoutExpansion())
	}

	return &Snapshot{
		Registry:  reg,
		Graph:     graph,
		Resolver:  resolver,
		Validator: plan.NewValidator(graph, validatorOpts...),
	}, nil
}

func (e *Engine) recordRegistrySize(ctx context.Context, reg *registry.Registry) {
	if e.metrics == nil {
		return
	}
	counts := make(map[string]int, 3)
	for tier, n := range reg.CountByTier() {
		counts[tier.String()] = n
	}
	e.metrics.RecordRegistrySize(ctx, counts)
}

// Lookup resolves a skill in the active snapshot.
func (e *Engine) Lookup(name string) (*skill.Spec, error) {
	return e.Snapshot().Registry.Lookup(name)
}

// Flatten expands a skill through the active snapshot's resolver.
func (e *Engine) Flatten(ctx context.Context, name string, inputs map[string]any) (composition.Trace, error) {
	return e.Snapshot().Resolver.Flatten(ctx, name, inputs)
}

// ValidatePlan validates a candidate plan against the active snapshot.
func (e *Engine) ValidatePlan(ctx context.Context, p plan.Plan) (*plan.ValidatedPlan, error) {
	return e.Snapshot().Validator.Validate(ctx, p)
}
