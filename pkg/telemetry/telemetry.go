// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	spanBatchTimeout   = time.Second
	metricPushInterval = time.Minute
)

// ShutdownFunc flushes and stops the installed telemetry providers.
type ShutdownFunc func(context.Context) error

// Config selects the exporter backend for traces and metrics.
type Config struct {
	Exporter           string // stdout or otlp
	OTLPEndpoint       string
	OTLPInsecure       bool
	OTLPTimeoutSeconds int
}

// Init installs stdout-exporting providers. Development and test runs
// use this; deployments point InitWithConfig at an OTLP collector.
func Init(serviceName, version string) (ShutdownFunc, error) {
	return InitWithConfig(serviceName, version, Config{Exporter: "stdout"})
}

// InitWithConfig builds the exporter pair named by cfg, installs global
// tracer and meter providers over it, and returns the shutdown hook.
// Traces and metrics always go to the same backend.
func InitWithConfig(serviceName, version string, cfg Config) (ShutdownFunc, error) {
	ctx := context.Background()

	exp, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	))
	if err != nil {
		return nil, fmt.Errorf("build telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp.spans, sdktrace.WithBatchTimeout(spanBatchTimeout)),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp.metrics,
			sdkmetric.WithInterval(metricPushInterval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// exporterPair bundles the span and metric exporters for one backend so
// both providers are always configured against the same destination.
type exporterPair struct {
	spans   sdktrace.SpanExporter
	metrics sdkmetric.Exporter
}

func newExporters(ctx context.Context, cfg Config) (exporterPair, error) {
	switch cfg.Exporter {
	case "", "stdout":
		return stdoutExporters()
	case "otlp":
		return otlpExporters(ctx, cfg)
	default:
		return exporterPair{}, fmt.Errorf("unknown telemetry exporter: %s", cfg.Exporter)
	}
}

func stdoutExporters() (exporterPair, error) {
	spans, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return exporterPair{}, fmt.Errorf("stdout trace exporter: %w", err)
	}
	metrics, err := stdoutmetric.New()
	if err != nil {
		return exporterPair{}, fmt.Errorf("stdout metric exporter: %w", err)
	}
	return exporterPair{spans: spans, metrics: metrics}, nil
}

func otlpExporters(ctx context.Context, cfg Config) (exporterPair, error) {
	if cfg.OTLPEndpoint == "" {
		return exporterPair{}, errors.New("telemetry.otlp_endpoint is required for the otlp exporter")
	}
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.OTLPInsecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}
	if cfg.OTLPTimeoutSeconds > 0 {
		timeout := time.Duration(cfg.OTLPTimeoutSeconds) * time.Second
		traceOpts = append(traceOpts, otlptracegrpc.WithTimeout(timeout))
		metricOpts = append(metricOpts, otlpmetricgrpc.WithTimeout(timeout))
	}

	spans, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return exporterPair{}, fmt.Errorf("otlp trace exporter: %w", err)
	}
	metrics, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return exporterPair{}, fmt.Errorf("otlp metric exporter: %w", err)
	}
	return exporterPair{spans: spans, metrics: metrics}, nil
}
