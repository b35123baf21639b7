// Copyright 2026 © The Skillgraph Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/trace"
)

// Every record carries service=skillgraph so engine output stays
// attributable when interleaved with executor logs on a shared sink.
const serviceAttr = "service"

// ServiceName identifies this process in logs and telemetry resources.
const ServiceName = "skillgraph"

// ConfigureSlog installs the process-wide logger. Records emitted under
// an active span carry trace_id and span_id so log lines join up with
// the validation traces. Format is "json" or "text"; unknown levels
// fall back to info.
func ConfigureSlog(output io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var inner slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		inner = slog.NewJSONHandler(output, opts)
	} else {
		inner = slog.NewTextHandler(output, opts)
	}
	inner = inner.WithAttrs([]slog.Attr{slog.String(serviceAttr, ServiceName)})

	logger := slog.New(spanContextHandler{inner: inner})
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a configuration string to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// spanContextHandler copies the active span's identifiers onto each
// record before delegating.
type spanContextHandler struct {
	inner slog.Handler
}

func (h spanContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h spanContextHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.inner.Handle(ctx, record)
}

func (h spanContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return spanContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h spanContextHandler) WithGroup(name string) slog.Handler {
	return spanContextHandler{inner: h.inner.WithGroup(name)}
}
