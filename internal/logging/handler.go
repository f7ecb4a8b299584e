// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package logging provides structured logging with OpenTelemetry trace context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// Redacted replaces the value of any attribute whose key names a credential.
const Redacted = "[REDACTED]"

// sensitiveKeys are attribute keys never written in clear.
var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"secret":        {},
	"secret_key":    {},
	"token":         {},
	"access_token":  {},
	"authorization": {},
}

// Options configures Setup.
type Options struct {
	Service string
	Version string
	// Format is "json" or "text". Empty selects json.
	Format string
	// Level is the minimum level written. The zero value is info.
	Level slog.Level
}

// traceHandler wraps a slog.Handler to add trace context.
type traceHandler struct {
	handler slog.Handler
	service string
	version string
}

// Handle adds service identity and trace context to the log record.
func (h *traceHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(
		slog.String("service", h.service),
		slog.String("version", h.version),
	)

	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.HasTraceID() {
		r.AddAttrs(slog.String("trace_id", spanCtx.TraceID().String()))
	}
	if spanCtx.HasSpanID() {
		r.AddAttrs(slog.String("span_id", spanCtx.SpanID().String()))
	}

	//nolint:wrapcheck // Handler interface requires unwrapped error passthrough
	return h.handler.Handle(ctx, r)
}

// Enabled returns true if the level is enabled.
func (h *traceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// WithAttrs returns a new handler with the given attributes.
func (h *traceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &traceHandler{
		handler: h.handler.WithAttrs(attrs),
		service: h.service,
		version: h.version,
	}
}

// WithGroup returns a new handler with the given group.
func (h *traceHandler) WithGroup(name string) slog.Handler {
	return &traceHandler{
		handler: h.handler.WithGroup(name),
		service: h.service,
		version: h.version,
	}
}

// Setup creates a configured slog.Logger. If w is nil, writes to os.Stderr.
func Setup(opts Options, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: redact,
	}

	var baseHandler slog.Handler
	if opts.Format == "text" {
		baseHandler = slog.NewTextHandler(w, handlerOpts)
	} else {
		baseHandler = slog.NewJSONHandler(w, handlerOpts)
	}

	return slog.New(&traceHandler{
		handler: baseHandler,
		service: opts.Service,
		version: opts.Version,
	})
}

// SetDefault sets up and installs the default logger.
func SetDefault(opts Options) *slog.Logger {
	logger := Setup(opts, nil)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a slog.Level.
// Empty selects info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, oops.Code("LOG_LEVEL_INVALID").With("level", name).Errorf("unknown log level %q", name)
	}
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, Redacted)
	}
	return a
}
