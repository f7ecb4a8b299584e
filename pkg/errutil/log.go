// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package errutil carries helpers for logging and inspecting oops errors.
package errutil

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. Oops errors contribute their code and
// context as separate attributes.
func LogError(logger *slog.Logger, msg string, err error) {
	LogErrorContext(context.Background(), logger, msg, err)
}

// LogErrorContext is LogError with a context, so handlers that read trace
// information from ctx can attach it.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error) {
	logger.ErrorContext(ctx, msg, errorAttrs(err)...)
}

// Code returns the oops code carried by err, or "" when it has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code := oopsErr.Code()
	if code == nil {
		return ""
	}
	if s, ok := code.(string); ok {
		return s
	}
	return fmt.Sprint(code)
}

func errorAttrs(err error) []any {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return []any{"error", err}
	}
	attrs := []any{"error", oopsErr.Error()}
	if code := Code(err); code != "" {
		attrs = append(attrs, "code", code)
	}
	if ctx := oopsErr.Context(); len(ctx) > 0 {
		attrs = append(attrs, "context", ctx)
	}
	return attrs
}
