// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/aegis-auth/aegis/internal/auth"
	"github.com/aegis-auth/aegis/internal/observability"
	"github.com/aegis-auth/aegis/pkg/errutil"
)

// MaxBodyBytes bounds request bodies.
const MaxBodyBytes = 1 << 20

var tracer = otel.Tracer("aegis/httpapi")

// AuthService is the subset of auth.Service used by the handlers.
type AuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.AccountView, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*auth.AccountView, error)
}

type accountContextKey struct{}

// AccountFromContext returns the account attached by the bearer middleware.
func AccountFromContext(ctx context.Context) (*auth.AccountView, bool) {
	v, ok := ctx.Value(accountContextKey{}).(*auth.AccountView)
	return v, ok
}

type handler struct {
	svc    AuthService
	logger *slog.Logger
}

// NewHandler returns the API routes backed by svc.
// A nil logger selects slog.Default.
func NewHandler(svc AuthService, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", h.instrument("register", http.HandlerFunc(h.register)))
	mux.Handle("POST /auth/login", h.instrument("login", http.HandlerFunc(h.login)))
	mux.Handle("GET /auth/me", h.instrument("me", h.requireBearer(http.HandlerFunc(h.me))))
	return mux
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	view, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, result)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	view, _ := AccountFromContext(r.Context())
	writeJSON(w, http.StatusOK, view)
}

// requireBearer resolves the Authorization header to an account.
func (h *handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			h.writeError(w, r, oops.Code(auth.CodeTokenInvalid).With("reason", "missing bearer token").Wrap(auth.ErrTokenInvalid))
			return
		}
		view, err := h.svc.Authenticate(r.Context(), token)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), accountContextKey{}, view)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// decode reads a JSON body into dst. It writes the error response itself and
// reports whether the handler should continue.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if err == nil {
		// The body must hold exactly one JSON value.
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = errors.Join(errTrailingData, extra)
		}
	}
	if err != nil {
		msg := "request body is not valid JSON"
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			msg = "request body exceeds " + strconv.Itoa(MaxBodyBytes) + " bytes"
		case errors.Is(err, errTrailingData):
			msg = "request body must contain a single JSON object"
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorBody{Error: ErrorDetail{Code: CodeInvalidInput, Message: msg}})
		return false
	}
	return true
}

var errTrailingData = errors.New("trailing data after JSON value")

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, detail := classify(err)
	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	}
	if status == http.StatusUnauthorized && (detail.Code == CodeTokenInvalid || detail.Code == CodeTokenExpired) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	writeJSON(w, status, ErrorBody{Error: detail})
}

// instrument wraps next with a span, panic recovery and the request counter.
func (h *handler) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "http."+route)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w}
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.ErrorContext(ctx, "handler panic", "route", route, "panic", rec)
				if !sw.wrote {
					writeJSON(sw, http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{Code: CodeInternal, Message: "internal server error"}})
				}
			}
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", sw.status()),
			)
			observability.RecordHTTPRequest(route, strconv.Itoa(sw.status()))
		}()

		next.ServeHTTP(sw, r.WithContext(ctx))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code  int
	wrote bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wrote {
		w.code = code
		w.wrote = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	//nolint:wrapcheck // ResponseWriter passthrough
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) status() int {
	if !w.wrote {
		return http.StatusOK
	}
	return w.code
}

func bearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
