// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Package-level collectors let the auth and HTTP layers record events without
// holding a Server. Each Server registry registers them on creation.
var (
	authOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_auth_operations_total",
			Help: "Total number of auth operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	passwordHashSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aegis_password_hash_seconds",
			Help:    "Time spent hashing and verifying passwords",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"algorithm", "operation"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aegis_http_requests_total",
			Help: "Total number of API requests by route and status code",
		},
		[]string{"route", "status"},
	)
)

// RecordAuthOutcome counts one auth operation with its outcome label.
func RecordAuthOutcome(operation, outcome string) {
	authOperations.WithLabelValues(operation, outcome).Inc()
}

// ObservePasswordHash records the time since start. Intended for use with
// defer at the top of a hash or verify call.
func ObservePasswordHash(algorithm, operation string, start time.Time) {
	passwordHashSeconds.WithLabelValues(algorithm, operation).Observe(time.Since(start).Seconds())
}

// RecordHTTPRequest counts one API request.
func RecordHTTPRequest(route, status string) {
	httpRequests.WithLabelValues(route, status).Inc()
}

// Metrics exposes the collectors registered with a Server.
type Metrics struct {
	AuthOperations      *prometheus.CounterVec
	PasswordHashSeconds *prometheus.HistogramVec
	HTTPRequests        *prometheus.CounterVec
}

// NewMetrics registers the Aegis collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations:      authOperations,
		PasswordHashSeconds: passwordHashSeconds,
		HTTPRequests:        httpRequests,
	}

	reg.MustRegister(m.AuthOperations)
	reg.MustRegister(m.PasswordHashSeconds)
	reg.MustRegister(m.HTTPRequests)

	return m
}
