// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

// Package httpapi exposes the auth service over HTTP with JSON bodies.
//
// Routes:
//
//	POST /auth/register  201 account view
//	POST /auth/login     200 {accessToken, tokenType}
//	GET  /auth/me        200 account view, requires "Authorization: Bearer <token>"
//
// Failures are written as {"error": {"code": ..., "message": ...}}.
package httpapi
