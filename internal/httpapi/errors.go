// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Aegis Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/aegis-auth/aegis/internal/auth"
)

// Error codes written in response bodies.
const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeDuplicateEmail     = "DUPLICATE_EMAIL"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInternal           = "INTERNAL"
)

// ErrorBody is the JSON envelope for failures.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps a service error onto a status, a code and a client-safe
// message. Only input errors echo their own text; every other message is
// fixed so responses never reveal why a credential or token was rejected.
func classify(err error) (int, ErrorDetail) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusUnprocessableEntity, ErrorDetail{Code: CodeInvalidInput, Message: err.Error()}
	case errors.Is(err, auth.ErrDuplicateEmail):
		return http.StatusBadRequest, ErrorDetail{Code: CodeDuplicateEmail, Message: auth.ErrDuplicateEmail.Error()}
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorDetail{Code: CodeInvalidCredentials, Message: auth.ErrInvalidCredentials.Error()}
	case errors.Is(err, auth.ErrTokenExpired):
		return http.StatusUnauthorized, ErrorDetail{Code: CodeTokenExpired, Message: auth.ErrTokenExpired.Error()}
	case errors.Is(err, auth.ErrTokenInvalid):
		return http.StatusUnauthorized, ErrorDetail{Code: CodeTokenInvalid, Message: auth.ErrTokenInvalid.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: "internal server error"}
	}
}
