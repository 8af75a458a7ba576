// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key is missing")

	// ErrAuthFailed matches a ServiceError with HTTP 401 or 403.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited matches a ServiceError with HTTP 429.
	ErrRateLimited = errors.New("rate limited")
)

// ServiceError is a non-success HTTP response from the provider.
type ServiceError struct {
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	return "API Error: " + e.Message
}

// Is lets callers match status classes with errors.Is.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

// TransportError means the request could not be completed: the connection
// failed, or the body could not be read to the end.
type TransportError struct {
	Op  string // "request" or "read"
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("network error (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// apiErrorResponse covers both the OpenAI style {"error":{...}} body and the
// flat {"message":...} body some gateways return.
type apiErrorResponse struct {
	Error *struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    any    `json:"code"`
	Message string `json:"message"`
}

// newServiceError builds a ServiceError from a status code and raw body.
// The provider's message is used when present, else "Status <code>".
func newServiceError(status int, body []byte) *ServiceError {
	se := &ServiceError{Status: status}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Error != nil && strings.TrimSpace(apiErr.Error.Message) != "":
			se.Message = apiErr.Error.Message
			se.Code = codeString(apiErr.Error.Code)
		case strings.TrimSpace(apiErr.Message) != "":
			se.Message = apiErr.Message
			se.Code = codeString(apiErr.Code)
		}
	}

	if se.Message == "" {
		se.Message = fmt.Sprintf("Status %d", status)
	}
	return se
}

// codeString normalizes error codes, which providers send as strings or numbers.
func codeString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case float64:
		return fmt.Sprintf("%d", int64(c))
	default:
		return fmt.Sprint(c)
	}
}
