// Package http provides the JSON API server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain rejections to status codes.

package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"budgetplaner/internal/auth"
	"budgetplaner/internal/backup"
	"budgetplaner/internal/core"
	applog "budgetplaner/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	payload    any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.payload)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"internal","message":"internal error"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// APIError is the body of every failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error APIError `json:"error"`
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, code, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(errorBody{Error: APIError{Code: code, Message: message}})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

func UnauthorizedError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthorized", "authentication required").
		Header("WWW-Authenticate", `Bearer realm="budgetplaner"`)
}

func ForbiddenError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusForbidden, "forbidden", "admin role required")
}

func NotFoundError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, string(core.ReasonNotFound), "not found")
}

func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, please try again later")
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "internal", "internal error")
}

// errorFor maps err to a response. Ownership failures look exactly like
// missing rows. Store failures never expose their cause.
func errorFor(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return ErrorResponse(http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, backup.ErrUnknownFormat):
		return BadRequestError(err.Error())
	}

	switch reason := core.ReasonOf(err); reason {
	case core.ReasonNotFound, core.ReasonNotOwned:
		return NotFoundError()
	case core.ReasonValidation, core.ReasonInvalidReference:
		return ErrorResponse(http.StatusUnprocessableEntity, string(reason), err.Error())
	case core.ReasonConflict:
		return ErrorResponse(http.StatusConflict, string(reason), err.Error())
	default:
		return InternalServerError()
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
	}
	resp.Write(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).JSON(v).Write(w)
}

// deny adapts the builders to the middleware callback shape.
func deny(w http.ResponseWriter, _ *http.Request, status int) {
	switch status {
	case http.StatusForbidden:
		ForbiddenError().Write(w)
	case http.StatusTooManyRequests:
		TooManyRequestsError().Write(w)
	default:
		UnauthorizedError().Write(w)
	}
}
