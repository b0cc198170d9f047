// Package api provides the HTTP surface of the portal: permit lifecycle
// endpoints, payment callback, document retrieval, and health probes, with
// standardized error handling.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/baliwag-egov/civreg/internal/middleware"
	"github.com/baliwag-egov/civreg/internal/permit"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeForbidden indicates the identity may not perform the
	// operation.
	ErrCodeForbidden = "forbidden"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodePrecondition indicates the entity is not in the status the
	// operation requires, usually a lost concurrent race.
	ErrCodePrecondition = "precondition_failed"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	// ErrCodeUnsupportedType indicates an unsupported content type for a
	// document upload.
	ErrCodeUnsupportedType = "unsupported_type"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response. The error code is
// published to the logging middleware through the context so 4xx/5xx
// responses carry it in the access log.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	ctx = middleware.SetErrorCode(ctx, code)
	middleware.UpdateResponseContext(w, ctx)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusCodeMapping returns the HTTP status code for an error code.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeUnsupportedType:
		return http.StatusBadRequest
	case ErrCodeAuthFailed:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodePrecondition:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteEngineError maps a lifecycle engine error onto the response
// taxonomy. Precondition and validation errors keep the engine's message so
// the UI can explain why the operation was refused.
func WriteEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := ErrCodeInternal
	message := "Internal server error"

	switch {
	case errors.Is(err, permit.ErrUnauthorized):
		code, message = ErrCodeAuthFailed, "Authentication required"
	case errors.Is(err, permit.ErrForbidden):
		code, message = ErrCodeForbidden, err.Error()
	case errors.Is(err, permit.ErrNotFound):
		code, message = ErrCodeNotFound, err.Error()
	case errors.Is(err, permit.ErrValidation):
		code, message = ErrCodeValidation, err.Error()
	case errors.Is(err, permit.ErrPrecondition):
		code, message = ErrCodePrecondition, err.Error()
	default:
		slog.ErrorContext(r.Context(), "lifecycle operation failed", "error", err)
	}

	WriteError(w, r.Context(), StatusCodeMapping(code), code, message)
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, ctx context.Context, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
