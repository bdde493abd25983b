package app

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"anilog/internal/auth"
	"anilog/internal/authpw"
	"anilog/internal/session"
)

// DomainError carries an HTTP status and a stable machine-readable code
// alongside the human message.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errValidation(message string, details any) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, details)
}

func errNotFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func errConflict(message string) *DomainError {
	return domainError(http.StatusConflict, "CONFLICT", message, nil)
}

func errUnauthorized() *DomainError {
	return domainError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
}

func errForbidden() *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
}

func errSelfAction(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "SELF_ACTION", message, nil)
}

func errRateLimited(retryAfterSeconds int) *DomainError {
	return domainError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests",
		map[string]any{"retryAfterSeconds": retryAfterSeconds})
}

// mapError translates any error into the status, code, message and details
// the response envelope needs. Unknown errors become opaque 500s so
// internals never leak to clients.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, session.ErrNotFound) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	if errors.Is(err, authpw.ErrInvalidCredentials) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid email or password", nil
	}
	if errors.Is(err, authpw.ErrEmailTaken) {
		return http.StatusConflict, "CONFLICT", "Email already registered", nil
	}
	if errors.Is(err, authpw.ErrWeakPassword) {
		return http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters", nil
	}
	if errors.Is(err, authpw.ErrInvalidResetToken) || errors.Is(err, authpw.ErrInvalidVerifyToken) {
		return http.StatusBadRequest, "VALIDATION_ERROR", "Invalid or expired token", nil
	}
	if errors.Is(err, authpw.ErrMissingFields) {
		return http.StatusBadRequest, "VALIDATION_ERROR", "Required fields are missing", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeSuccess wraps data in the success envelope.
func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"success": true,
		"data":    data,
	})
}

// writeFailure wraps an error in the failure envelope.
func writeFailure(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"success":   false,
		"error":     message,
		"errorCode": code,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

// writeErr maps err and writes the failure envelope.
func writeErr(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	writeFailure(w, status, code, message, details)
}
