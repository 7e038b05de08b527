// Package errors provides application-level error types and utilities.
// It defines common error types like validation, not found, conflict, and
// authorization errors, plus the broker-specific matching and ledger taxonomy.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeInternal     ErrorType = "internal_error"
	ErrorTypeBadRequest   ErrorType = "bad_request"

	// Broker matching and settlement taxonomy.
	ErrorTypeNoEligibleNode      ErrorType = "no_eligible_node"
	ErrorTypeCapacityRace        ErrorType = "capacity_race"
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"
	ErrorTypeNodeUnresponsive    ErrorType = "node_unresponsive"
	ErrorTypeLedgerInconsistency ErrorType = "ledger_inconsistency"
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func firstDetail(details []string) string {
	if len(details) > 0 {
		return details[0]
	}
	return ""
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: firstDetail(details),
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
		Details: firstDetail(details),
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
		Code:    http.StatusConflict,
		Details: firstDetail(details),
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
		Code:    http.StatusUnauthorized,
		Details: firstDetail(details),
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Message: message,
		Code:    http.StatusForbidden,
		Details: firstDetail(details),
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
		Details: firstDetail(details),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: firstDetail(details),
	}
}

// NewNoEligibleNodeError signals that no node passed the eligibility filters.
// Clients may retry later; the condition is transient, not fatal.
func NewNoEligibleNodeError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeNoEligibleNode,
		Message: message,
		Code:    http.StatusServiceUnavailable,
		Details: firstDetail(details),
	}
}

// NewCapacityRaceError signals a lost reservation race on a node's last free
// slot. It is absorbed by the matcher's retry loop and never surfaced to
// callers directly.
func NewCapacityRaceError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeCapacityRace,
		Message: message,
		Code:    http.StatusConflict,
		Details: firstDetail(details),
	}
}

// NewInsufficientCreditsError signals that a spend would drive the balance
// negative. Fatal to the requesting session.
func NewInsufficientCreditsError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeInsufficientCredits,
		Message: message,
		Code:    http.StatusPaymentRequired,
		Details: firstDetail(details),
	}
}

// NewNodeUnresponsiveError signals a node that stopped heart-beating while
// hosting sessions. Handled internally by forced closure.
func NewNodeUnresponsiveError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeNodeUnresponsive,
		Message: message,
		Code:    http.StatusServiceUnavailable,
		Details: firstDetail(details),
	}
}

// NewLedgerInconsistencyError signals a double-entry mismatch or other ledger
// integrity fault. Requires operator intervention; never silently dropped.
func NewLedgerInconsistencyError(message string, details ...string) *AppError {
	return &AppError{
		Type:    ErrorTypeLedgerInconsistency,
		Message: message,
		Code:    http.StatusInternalServerError,
		Details: firstDetail(details),
	}
}

// IsAppError checks if the error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from error
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeConflict
}

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeNotFound
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeValidation
}

// IsNoEligibleNodeError checks if the error reports an empty candidate set
func IsNoEligibleNodeError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeNoEligibleNode
}

// IsCapacityRaceError checks if the error reports a lost reservation race
func IsCapacityRaceError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeCapacityRace
}

// IsInsufficientCreditsError checks if the error reports an overdraw attempt
func IsInsufficientCreditsError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeInsufficientCredits
}

// IsLedgerInconsistencyError checks if the error reports a ledger integrity fault
func IsLedgerInconsistencyError(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == ErrorTypeLedgerInconsistency
}

// IsDuplicateError checks if the error is a database duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	// MySQL duplicate entry error
	if strings.Contains(errStr, "Duplicate entry") || strings.Contains(errStr, "duplicate key") {
		return true
	}
	// SQLite / PostgreSQL unique violation
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "unique constraint") ||
		strings.Contains(errStr, "violates unique constraint") {
		return true
	}
	return false
}
