// Package errors provides the structured error type used across the intake
// service and the mapping from errors to applicant-facing messages.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeLeadsAPI              ErrorCode = "LEADS_API_ERROR"
	ErrCodeLeadsNetwork          ErrorCode = "LEADS_NETWORK_ERROR"
	ErrCodeLeadsResponseInvalid  ErrorCode = "LEADS_RESPONSE_INVALID"
	ErrCodeVerificationMissing   ErrorCode = "VERIFICATION_SESSION_MISSING"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodePhoneFormatInvalid    ErrorCode = "PHONE_FORMAT_INVALID"
	ErrCodeRequestInProgress     ErrorCode = "REQUEST_IN_PROGRESS"
	ErrCodeStorageUnavailable    ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeSlotUnavailable       ErrorCode = "SLOT_UNAVAILABLE"
	ErrCodeExternalService       ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
	ErrCodeSessionNotFound       ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeApplicationIncomplete ErrorCode = "APPLICATION_INCOMPLETE"
	ErrCodeApplicationClosed     ErrorCode = "APPLICATION_CLOSED"
)

// GenericMessage is shown to the applicant for anything that is not a
// structured backend error.
const GenericMessage = "An error occurred"

// StandardError represents a structured application error.
type StandardError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	StatusCode int                    `json:"statusCode,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewLeadsAPIError wraps a non-2xx leads backend envelope. The backend
// message is what the applicant sees.
func NewLeadsAPIError(operation string, statusCode int, message string) *StandardError {
	return &StandardError{
		Code:       ErrCodeLeadsAPI,
		Message:    message,
		Details:    fmt.Sprintf("operation: %s, status: %d", operation, statusCode),
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
		Timestamp:  time.Now().UTC(),
	}
}

// NewLeadsNetworkError is returned when the leads backend could not be reached.
func NewLeadsNetworkError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadsNetwork,
		Message:   fmt.Sprintf("Network error occurred while %s", operation),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeadsResponseInvalidError is returned when a 2xx body does not decode.
func NewLeadsResponseInvalidError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadsResponseInvalid,
		Message:   fmt.Sprintf("Failed to %s", operation),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewVerificationMissingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeVerificationMissing,
		Message:   "Missing required verification data",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewValidationError(field, message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

func NewPhoneFormatError(digits int) *StandardError {
	return &StandardError{
		Code:      ErrCodePhoneFormatInvalid,
		Message:   "Phone number must be 10 digits",
		Details:   fmt.Sprintf("digits: %d", digits),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewRequestInProgressError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInProgress,
		Message:   "A request is already in progress",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewStorageUnavailableError(scope string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageUnavailable,
		Message:   "State storage unavailable",
		Details:   fmt.Sprintf("scope: %s, error: %s", scope, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewSlotUnavailableError(slot time.Time) *StandardError {
	return &StandardError{
		Code:      ErrCodeSlotUnavailable,
		Message:   "The selected time is no longer available",
		Details:   fmt.Sprintf("slot: %s", slot.UTC().Format(time.RFC3339)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewApplicationIncompleteError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationIncomplete,
		Message:   "Application is missing required information",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewApplicationClosedError is returned for submissions made after the
// application already has a final outcome.
func NewApplicationClosedError(operation string, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeApplicationClosed,
		Message:   "This application has already been completed",
		Details:   fmt.Sprintf("operation: %s, status: %s", operation, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionNotFound,
		Message:   "Session not found",
		Details:   fmt.Sprintf("sessionId: %s", sessionID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard unwraps err into a *StandardError when one is in the chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// StatusCodeOf returns the backend status code carried by a leads API error.
func StatusCodeOf(err error) (int, bool) {
	stdErr, ok := AsStandard(err)
	if !ok || stdErr.Code != ErrCodeLeadsAPI {
		return 0, false
	}
	return stdErr.StatusCode, true
}

// UserMessage maps an error to the text shown next to the failed action.
// Backend envelopes and local rule violations surface their own message;
// transport, decoding and unexpected failures are generic.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	stdErr, ok := AsStandard(err)
	if !ok || stdErr.Message == "" {
		return GenericMessage
	}
	switch stdErr.Code {
	case ErrCodeLeadsNetwork, ErrCodeLeadsResponseInvalid, ErrCodeInternal,
		ErrCodeExternalService, ErrCodeStorageUnavailable:
		return GenericMessage
	}
	return stdErr.Message
}

// GetErrorCategory returns the coarse category used in logs and metrics.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "LEADS"):
		return "LEADS"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "FORMAT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "VERIFICATION") || strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	default:
		return "OTHER"
	}
}
