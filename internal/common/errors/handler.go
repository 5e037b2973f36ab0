package errors

import (
	"time"
)

// Logger is the subset of logger.Logger the reporter needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// ErrorHandler normalizes operation errors, logs them once and returns the
// message the applicant should see.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err against operation and returns the normalized error and the
// user-facing message.
func (h *ErrorHandler) Handle(operation string, err error, fields map[string]interface{}) (*StandardError, string) {
	stdErr := h.normalizeError(err)

	logFields := map[string]interface{}{
		"operation":     operation,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if stdErr.StatusCode != 0 {
		logFields["statusCode"] = stdErr.StatusCode
	}
	for k, v := range fields {
		logFields[k] = v
	}

	if stdErr.Code == ErrCodeValidationFailed || stdErr.Code == ErrCodeRequestInProgress {
		h.logger.Warn("Operation rejected", logFields)
	} else {
		h.logger.Error("Operation failed", logFields)
	}

	return stdErr, UserMessage(stdErr)
}

func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}
