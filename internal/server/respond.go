package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	stderrors "loan-intake/internal/common/errors"
	"loan-intake/internal/common/validation"
	"loan-intake/internal/intake"
)

const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult renders an operation result. Failed operations still carry
// the view so the client can re-render.
func writeResult(w http.ResponseWriter, res intake.Result) {
	writeJSON(w, statusFor(res), res)
}

func writeError(w http.ResponseWriter, status int, err *stderrors.StandardError) {
	writeJSON(w, status, intake.Result{
		Success:   false,
		Error:     stderrors.UserMessage(err),
		ErrorCode: string(err.Code),
	})
}

// statusFor maps a result's error code to an HTTP status.
func statusFor(res intake.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch stderrors.ErrorCode(res.ErrorCode) {
	case stderrors.ErrCodeValidationFailed, stderrors.ErrCodePhoneFormatInvalid:
		return http.StatusBadRequest
	case stderrors.ErrCodeRequestInProgress, stderrors.ErrCodeSlotUnavailable,
		stderrors.ErrCodeApplicationIncomplete, stderrors.ErrCodeVerificationMissing,
		stderrors.ErrCodeApplicationClosed:
		return http.StatusConflict
	case stderrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case stderrors.ErrCodeLeadsAPI, stderrors.ErrCodeLeadsNetwork,
		stderrors.ErrCodeLeadsResponseInvalid, stderrors.ErrCodeExternalService:
		return http.StatusBadGateway
	case stderrors.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON body, checks it against schema and decodes it
// into dst. An empty body is treated as {}.
func decodeBody(r *http.Request, schema map[string]interface{}, dst interface{}) *intake.Result {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("body", "Request body could not be read")
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return badRequest("body", "Request body must be a JSON object")
	}
	return decodeDocument(doc, schema, dst)
}

func decodeDocument(doc map[string]interface{}, schema map[string]interface{}, dst interface{}) *intake.Result {
	if schema != nil {
		result, err := validation.ValidateInput(doc, schema)
		if err != nil {
			return badRequest("body", err.Error())
		}
		if !result.Valid {
			errs := make(map[string]string, len(result.Errors))
			for _, e := range result.Errors {
				errs[e.Field] = e.Message
			}
			res := badRequest(result.Errors[0].Field, result.Error())
			res.ValidationErrors = errs
			return res
		}
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return badRequest("body", err.Error())
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return badRequest("body", fmt.Sprintf("Request body does not match: %v", err))
	}
	return nil
}

func badRequest(field, message string) *intake.Result {
	stdErr := stderrors.NewValidationError(field, message)
	return &intake.Result{
		Success:   false,
		Error:     stderrors.UserMessage(stdErr),
		ErrorCode: string(stdErr.Code),
	}
}
