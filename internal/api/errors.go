package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
)

const (
	codeIdempotencyConflict = "IDEMPOTENCY_CONFLICT"
	codeInternal            = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the appointment error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Code:      appointment.ErrorCode(err),
		Message:   err.Error(),
		Timestamp: time.Now().UTC(),
	}

	var (
		ve *appointment.ValidationError
		nf *appointment.NotFoundError
		br *appointment.BusinessRuleError
		ie *appointment.InfrastructureError
	)
	switch {
	case errors.As(err, &ve):
		resp.StatusCode = http.StatusBadRequest
		resp.Field = ve.Field
		resp.Constraints = ve.Constraints
	case errors.As(err, &nf):
		resp.StatusCode = http.StatusNotFound
		resp.ResourceType = nf.ResourceType
		resp.ResourceID = nf.ResourceID
	case errors.As(err, &br):
		resp.StatusCode = http.StatusUnprocessableEntity
		resp.RuleName = br.Rule
	case errors.As(err, &ie):
		resp.StatusCode = http.StatusServiceUnavailable
		resp.Service = ie.Service
	default:
		resp.StatusCode = http.StatusInternalServerError
		resp.Code = codeInternal
		resp.Message = "internal server error"
	}

	writeJSON(w, resp.StatusCode, resp)
}

func writeConflict(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusConflict, ErrorResponse{
		StatusCode: http.StatusConflict,
		Code:       codeIdempotencyConflict,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	})
}

func invalidField(field, message string, constraints ...string) error {
	return &appointment.ValidationError{Field: field, Message: message, Constraints: constraints}
}
