package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	redisclient "github.com/hackgods/appointment-routing-saga/internal/redis"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

const idempotencyHeader = "Idempotency-Key"

// AppointmentService is what the HTTP layer needs from the intake side.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, req appointment.CreateRequest) (*appointment.CreateResult, error)
	ListByInsuredID(ctx context.Context, insuredID string) ([]*appointment.Appointment, error)
	GetTrace(ctx context.Context, id uuid.UUID) (appointment.Trace, error)
	CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
	RetryAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
}

// IdempotencyStore remembers the appointment created for an Idempotency-Key.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (redisclient.Reservation, error)
	Complete(ctx context.Context, r redisclient.Reservation, appointmentID string) error
	Release(ctx context.Context, r redisclient.Reservation) error
}

type handlers struct {
	svc     AppointmentService
	idem    IdempotencyStore
	logger  *logging.Logger
	metrics *metrics.SagaMetrics
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, invalidField("body", "request body must be a JSON object", "json"))
		return
	}

	key := r.Header.Get(idempotencyHeader)
	var reservation redisclient.Reservation
	if key != "" && h.idem != nil {
		res, err := h.idem.Reserve(r.Context(), key)
		switch {
		case errors.Is(err, redisclient.ErrInvalidKey):
			writeError(w, invalidField(idempotencyHeader, "Idempotency-Key must be 1 to 255 characters", "length"))
			return
		case errors.Is(err, redisclient.ErrInFlight):
			writeConflict(w, "a request with this Idempotency-Key is still being processed")
			return
		case err != nil:
			writeError(w, appointment.Infra("Redis", "reserve idempotency key", err))
			return
		}
		if res.Replay {
			h.metrics.ObserveReplay()
			w.Header().Set("Idempotent-Replayed", "true")
			writeJSON(w, http.StatusAccepted, CreateAppointmentResponse{
				AppointmentID: res.AppointmentID,
				Message:       appointment.CreatedMessage,
			})
			return
		}
		reservation = res
	}

	result, err := h.svc.CreateAppointment(r.Context(), appointment.CreateRequest{
		InsuredID:  req.InsuredID,
		ScheduleID: req.ScheduleID,
		Country:    req.CountryISO,
	})
	if err != nil {
		if reservation.Key != "" {
			if relErr := h.idem.Release(r.Context(), reservation); relErr != nil {
				h.logger.Warn("release idempotency key failed", "error", relErr, "request_id", GetRequestID(r.Context()))
			}
		}
		writeError(w, err)
		return
	}

	if reservation.Key != "" {
		if err := h.idem.Complete(r.Context(), reservation, result.AppointmentID.String()); err != nil {
			h.logger.Warn("complete idempotency key failed", "error", err, "request_id", GetRequestID(r.Context()))
		}
	}

	writeJSON(w, http.StatusAccepted, CreateAppointmentResponse{
		AppointmentID: result.AppointmentID.String(),
		Message:       result.Message,
	})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListByInsuredID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ListAppointmentsResponse{
		Appointments: make([]AppointmentResponse, 0, len(list)),
		Total:        len(list),
	}
	for _, a := range list {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) getTrace(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	trace, err := h.svc.GetTrace(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// The body is optional.
	var req CancelAppointmentRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, invalidField("body", "request body must be a JSON object", "json"))
			return
		}
	}

	appt, err := h.svc.CancelAppointment(r.Context(), id, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) retryAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	appt, err := h.svc.RetryAppointment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toAppointmentResponse(appt))
}

func appointmentID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, invalidField("appointmentId", "appointmentId must be a valid UUID", "uuid")
	}
	return id, nil
}
