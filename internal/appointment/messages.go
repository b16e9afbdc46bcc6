package appointment

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const CreatedMessage = "Appointment scheduling is in process"

// CreationMessage is what the create stage routes to a country queue.
type CreationMessage struct {
	AppointmentID string    `json:"appointmentId"`
	InsuredID     string    `json:"insuredId"`
	ScheduleID    int64     `json:"scheduleId"`
	CountryISO    string    `json:"countryISO"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewCreationMessage builds the message from a persisted aggregate.
func NewCreationMessage(a *Appointment) CreationMessage {
	return CreationMessage{
		AppointmentID: a.id.String(),
		InsuredID:     a.insuredID.String(),
		ScheduleID:    a.scheduleID,
		CountryISO:    a.country.String(),
		Status:        string(a.status),
		CreatedAt:     a.createdAt,
	}
}

// DecodeCreationMessage parses a bare creation message body.
func DecodeCreationMessage(body []byte) (CreationMessage, error) {
	var m CreationMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, newValidationError("body", fmt.Sprintf("invalid creation message: %v", err), "json")
	}
	return m, nil
}

// ParsedID returns the appointment id when it is a valid UUID.
func (m CreationMessage) ParsedID() (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(m.AppointmentID))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// Validate checks every field a country processor relies on.
func (m CreationMessage) Validate() error {
	if _, ok := m.ParsedID(); !ok {
		return newValidationError("appointmentId", "appointmentId must be a valid UUID", "uuid")
	}
	if _, err := NewInsuredID(m.InsuredID); err != nil {
		return err
	}
	if m.ScheduleID <= 0 {
		return newValidationError("scheduleId", "scheduleId must be a positive number", "positive_number")
	}
	if _, err := NewCountry(m.CountryISO); err != nil {
		return err
	}
	return nil
}

// CompletionEvent is the decoded detail of a completed or failed event.
type CompletionEvent struct {
	EventID       string    `json:"eventId"`
	OccurredOn    time.Time `json:"occurredOn"`
	AppointmentID string    `json:"appointmentId"`
	AggregateID   string    `json:"aggregateId,omitempty"`
	InsuredID     string    `json:"insuredId"`
	ScheduleID    int64     `json:"scheduleId"`
	CountryISO    string    `json:"countryISO"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
}

// DecodeCompletionEvent parses a bare completion event body.
func DecodeCompletionEvent(body []byte) (CompletionEvent, error) {
	var e CompletionEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, newValidationError("body", fmt.Sprintf("invalid completion event: %v", err), "json")
	}
	return e, nil
}

// TargetID resolves the appointment id, falling back to aggregateId.
func (e CompletionEvent) TargetID() (uuid.UUID, error) {
	raw := strings.TrimSpace(e.AppointmentID)
	if raw == "" {
		raw = strings.TrimSpace(e.AggregateID)
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, newValidationError("appointmentId", "appointmentId must be a valid UUID", "uuid")
	}
	return id, nil
}

// TargetStatus is the status the confirmation stage writes. Only completed
// and failed outcomes are accepted.
func (e CompletionEvent) TargetStatus() (Status, error) {
	s, err := ParseStatus(e.Status)
	if err != nil || (s != StatusCompleted && s != StatusFailed) {
		return "", newValidationError("status",
			fmt.Sprintf("completion status %q is not completed or failed", e.Status), "completion_status")
	}
	return s, nil
}
