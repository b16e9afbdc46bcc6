package api

import (
	"time"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
)

type CreateAppointmentRequest struct {
	InsuredID  string `json:"insuredId"`
	ScheduleID int64  `json:"scheduleId"`
	CountryISO string `json:"countryISO"`
}

type CreateAppointmentResponse struct {
	AppointmentID string `json:"appointmentId"`
	Message       string `json:"message"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	AppointmentID string    `json:"appointmentId"`
	InsuredID     string    `json:"insuredId"`
	ScheduleID    int64     `json:"scheduleId"`
	CountryISO    string    `json:"countryISO"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}

// ErrorResponse is the body of every non-2xx answer. Only the fields that
// belong to the error kind are set.
type ErrorResponse struct {
	StatusCode   int       `json:"statusCode"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Field        string    `json:"field,omitempty"`
	Constraints  []string  `json:"constraints,omitempty"`
	ResourceType string    `json:"resourceType,omitempty"`
	ResourceID   string    `json:"resourceId,omitempty"`
	RuleName     string    `json:"ruleName,omitempty"`
	Service      string    `json:"service,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		AppointmentID: a.ID().String(),
		InsuredID:     a.InsuredID().String(),
		ScheduleID:    a.ScheduleID(),
		CountryISO:    a.Country().String(),
		Status:        string(a.Status()),
		CreatedAt:     a.CreatedAt(),
		UpdatedAt:     a.UpdatedAt(),
	}
}
