package appointment

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Appointment is the aggregate root. Identity fields are immutable and the
// status only moves through the transition table in status.go.
type Appointment struct {
	id         uuid.UUID
	insuredID  InsuredID
	scheduleID int64
	country    Country
	status     Status
	createdAt  time.Time
	updatedAt  time.Time

	events []DomainEvent
}

// Record is the flat persisted shape of an appointment.
type Record struct {
	ID         uuid.UUID
	InsuredID  string
	ScheduleID int64
	Country    string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func now() time.Time {
	return time.Now().UTC()
}

// New validates the request fields and builds a PENDING appointment with a
// fresh id.
func New(insuredID string, scheduleID int64, country string) (*Appointment, error) {
	if scheduleID <= 0 {
		return nil, newValidationError("scheduleId", "scheduleId must be a positive number", "positive_number")
	}
	iid, err := NewInsuredID(insuredID)
	if err != nil {
		return nil, err
	}
	c, err := NewCountry(country)
	if err != nil {
		return nil, err
	}

	ts := now()
	a := &Appointment{
		id:         uuid.New(),
		insuredID:  iid,
		scheduleID: scheduleID,
		country:    c,
		status:     StatusPending,
		createdAt:  ts,
		updatedAt:  ts,
	}
	a.record(EventCreated, map[string]any{
		"insuredId":  a.insuredID.String(),
		"scheduleId": a.scheduleID,
		"countryISO": a.country.String(),
		"status":     string(StatusPending),
	})
	return a, nil
}

// Rehydrate rebuilds an appointment from trusted persisted data. Values are
// taken as stored; only the status is checked against the known set.
func Rehydrate(r Record) (*Appointment, error) {
	status, err := ParseStatus(string(r.Status))
	if err != nil {
		return nil, err
	}
	if r.ID == uuid.Nil {
		return nil, fmt.Errorf("rehydrate appointment: empty id")
	}
	updated := r.UpdatedAt
	if updated.Before(r.CreatedAt) {
		updated = r.CreatedAt
	}
	return &Appointment{
		id:         r.ID,
		insuredID:  InsuredID(r.InsuredID),
		scheduleID: r.ScheduleID,
		country:    Country(r.Country),
		status:     status,
		createdAt:  r.CreatedAt,
		updatedAt:  updated,
	}, nil
}

func (a *Appointment) ID() uuid.UUID        { return a.id }
func (a *Appointment) InsuredID() InsuredID { return a.insuredID }
func (a *Appointment) ScheduleID() int64    { return a.scheduleID }
func (a *Appointment) Country() Country     { return a.country }
func (a *Appointment) Status() Status       { return a.status }
func (a *Appointment) CreatedAt() time.Time { return a.createdAt }
func (a *Appointment) UpdatedAt() time.Time { return a.updatedAt }

// Record returns the persisted shape.
func (a *Appointment) Record() Record {
	return Record{
		ID:         a.id,
		InsuredID:  a.insuredID.String(),
		ScheduleID: a.scheduleID,
		Country:    a.country.String(),
		Status:     a.status,
		CreatedAt:  a.createdAt,
		UpdatedAt:  a.updatedAt,
	}
}

func (a *Appointment) MarkProcessing() error {
	return a.transition(StatusProcessing, EventProcessing, map[string]any{
		"countryISO": a.country.String(),
	})
}

func (a *Appointment) MarkCompleted() error {
	return a.transition(StatusCompleted, EventCompleted, a.identityPayload())
}

func (a *Appointment) MarkFailed(reason string) error {
	payload := a.identityPayload()
	payload["error"] = reason
	return a.transition(StatusFailed, EventFailed, payload)
}

func (a *Appointment) Cancel(reason string) error {
	return a.transition(StatusCancelled, EventCancelled, map[string]any{"reason": reason})
}

// Retry moves a FAILED appointment back to PENDING. It records a fresh
// created event since the appointment re-enters the pipeline from the start.
func (a *Appointment) Retry() error {
	payload := a.identityPayload()
	payload["retry"] = true
	return a.transition(StatusPending, EventCreated, payload)
}

// PullEvents returns and clears the events recorded since the last pull.
func (a *Appointment) PullEvents() []DomainEvent {
	out := a.events
	a.events = nil
	return out
}

func (a *Appointment) transition(to Status, kind EventKind, payload map[string]any) error {
	next, err := a.status.TransitionTo(to)
	if err != nil {
		return err
	}
	a.status = next
	ts := now()
	if ts.Before(a.createdAt) {
		ts = a.createdAt
	}
	a.updatedAt = ts
	payload["status"] = string(next)
	a.record(kind, payload)
	return nil
}

func (a *Appointment) identityPayload() map[string]any {
	return map[string]any{
		"insuredId":  a.insuredID.String(),
		"scheduleId": a.scheduleID,
		"countryISO": a.country.String(),
	}
}

func (a *Appointment) record(kind EventKind, payload map[string]any) {
	a.events = append(a.events, newDomainEvent(kind, a.id, payload))
}

func (a *Appointment) String() string {
	return fmt.Sprintf("Appointment[%s] insured=%s country=%s status=%s", a.id, a.insuredID, a.country, a.status)
}

func sortNewestFirst(list []*Appointment) {
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].createdAt.After(list[j].createdAt)
	})
}
