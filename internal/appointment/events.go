package appointment

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventCreated    EventKind = "created"
	EventProcessing EventKind = "processing"
	EventCompleted  EventKind = "completed"
	EventFailed     EventKind = "failed"
	EventCancelled  EventKind = "cancelled"
)

// DomainEvent is every fact the aggregate records. Kind selects the variant
// and Payload carries its fields.
type DomainEvent struct {
	ID          uuid.UUID
	Kind        EventKind
	AggregateID uuid.UUID
	OccurredOn  time.Time
	Payload     map[string]any
}

func newDomainEvent(kind EventKind, aggregateID uuid.UUID, payload map[string]any) DomainEvent {
	if payload == nil {
		payload = map[string]any{}
	}
	return DomainEvent{
		ID:          uuid.New(),
		Kind:        kind,
		AggregateID: aggregateID,
		OccurredOn:  now(),
		Payload:     payload,
	}
}

// NewCompletedEvent is emitted by a country processor after its store write.
func NewCompletedEvent(a *Appointment) DomainEvent {
	p := a.identityPayload()
	p["status"] = string(StatusCompleted)
	return newDomainEvent(EventCompleted, a.id, p)
}

// NewFailedEvent reports an appointment that a country processor could not
// handle. Identity fields are included only when known.
func NewFailedEvent(id uuid.UUID, msg CreationMessage, reason string) DomainEvent {
	p := map[string]any{
		"status": string(StatusFailed),
		"error":  reason,
	}
	if msg.InsuredID != "" {
		p["insuredId"] = msg.InsuredID
	}
	if msg.ScheduleID != 0 {
		p["scheduleId"] = msg.ScheduleID
	}
	if msg.CountryISO != "" {
		p["countryISO"] = msg.CountryISO
	}
	return newDomainEvent(EventFailed, id, p)
}

// DetailType is the routing name on the event bus, e.g. "appointment.completed".
func (e DomainEvent) DetailType() string {
	return "appointment." + string(e.Kind)
}

// Detail is the flat wire body: envelope fields plus the payload.
func (e DomainEvent) Detail() map[string]any {
	out := make(map[string]any, len(e.Payload)+4)
	for k, v := range e.Payload {
		out[k] = v
	}
	out["eventId"] = e.ID.String()
	out["occurredOn"] = e.OccurredOn.Format(time.RFC3339Nano)
	out["aggregateId"] = e.AggregateID.String()
	out["appointmentId"] = e.AggregateID.String()
	return out
}
