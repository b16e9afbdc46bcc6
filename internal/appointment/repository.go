package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	// ErrStaleUpdate is returned by a guarded status update when the stored
	// status is not one the caller allowed.
	ErrStaleUpdate = errors.New("appointment status changed concurrently")
)

// PrimaryStore is the durable source of truth for appointments.
type PrimaryStore interface {
	Save(ctx context.Context, a *Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindByInsuredID(ctx context.Context, insuredID InsuredID) ([]*Appointment, error)

	// UpdateStatus blind-sets the status and refreshes updatedAt. Returns
	// ErrAppointmentNotFound when the id is unknown.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GuardedStatusUpdater is implemented by primary stores that can refuse a
// status write unless the stored status is in allowedFrom.
type GuardedStatusUpdater interface {
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, status Status, allowedFrom []Status) error
}

// CountryStore holds the country-local copy of appointments for one country.
type CountryStore interface {
	// Save upserts by id. Redelivering the same appointment never creates a
	// second row and never moves updatedAt backwards.
	Save(ctx context.Context, a *Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindByInsuredID(ctx context.Context, insuredID InsuredID) ([]*Appointment, error)
	HealthCheck(ctx context.Context) error
	Disconnect()
}

// Router hands a creation message to exactly one country queue.
type Router interface {
	Publish(ctx context.Context, msg CreationMessage) error
}

// EventBus carries domain events to the confirmation stage.
type EventBus interface {
	Publish(ctx context.Context, ev DomainEvent) error
	PublishBatch(ctx context.Context, evs []DomainEvent) error
}
