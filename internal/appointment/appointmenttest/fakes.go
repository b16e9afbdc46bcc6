// Package appointmenttest provides in-memory collaborators for tests of the
// appointment stages and their entry points.
package appointmenttest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
)

// PrimaryStore is an in-memory appointment.PrimaryStore that also supports
// guarded updates.
type PrimaryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]appointment.Record

	// Err, when set, is returned by every call.
	Err     error
	Updates int
}

func NewPrimaryStore() *PrimaryStore {
	return &PrimaryStore{records: map[uuid.UUID]appointment.Record{}}
}

func (s *PrimaryStore) Save(_ context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.records[a.ID()] = a.Record()
	return nil
}

func (s *PrimaryStore) FindByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	rec, ok := s.records[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return appointment.Rehydrate(rec)
}

func (s *PrimaryStore) FindByInsuredID(_ context.Context, insuredID appointment.InsuredID) ([]*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	var out []*appointment.Appointment
	for _, rec := range s.records {
		if rec.InsuredID != insuredID.String() {
			continue
		}
		a, err := appointment.Rehydrate(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *PrimaryStore) UpdateStatus(_ context.Context, id uuid.UUID, status appointment.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	rec, ok := s.records[id]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	s.set(rec, status)
	return nil
}

func (s *PrimaryStore) UpdateStatusFrom(_ context.Context, id uuid.UUID, status appointment.Status, allowedFrom []appointment.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	rec, ok := s.records[id]
	if !ok {
		return appointment.ErrAppointmentNotFound
	}
	for _, from := range allowedFrom {
		if rec.Status == from {
			s.set(rec, status)
			return nil
		}
	}
	return appointment.ErrStaleUpdate
}

func (s *PrimaryStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.records, id)
	return nil
}

func (s *PrimaryStore) set(rec appointment.Record, status appointment.Status) {
	rec.Status = status
	if ts := time.Now().UTC(); ts.After(rec.UpdatedAt) {
		rec.UpdatedAt = ts
	}
	s.records[rec.ID] = rec
	s.Updates++
}

// Get returns the stored record for assertions.
func (s *PrimaryStore) Get(id uuid.UUID) (appointment.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

func (s *PrimaryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// BlindPrimaryStore hides the guarded update so callers fall back to the
// blind set.
type BlindPrimaryStore struct {
	*PrimaryStore
}

func (BlindPrimaryStore) UpdateStatusFrom() {}

// CountryStore is an in-memory appointment.CountryStore with the same upsert
// semantics as the PostgreSQL store.
type CountryStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]appointment.Record
	Err     error
	Writes  int
	Closed  bool
	Healthy error
}

func NewCountryStore() *CountryStore {
	return &CountryStore{rows: map[uuid.UUID]appointment.Record{}}
}

func (s *CountryStore) Save(_ context.Context, a *appointment.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Writes++
	rec := a.Record()
	if old, ok := s.rows[rec.ID]; ok {
		old.Status = rec.Status
		if rec.UpdatedAt.After(old.UpdatedAt) {
			old.UpdatedAt = rec.UpdatedAt
		}
		s.rows[rec.ID] = old
		return nil
	}
	s.rows[rec.ID] = rec
	return nil
}

func (s *CountryStore) FindByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	return appointment.Rehydrate(rec)
}

func (s *CountryStore) FindByInsuredID(_ context.Context, insuredID appointment.InsuredID) ([]*appointment.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*appointment.Appointment
	for _, rec := range s.rows {
		if rec.InsuredID == insuredID.String() {
			a, err := appointment.Rehydrate(rec)
			if err != nil {
				return nil, err
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *CountryStore) HealthCheck(context.Context) error { return s.Healthy }

func (s *CountryStore) Disconnect() {
	s.mu.Lock()
	s.Closed = true
	s.mu.Unlock()
}

// Rows returns the number of distinct appointments stored.
func (s *CountryStore) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *CountryStore) Get(id uuid.UUID) (appointment.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	return rec, ok
}

// Router records creation messages.
type Router struct {
	mu       sync.Mutex
	Messages []appointment.CreationMessage
	Err      error
}

func (r *Router) Publish(_ context.Context, msg appointment.CreationMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

func (r *Router) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Messages)
}

// EventBus records published domain events.
type EventBus struct {
	mu     sync.Mutex
	Events []appointment.DomainEvent
	Err    error
}

func (b *EventBus) Publish(_ context.Context, ev appointment.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Err != nil {
		return b.Err
	}
	b.Events = append(b.Events, ev)
	return nil
}

func (b *EventBus) PublishBatch(ctx context.Context, evs []appointment.DomainEvent) error {
	for _, ev := range evs {
		if err := b.Publish(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Kinds lists the kinds of the recorded events in order.
func (b *EventBus) Kinds() []appointment.EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]appointment.EventKind, 0, len(b.Events))
	for _, ev := range b.Events {
		out = append(out, ev.Kind)
	}
	return out
}

// Completions converts the recorded events into the completion events a
// confirmation stage would receive.
func (b *EventBus) Completions() []appointment.CompletionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]appointment.CompletionEvent, 0, len(b.Events))
	for _, ev := range b.Events {
		d := ev.Detail()
		ce := appointment.CompletionEvent{
			EventID:       ev.ID.String(),
			OccurredOn:    ev.OccurredOn,
			AppointmentID: ev.AggregateID.String(),
			AggregateID:   ev.AggregateID.String(),
		}
		ce.InsuredID, _ = d["insuredId"].(string)
		ce.ScheduleID, _ = d["scheduleId"].(int64)
		ce.CountryISO, _ = d["countryISO"].(string)
		ce.Status, _ = d["status"].(string)
		ce.Error, _ = d["error"].(string)
		out = append(out, ce)
	}
	return out
}
