package appointment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/appointment/appointmenttest"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

func creationMessage(country string) appointment.CreationMessage {
	return appointment.CreationMessage{
		AppointmentID: uuid.NewString(),
		InsuredID:     "00001",
		ScheduleID:    100,
		CountryISO:    country,
		Status:        "pending",
		CreatedAt:     time.Now().UTC().Add(-time.Second),
	}
}

func newProcessor(country appointment.Country) (*appointment.CountryProcessor, *appointmenttest.CountryStore, *appointmenttest.EventBus) {
	store := appointmenttest.NewCountryStore()
	bus := &appointmenttest.EventBus{}
	return appointment.NewCountryProcessor(country, store, bus, logging.Discard(), nil), store, bus
}

func TestProcessPersistsAndEmitsCompleted(t *testing.T) {
	p, store, bus := newProcessor(appointment.CountryPE)
	msg := creationMessage("PE")

	require.NoError(t, p.Process(context.Background(), msg))

	id := uuid.MustParse(msg.AppointmentID)
	rec, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, appointment.StatusCompleted, rec.Status)
	assert.Equal(t, "00001", rec.InsuredID)
	assert.False(t, rec.UpdatedAt.Before(rec.CreatedAt))

	require.Equal(t, []appointment.EventKind{appointment.EventCompleted}, bus.Kinds())
	ce := bus.Completions()[0]
	assert.Equal(t, msg.AppointmentID, ce.AppointmentID)
	assert.Equal(t, "completed", ce.Status)
	assert.Equal(t, int64(100), ce.ScheduleID)
	assert.Equal(t, "PE", ce.CountryISO)
}

func TestProcessTwiceIsIdempotent(t *testing.T) {
	p, store, bus := newProcessor(appointment.CountryCL)
	msg := creationMessage("CL")
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, msg))
	first, _ := store.Get(uuid.MustParse(msg.AppointmentID))
	require.NoError(t, p.Process(ctx, msg))
	second, _ := store.Get(uuid.MustParse(msg.AppointmentID))

	assert.Equal(t, 1, store.Rows())
	assert.Equal(t, 2, store.Writes)
	assert.Equal(t, appointment.StatusCompleted, second.Status)
	assert.False(t, second.UpdatedAt.Before(first.UpdatedAt), "updatedAt never regresses")
	assert.Len(t, bus.Events, 2, "the completion event is emitted once per delivery")
}

func TestProcessCountryMismatch(t *testing.T) {
	p, store, bus := newProcessor(appointment.CountryPE)

	err := p.Process(context.Background(), creationMessage("CL"))

	assert.ErrorIs(t, err, appointment.ErrCountryMismatch)
	var br *appointment.BusinessRuleError
	require.True(t, errors.As(err, &br))
	assert.Equal(t, "CountryMismatch", br.Rule)
	assert.Zero(t, store.Rows())
	assert.Empty(t, bus.Events)
}

func TestProcessStoreFailureIsRetryable(t *testing.T) {
	p, store, bus := newProcessor(appointment.CountryPE)
	store.Err = errors.New("too many connections")

	err := p.Process(context.Background(), creationMessage("PE"))

	var ie *appointment.InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.False(t, appointment.IsPermanent(err))
	assert.Empty(t, bus.Events)
}

func TestProcessBusFailureIsRetryable(t *testing.T) {
	p, store, bus := newProcessor(appointment.CountryPE)
	bus.Err = errors.New("eventbridge throttled")

	err := p.Process(context.Background(), creationMessage("PE"))

	var ie *appointment.InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "EventBridge", ie.Service)
	assert.Equal(t, 1, store.Rows(), "redelivery rewrites the same row")
}

func TestProcessMalformedPayloadPublishesFailed(t *testing.T) {
	p, store, bus := newProcessor(appointment.CountryPE)
	msg := creationMessage("PE")
	msg.InsuredID = "12"

	err := p.Process(context.Background(), msg)

	assert.True(t, appointment.IsPermanent(err))
	assert.Zero(t, store.Rows())
	require.Equal(t, []appointment.EventKind{appointment.EventFailed}, bus.Kinds())
	ce := bus.Completions()[0]
	assert.Equal(t, msg.AppointmentID, ce.AppointmentID)
	assert.Equal(t, "failed", ce.Status)
	assert.NotEmpty(t, ce.Error)
}

func TestProcessMalformedPayloadWithoutID(t *testing.T) {
	p, _, bus := newProcessor(appointment.CountryPE)
	msg := creationMessage("PE")
	msg.AppointmentID = ""

	err := p.Process(context.Background(), msg)

	assert.True(t, appointment.IsPermanent(err))
	assert.Empty(t, bus.Events)
}
