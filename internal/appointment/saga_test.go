package appointment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/appointment/appointmenttest"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// TestSagaEndToEnd drives one appointment through every stage with the
// in-memory collaborators: create, route, process, confirm, trace.
func TestSagaEndToEnd(t *testing.T) {
	ctx := context.Background()
	primary := appointmenttest.NewPrimaryStore()
	router := &appointmenttest.Router{}
	bus := &appointmenttest.EventBus{}
	peStore := appointmenttest.NewCountryStore()

	svc := appointment.NewService(primary, router, logging.Discard(), nil)
	processor := appointment.NewCountryProcessor(appointment.CountryPE, peStore, bus, logging.Discard(), nil)
	confirmer := appointment.NewConfirmer(primary, false, logging.Discard(), nil)

	res, err := svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "00001", ScheduleID: 100, Country: "PE"})
	require.NoError(t, err)

	tr, err := svc.GetTrace(ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, tr.CurrentStatus)
	assert.Equal(t, 25, tr.CompletionPercentage)

	require.Equal(t, 1, router.Count())
	require.NoError(t, processor.Process(ctx, router.Messages[0]))

	completions := bus.Completions()
	require.Len(t, completions, 1)
	require.NoError(t, confirmer.Confirm(ctx, completions[0]))
	// Duplicate delivery from the event bus.
	require.NoError(t, confirmer.Confirm(ctx, completions[0]))

	tr, err = svc.GetTrace(ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, tr.CurrentStatus)
	assert.Equal(t, 100, tr.CompletionPercentage)
	assert.Equal(t, "00001", tr.InsuredID)

	countryCopy, ok := peStore.Get(res.AppointmentID)
	require.True(t, ok)
	assert.Equal(t, appointment.StatusCompleted, countryCopy.Status)
}

// TestSagaFailureThenRetry covers the failed path: a malformed routed
// message marks the appointment FAILED, and a retry routes it again.
func TestSagaFailureThenRetry(t *testing.T) {
	ctx := context.Background()
	primary := appointmenttest.NewPrimaryStore()
	router := &appointmenttest.Router{}
	bus := &appointmenttest.EventBus{}

	svc := appointment.NewService(primary, router, logging.Discard(), nil)
	processor := appointment.NewCountryProcessor(appointment.CountryCL, appointmenttest.NewCountryStore(), bus, logging.Discard(), nil)
	confirmer := appointment.NewConfirmer(primary, false, logging.Discard(), nil)

	res, err := svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "04321", ScheduleID: 9, Country: "cl"})
	require.NoError(t, err)

	broken := router.Messages[0]
	broken.ScheduleID = 0
	require.Error(t, processor.Process(ctx, broken))
	require.NoError(t, confirmer.Confirm(ctx, bus.Completions()[0]))

	tr, err := svc.GetTrace(ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusFailed, tr.CurrentStatus)

	_, err = svc.RetryAppointment(ctx, res.AppointmentID)
	require.NoError(t, err)
	require.Equal(t, 2, router.Count())
	require.NoError(t, processor.Process(ctx, router.Messages[1]))

	last := bus.Completions()[len(bus.Completions())-1]
	require.NoError(t, confirmer.Confirm(ctx, last))

	tr, err = svc.GetTrace(ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, tr.CurrentStatus)
}
