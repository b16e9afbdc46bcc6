package appointment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/appointment/appointmenttest"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

type serviceFixture struct {
	store  *appointmenttest.PrimaryStore
	router *appointmenttest.Router
	svc    *appointment.Service
}

func newServiceFixture() serviceFixture {
	store := appointmenttest.NewPrimaryStore()
	router := &appointmenttest.Router{}
	return serviceFixture{
		store:  store,
		router: router,
		svc:    appointment.NewService(store, router, logging.Discard(), nil),
	}
}

func TestCreateAppointment(t *testing.T) {
	f := newServiceFixture()

	res, err := f.svc.CreateAppointment(context.Background(), appointment.CreateRequest{
		InsuredID: "00001", ScheduleID: 100, Country: "PE",
	})
	require.NoError(t, err)
	assert.Equal(t, "Appointment scheduling is in process", res.Message)

	rec, ok := f.store.Get(res.AppointmentID)
	require.True(t, ok)
	assert.Equal(t, appointment.StatusPending, rec.Status)
	assert.Equal(t, "00001", rec.InsuredID)

	require.Equal(t, 1, f.router.Count())
	msg := f.router.Messages[0]
	assert.Equal(t, res.AppointmentID.String(), msg.AppointmentID)
	assert.Equal(t, "PE", msg.CountryISO)
	assert.Equal(t, "pending", msg.Status)
}

func TestCreateAppointmentValidationWritesNothing(t *testing.T) {
	tests := []struct {
		name  string
		req   appointment.CreateRequest
		field string
	}{
		{"short insured id", appointment.CreateRequest{InsuredID: "123", ScheduleID: 1, Country: "PE"}, "insuredId"},
		{"unsupported country", appointment.CreateRequest{InsuredID: "00001", ScheduleID: 1, Country: "US"}, "countryISO"},
		{"missing schedule", appointment.CreateRequest{InsuredID: "00001", Country: "CL"}, "scheduleId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			res, err := f.svc.CreateAppointment(context.Background(), tt.req)
			assert.Nil(t, res)

			var ve *appointment.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.Zero(t, f.store.Len())
			assert.Zero(t, f.router.Count())
		})
	}
}

func TestCreateAppointmentRoutingFailureLeavesPending(t *testing.T) {
	f := newServiceFixture()
	f.router.Err = errors.New("sns unavailable")

	res, err := f.svc.CreateAppointment(context.Background(), appointment.CreateRequest{
		InsuredID: "00001", ScheduleID: 5, Country: "CL",
	})
	assert.Nil(t, res)

	var ie *appointment.InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "Router", ie.Service)
	assert.Equal(t, 1, f.store.Len(), "persisted record stays as a detectable stuck PENDING")
}

func TestCreateAppointmentStoreFailure(t *testing.T) {
	f := newServiceFixture()
	f.store.Err = &appointment.InfrastructureError{Service: "DynamoDB", Op: "put item", Err: errors.New("timeout")}

	_, err := f.svc.CreateAppointment(context.Background(), appointment.CreateRequest{
		InsuredID: "00001", ScheduleID: 5, Country: "CL",
	})
	var ie *appointment.InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "DynamoDB", ie.Service)
	assert.Zero(t, f.router.Count())
}

func TestGetTraceUnknownID(t *testing.T) {
	f := newServiceFixture()
	id := uuid.New()

	_, err := f.svc.GetTrace(context.Background(), id)
	var nf *appointment.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, id.String(), nf.ResourceID)
	assert.Equal(t, "Appointment", nf.ResourceType)
}

func TestListByInsuredID(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	for i := int64(1); i <= 3; i++ {
		_, err := f.svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "00009", ScheduleID: i, Country: "PE"})
		require.NoError(t, err)
	}
	_, err := f.svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "00010", ScheduleID: 1, Country: "PE"})
	require.NoError(t, err)

	list, err := f.svc.ListByInsuredID(ctx, " 00009 ")
	require.NoError(t, err)
	assert.Len(t, list, 3)
	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt().After(list[i-1].CreatedAt()))
	}

	_, err = f.svc.ListByInsuredID(ctx, "9")
	assert.True(t, appointment.IsPermanent(err))
}

func TestCancelAppointment(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "00001", ScheduleID: 1, Country: "PE"})
	require.NoError(t, err)

	a, err := f.svc.CancelAppointment(ctx, res.AppointmentID, "patient request")
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, a.Status())

	rec, _ := f.store.Get(res.AppointmentID)
	assert.Equal(t, appointment.StatusCancelled, rec.Status)

	_, err = f.svc.CancelAppointment(ctx, res.AppointmentID, "again")
	assert.ErrorIs(t, err, appointment.ErrInvalidStateTransition)
}

func TestRetryAppointment(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "00001", ScheduleID: 1, Country: "CL"})
	require.NoError(t, err)

	_, err = f.svc.RetryAppointment(ctx, res.AppointmentID)
	assert.ErrorIs(t, err, appointment.ErrInvalidStateTransition, "pending cannot be retried")

	require.NoError(t, f.store.UpdateStatus(ctx, res.AppointmentID, appointment.StatusFailed))

	a, err := f.svc.RetryAppointment(ctx, res.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, a.Status())
	assert.Equal(t, 2, f.router.Count(), "retry routes a fresh creation message")

	rec, _ := f.store.Get(res.AppointmentID)
	assert.Equal(t, appointment.StatusPending, rec.Status)
}

func TestCancelLosesRaceAgainstConcurrentUpdate(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()
	res, err := f.svc.CreateAppointment(ctx, appointment.CreateRequest{InsuredID: "00001", ScheduleID: 1, Country: "CL"})
	require.NoError(t, err)

	stale := &staleOnUpdate{PrimaryStore: f.store}
	svc := appointment.NewService(stale, f.router, logging.Discard(), nil)

	_, err = svc.CancelAppointment(ctx, res.AppointmentID, "late")
	var br *appointment.BusinessRuleError
	require.True(t, errors.As(err, &br))
	assert.Equal(t, "InvalidStateTransition", br.Rule)
}

// staleOnUpdate simulates a status change between the read and the guarded
// write.
type staleOnUpdate struct {
	*appointmenttest.PrimaryStore
}

func (s *staleOnUpdate) UpdateStatusFrom(context.Context, uuid.UUID, appointment.Status, []appointment.Status) error {
	return appointment.ErrStaleUpdate
}
