package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var countryColumns = []string{"id", "insured_id", "schedule_id", "country_iso", "status", "created_at", "updated_at"}

func processed(t *testing.T, country string) *Appointment {
	t.Helper()
	created := time.Now().UTC().Add(-time.Minute)
	a, err := Rehydrate(Record{
		ID:         uuid.New(),
		InsuredID:  "00001",
		ScheduleID: 100,
		Country:    country,
		Status:     StatusProcessing,
		CreatedAt:  created,
		UpdatedAt:  created,
	})
	require.NoError(t, err)
	require.NoError(t, a.MarkCompleted())
	return a
}

func TestPgCountryStoreSaveUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgCountryStore(mock, CountryPE)
	a := processed(t, "PE")

	for i := 0; i < 2; i++ {
		mock.ExpectExec(`(?s)INSERT INTO appointments .*\s*ON CONFLICT \(id\) DO UPDATE\s+SET status = EXCLUDED.status,\s+updated_at = GREATEST\(appointments.updated_at, EXCLUDED.updated_at\)`).
			WithArgs(a.ID(), "00001", int64(100), "PE", "completed", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	require.NoError(t, store.Save(context.Background(), a))
	require.NoError(t, store.Save(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountryStoreRejectsOtherCountry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPgCountryStore(mock, CountryPE)
	err = store.Save(context.Background(), processed(t, "CL"))

	assert.ErrorIs(t, err, ErrCountryMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountryStoreSaveFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO appointments`).WillReturnError(errors.New("connection reset"))

	store := NewPgCountryStore(mock, CountryCL)
	err = store.Save(context.Background(), processed(t, "CL"))

	var ie *InfrastructureError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "PostgreSQL-CL", ie.Service)
}

func TestPgCountryStoreFindByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, insured_id, schedule_id, country_iso, status, created_at, updated_at\s+FROM appointments\s+WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(countryColumns).AddRow(id, "00007", int64(3), "PE", "completed", ts, ts))

	store := NewPgCountryStore(mock, CountryPE)
	a, err := store.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, InsuredID("00007"), a.InsuredID())
	assert.Equal(t, StatusCompleted, a.Status())

	missing := uuid.New()
	mock.ExpectQuery(`FROM appointments`).
		WithArgs(missing).
		WillReturnRows(pgxmock.NewRows(countryColumns))
	_, err = store.FindByID(context.Background(), missing)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountryStoreFindByInsuredID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ts := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE insured_id = \$1\s+ORDER BY created_at DESC`).
		WithArgs("00001").
		WillReturnRows(pgxmock.NewRows(countryColumns).
			AddRow(uuid.New(), "00001", int64(2), "CL", "completed", ts.Add(time.Hour), ts.Add(time.Hour)).
			AddRow(uuid.New(), "00001", int64(1), "CL", "completed", ts, ts))

	store := NewPgCountryStore(mock, CountryCL)
	list, err := store.FindByInsuredID(context.Background(), "00001")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].ScheduleID())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCountryStoreHealthAndDisconnect(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("down"))
	mock.ExpectClose()

	store := NewPgCountryStore(mock, CountryPE)
	assert.NoError(t, store.HealthCheck(context.Background()))
	assert.Error(t, store.HealthCheck(context.Background()))
	store.Disconnect()

	require.NoError(t, mock.ExpectationsWereMet())
}
