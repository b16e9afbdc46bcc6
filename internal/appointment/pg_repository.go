package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgPool is the subset of *pgxpool.Pool the country store uses.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PgCountryStore is the country-local copy of appointments in PostgreSQL.
// There is one store, and one database, per country.
type PgCountryStore struct {
	pool    pgPool
	country Country
}

var _ CountryStore = (*PgCountryStore)(nil)

func NewPgCountryStore(pool pgPool, country Country) *PgCountryStore {
	if pool == nil {
		panic("appointment: pgx pool required")
	}
	return &PgCountryStore{pool: pool, country: country}
}

func (r *PgCountryStore) service() string {
	return "PostgreSQL-" + r.country.String()
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var rec Record
	var status string

	err := row.Scan(
		&rec.ID,
		&rec.InsuredID,
		&rec.ScheduleID,
		&rec.Country,
		&status,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	rec.Status = Status(status)
	return Rehydrate(rec)
}

// Save upserts by id. A redelivered message rewrites status, and updated_at
// only moves forward.
func (r *PgCountryStore) Save(ctx context.Context, a *Appointment) error {
	if a.Country() != r.country {
		return &BusinessRuleError{
			Rule:    "CountryMismatch",
			Message: fmt.Sprintf("appointment %s belongs to %s, store holds %s", a.ID(), a.Country(), r.country),
			Cause:   ErrCountryMismatch,
		}
	}

	const q = `
		INSERT INTO appointments (id, insured_id, schedule_id, country_iso, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    updated_at = GREATEST(appointments.updated_at, EXCLUDED.updated_at)
	`
	_, err := r.pool.Exec(ctx, q,
		a.ID(),
		a.InsuredID().String(),
		a.ScheduleID(),
		a.Country().String(),
		string(a.Status()),
		a.CreatedAt(),
		a.UpdatedAt(),
	)
	if err != nil {
		return Infra(r.service(), "upsert appointment", err)
	}
	return nil
}

func (r *PgCountryStore) FindByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	const q = `
		SELECT id, insured_id, schedule_id, country_iso, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`
	a, err := scanAppointment(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, Infra(r.service(), "find appointment", err)
	}
	return a, nil
}

func (r *PgCountryStore) FindByInsuredID(ctx context.Context, insuredID InsuredID) ([]*Appointment, error) {
	const q = `
		SELECT id, insured_id, schedule_id, country_iso, status, created_at, updated_at
		FROM appointments
		WHERE insured_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, q, insuredID.String())
	if err != nil {
		return nil, Infra(r.service(), "list appointments", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, Infra(r.service(), "scan appointment", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, Infra(r.service(), "iterate appointments", err)
	}
	return out, nil
}

func (r *PgCountryStore) HealthCheck(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return Infra(r.service(), "ping", err)
	}
	return nil
}

func (r *PgCountryStore) Disconnect() {
	r.pool.Close()
}
