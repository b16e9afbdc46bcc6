package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
)

// PoolOptions sizes a country pool. Lambdas run one message batch at a time
// and keep the pool small; the API and worker use the defaults.
type PoolOptions struct {
	MaxConns int32
	MinConns int32
}

func (o PoolOptions) withDefaults() PoolOptions {
	if o.MaxConns <= 0 {
		o.MaxConns = 10
	}
	if o.MinConns < 0 || o.MinConns > o.MaxConns {
		o.MinConns = 1
	}
	return o
}

func ConnectPostgres(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	opts = opts.withDefaults()
	cfg.MaxConns = opts.MaxConns
	cfg.MinConns = opts.MinConns
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// ConnectCountryStores opens one pool per configured country and wraps each
// in a country store. On any failure the pools opened so far are closed.
func ConnectCountryStores(ctx context.Context, dsns map[appointment.Country]string, opts PoolOptions) (map[appointment.Country]*appointment.PgCountryStore, error) {
	stores := make(map[appointment.Country]*appointment.PgCountryStore, len(dsns))
	for _, country := range appointment.SupportedCountries() {
		dsn, ok := dsns[country]
		if !ok {
			continue
		}
		pool, err := ConnectPostgres(ctx, dsn, opts)
		if err != nil {
			for _, s := range stores {
				s.Disconnect()
			}
			return nil, fmt.Errorf("connect %s store: %w", country, err)
		}
		stores[country] = appointment.NewPgCountryStore(pool, country)
	}
	return stores, nil
}
