package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/awsclient"
	"github.com/hackgods/appointment-routing-saga/internal/bootstrap"
	"github.com/hackgods/appointment-routing-saga/internal/config"
	"github.com/hackgods/appointment-routing-saga/internal/consumer"
	"github.com/hackgods/appointment-routing-saga/internal/db"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// One deployment per country, selected by COUNTRY_ISO. The pool and clients
// live across invocations of a warm container.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(config.RoleProcessor); err != nil {
		log.Fatalf("config error: %v", err)
	}
	country, err := appointment.NewCountry(cfg.CountryISO)
	if err != nil {
		log.Fatalf("invalid COUNTRY_ISO: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "country-processor", "country", country.String())
	ctx := context.Background()

	awsCfg, err := awsclient.LoadAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("aws config error: %v", err)
	}
	clients := awsclient.NewClients(awsCfg)
	m := metrics.NewSagaMetrics(nil)

	pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSNs[country], db.PoolOptions{MaxConns: 2})
	cancel()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	store := appointment.NewPgCountryStore(pool, country)

	processor := appointment.NewCountryProcessor(country, store, bootstrap.EventBus(cfg, clients, logger, m), logger, m)
	handler := consumer.NewProcessorHandler(processor, bootstrap.ConsumerOptions(cfg), logger)

	lambda.Start(consumer.SQSHandler(handler))
}
