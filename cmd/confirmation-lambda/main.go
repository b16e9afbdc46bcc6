package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/awsclient"
	"github.com/hackgods/appointment-routing-saga/internal/bootstrap"
	"github.com/hackgods/appointment-routing-saga/internal/config"
	"github.com/hackgods/appointment-routing-saga/internal/consumer"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(config.RoleConfirmation); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "confirmation")

	awsCfg, err := awsclient.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		log.Fatalf("aws config error: %v", err)
	}
	clients := awsclient.NewClients(awsCfg)

	confirmer := appointment.NewConfirmer(
		bootstrap.PrimaryStore(cfg, clients, logger),
		cfg.ConfirmGuardTerminal,
		logger,
		metrics.NewSagaMetrics(nil),
	)
	handler := consumer.NewConfirmationHandler(confirmer, bootstrap.ConsumerOptions(cfg), logger)

	lambda.Start(consumer.SQSHandler(handler))
}
