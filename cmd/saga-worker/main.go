package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/awsclient"
	"github.com/hackgods/appointment-routing-saga/internal/bootstrap"
	"github.com/hackgods/appointment-routing-saga/internal/config"
	"github.com/hackgods/appointment-routing-saga/internal/consumer"
	"github.com/hackgods/appointment-routing-saga/internal/db"
	"github.com/hackgods/appointment-routing-saga/internal/messaging"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/internal/worker"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// saga-worker runs the asynchronous stages as long-lived pollers: one per
// country queue and one for the confirmation queue.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("saga-worker starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(config.RoleWorker); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "saga-worker", "env", cfg.Env)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsclient.LoadAWSConfig(rootCtx, cfg)
	if err != nil {
		log.Fatalf("aws config error: %v", err)
	}
	clients := awsclient.NewClients(awsCfg)
	m := metrics.NewSagaMetrics(nil)

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	stores, err := db.ConnectCountryStores(pgCtx, cfg.PostgresDSNs, db.PoolOptions{})
	cancelPg()
	if err != nil {
		log.Fatalf("postgres connection error: %v", err)
	}
	defer func() {
		for _, s := range stores {
			s.Disconnect()
		}
	}()
	logger.Info("connected to country stores", "count", len(stores))

	bus := bootstrap.EventBus(cfg, clients, logger, m)
	dlq := bootstrap.DeadLetterQueue(cfg, clients)
	opts := bootstrap.ConsumerOptions(cfg)
	pollCfg := func(name string) worker.Config {
		return worker.Config{
			Name:            name,
			BatchSize:       cfg.PollBatchSize,
			WaitSeconds:     cfg.PollWaitSeconds,
			PollInterval:    cfg.PollInterval,
			MaxReceiveCount: cfg.MaxReceiveCount,
		}
	}

	var pollers []*worker.Poller
	for _, country := range appointment.SupportedCountries() {
		processor := appointment.NewCountryProcessor(country, stores[country], bus, logger, m)
		queue := messaging.NewSQSQueue(clients.SQS, cfg.QueueURLs[country])
		pollers = append(pollers, worker.NewPoller(
			queue,
			consumer.NewProcessorHandler(processor, opts, logger),
			dlq,
			pollCfg("appointments-"+country.String()),
			logger,
			m,
		))
	}

	confirmer := appointment.NewConfirmer(bootstrap.PrimaryStore(cfg, clients, logger), cfg.ConfirmGuardTerminal, logger, m)
	pollers = append(pollers, worker.NewPoller(
		messaging.NewSQSQueue(clients.SQS, cfg.ConfirmationQueueURL),
		consumer.NewConfirmationHandler(confirmer, opts, logger),
		dlq,
		pollCfg("appointments-confirmation"),
		logger,
		m,
	))

	g, ctx := errgroup.WithContext(rootCtx)
	for _, p := range pollers {
		g.Go(func() error { return p.Run(ctx) })
	}
	if err := g.Wait(); err != nil {
		log.Printf("saga-worker stopped with error: %v", err)
	}
	log.Println("saga-worker stopped")
}
