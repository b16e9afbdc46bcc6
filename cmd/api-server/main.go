package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/appointment-routing-saga/internal/api"
	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/awsclient"
	"github.com/hackgods/appointment-routing-saga/internal/bootstrap"
	"github.com/hackgods/appointment-routing-saga/internal/config"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	redisclient "github.com/hackgods/appointment-routing-saga/internal/redis"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

const version = "1.0.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if err := cfg.Validate(config.RoleAPI); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.New(cfg.LogLevel).With("service", "api-server", "env", cfg.Env)
	logger.Info("configuration loaded", "http_port", cfg.HTTPPort, "router_mode", cfg.RouterMode)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsclient.LoadAWSConfig(rootCtx, cfg)
	if err != nil {
		log.Fatalf("aws config error: %v", err)
	}
	clients := awsclient.NewClients(awsCfg)
	m := metrics.NewSagaMetrics(nil)

	deps := []api.Dependency{bootstrap.DynamoDependency(clients.DynamoDB, cfg.AppointmentsTable)}

	// Redis only backs Idempotency-Key handling; the API runs without it.
	var idem api.IdempotencyStore
	rdb, err := redisclient.NewRedisClient(rootCtx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		logger.Warn("redis unavailable, idempotency keys disabled", "error", err)
	} else {
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error("error closing redis", "error", err)
			}
		}()
		idem = redisclient.NewIdempotencyStore(rdb, cfg.IdempotencyTTL)
		deps = append(deps, api.Dependency{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		logger.Info("connected to Redis")
	}

	store := bootstrap.PrimaryStore(cfg, clients, logger)
	router := bootstrap.Router(cfg, clients, logger, m)
	svc := appointment.NewService(store, router, logger, m)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewRouter(api.RouterConfig{
			Service:      svc,
			Idempotency:  idem,
			Dependencies: deps,
			Logger:       logger,
			Metrics:      m,
			Env:          cfg.Env,
			Version:      version,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	logger.Info("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
