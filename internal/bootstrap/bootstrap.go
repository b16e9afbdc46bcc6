// Package bootstrap assembles saga components from configuration so every
// binary wires them the same way.
package bootstrap

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/hackgods/appointment-routing-saga/internal/api"
	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/awsclient"
	"github.com/hackgods/appointment-routing-saga/internal/config"
	"github.com/hackgods/appointment-routing-saga/internal/consumer"
	"github.com/hackgods/appointment-routing-saga/internal/messaging"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

func PrimaryStore(cfg config.Config, clients awsclient.Clients, logger *logging.Logger) *appointment.DynamoPrimaryStore {
	return appointment.NewDynamoPrimaryStore(clients.DynamoDB, cfg.AppointmentsTable, cfg.InsuredIDIndex, logger)
}

func EventBus(cfg config.Config, clients awsclient.Clients, logger *logging.Logger, m *metrics.SagaMetrics) *messaging.EventBridgeBus {
	return messaging.NewEventBridgeBus(clients.EventBridge, cfg.EventBusName, cfg.EventSource, logger, m)
}

// Router picks SNS fan-out or in-process queue routing from ROUTER_MODE.
func Router(cfg config.Config, clients awsclient.Clients, logger *logging.Logger, m *metrics.SagaMetrics) appointment.Router {
	if cfg.RouterMode == config.RouterModeSNS {
		return messaging.NewSNSRouter(clients.SNS, cfg.SNSTopicARN, logger)
	}

	routes := make(map[appointment.Country]messaging.QueueSender, len(cfg.QueueURLs))
	for country, url := range cfg.QueueURLs {
		routes[country] = messaging.NewSQSQueue(clients.SQS, url)
	}
	return messaging.NewQueueRouter(routes, DeadLetterQueue(cfg, clients), logger, m)
}

// DeadLetterQueue returns nil when no DLQ is configured, which leaves
// exhausted messages to the queue's own redrive policy.
func DeadLetterQueue(cfg config.Config, clients awsclient.Clients) messaging.QueueSender {
	if cfg.DLQURL == "" {
		return nil
	}
	return messaging.NewSQSQueue(clients.SQS, cfg.DLQURL)
}

func ConsumerOptions(cfg config.Config) consumer.Options {
	return consumer.Options{
		Concurrency:    cfg.HandlerConcurrency,
		MessageTimeout: cfg.MessageTimeout,
	}
}

// DynamoDependency probes the primary table for readiness.
func DynamoDependency(client *dynamodb.Client, table string) api.Dependency {
	return api.Dependency{
		Name:     "dynamodb",
		Critical: true,
		Check: func(ctx context.Context) error {
			_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table)})
			return err
		},
	}
}
