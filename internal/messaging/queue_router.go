package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// ErrNoRoute means the message's country matched no configured queue.
var ErrNoRoute = errors.New("messaging: no route for country")

// QueueSender is satisfied by *SQSQueue.
type QueueSender interface {
	Send(ctx context.Context, body string, attrs map[string]string) error
}

// QueueRouter routes creation messages in process: the countryISO field is
// matched exactly against a country to queue table. Unmatched messages go to
// the dead-letter queue.
type QueueRouter struct {
	routes  map[string]QueueSender
	dlq     QueueSender
	logger  *logging.Logger
	metrics *metrics.SagaMetrics
}

var _ appointment.Router = (*QueueRouter)(nil)

func NewQueueRouter(routes map[appointment.Country]QueueSender, dlq QueueSender, logger *logging.Logger, m *metrics.SagaMetrics) *QueueRouter {
	if logger == nil {
		logger = logging.Default()
	}
	table := make(map[string]QueueSender, len(routes))
	for c, q := range routes {
		if q != nil {
			table[c.String()] = q
		}
	}
	return &QueueRouter{routes: table, dlq: dlq, logger: logger, metrics: m}
}

func (r *QueueRouter) Publish(ctx context.Context, msg appointment.CreationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("messaging: failed to encode creation message: %w", err)
	}
	attrs := map[string]string{
		attrCountry:   msg.CountryISO,
		attrEventType: createdEventType,
	}

	q, ok := r.routes[msg.CountryISO]
	if !ok {
		r.logger.Error("no route for creation message",
			"appointment_id", msg.AppointmentID,
			"country", msg.CountryISO,
		)
		r.metrics.ObserveDeadLetter("router", "no_route")
		if r.dlq != nil {
			attrs["deadLetterReason"] = "no_route"
			if err := r.dlq.Send(ctx, string(body), attrs); err != nil {
				return appointment.Infra("SQS", "send to dead-letter queue", err)
			}
		}
		return fmt.Errorf("%w %q", ErrNoRoute, msg.CountryISO)
	}

	if err := q.Send(ctx, string(body), attrs); err != nil {
		return appointment.Infra("SQS", "send creation message", err)
	}
	return nil
}
