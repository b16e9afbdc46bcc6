package appointment

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// guardedFrom lists, per target status, the stored statuses a guarded
// confirmation may overwrite.
var guardedFrom = map[Status][]Status{
	StatusCompleted: {StatusPending, StatusProcessing, StatusCompleted, StatusFailed},
	StatusFailed:    {StatusPending, StatusProcessing, StatusFailed},
}

// Confirmer copies the outcome of country processing into the primary store.
type Confirmer struct {
	store         PrimaryStore
	guardTerminal bool
	logger        *logging.Logger
	metrics       *metrics.SagaMetrics
}

// NewConfirmer builds the confirmation stage. With guardTerminal false the
// status is blind-set; with it true, outcomes never overwrite a cancelled
// appointment and failures never overwrite a completed one.
func NewConfirmer(store PrimaryStore, guardTerminal bool, logger *logging.Logger, m *metrics.SagaMetrics) *Confirmer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Confirmer{
		store:         store,
		guardTerminal: guardTerminal,
		logger:        logger.With("component", "confirmer"),
		metrics:       m,
	}
}

// Confirm applies one completion event. Applying the same event again leaves
// the stored status unchanged.
func (c *Confirmer) Confirm(ctx context.Context, ev CompletionEvent) (err error) {
	ctx, span := tracer.Start(ctx, "appointment.confirm")
	span.SetAttributes(
		attribute.String("appointment.id", ev.AppointmentID),
		attribute.String("event.id", ev.EventID),
		attribute.String("event.status", ev.Status),
	)
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		outcome := "success"
		if err != nil {
			outcome = outcomeFor(err)
		}
		c.metrics.ObserveStage("confirm", countryLabel(ev.CountryISO), outcome, time.Since(start).Seconds())
	}()

	id, err := ev.TargetID()
	if err != nil {
		return err
	}
	status, err := ev.TargetStatus()
	if err != nil {
		return err
	}

	guarded, canGuard := c.store.(GuardedStatusUpdater)
	if c.guardTerminal && canGuard {
		err = guarded.UpdateStatusFrom(ctx, id, status, guardedFrom[status])
	} else {
		err = c.store.UpdateStatus(ctx, id, status)
	}

	switch {
	case err == nil:
	case errors.Is(err, ErrStaleUpdate):
		c.logger.Warn("stale completion ignored",
			"appointment_id", id.String(),
			"event_id", ev.EventID,
			"status", string(status),
		)
		return nil
	case errors.Is(err, ErrAppointmentNotFound):
		return &NotFoundError{ResourceType: "Appointment", ResourceID: id.String()}
	default:
		return Infra("DynamoDB", "update status", err)
	}

	c.logger.Info("appointment status confirmed",
		"appointment_id", id.String(),
		"event_id", ev.EventID,
		"status", string(status),
	)
	return nil
}
