package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// CountryProcessor handles creation messages routed to one country.
type CountryProcessor struct {
	country Country
	store   CountryStore
	bus     EventBus
	logger  *logging.Logger
	metrics *metrics.SagaMetrics
}

func NewCountryProcessor(country Country, store CountryStore, bus EventBus, logger *logging.Logger, m *metrics.SagaMetrics) *CountryProcessor {
	if logger == nil {
		logger = logging.Default()
	}
	return &CountryProcessor{
		country: country,
		store:   store,
		bus:     bus,
		logger:  logger.With("component", "country_processor", "country", country.String()),
		metrics: m,
	}
}

func (p *CountryProcessor) Country() Country { return p.country }

// Process persists the appointment into the country store and emits the
// completed event. Returning an error means the message must not be
// acknowledged. The upsert makes redelivery safe.
func (p *CountryProcessor) Process(ctx context.Context, msg CreationMessage) (err error) {
	ctx, span := tracer.Start(ctx, "appointment.process")
	span.SetAttributes(
		attribute.String("appointment.id", msg.AppointmentID),
		attribute.String("appointment.country", msg.CountryISO),
		attribute.String("processor.country", p.country.String()),
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
		p.metrics.ObserveStage("process", p.country.String(), outcome, time.Since(start).Seconds())
	}()

	if err := msg.Validate(); err != nil {
		return p.reject(ctx, msg, err)
	}

	country, _ := NewCountry(msg.CountryISO)
	if country != p.country {
		p.logger.Error("misrouted appointment",
			"appointment_id", msg.AppointmentID,
			"message_country", country.String(),
		)
		return &BusinessRuleError{
			Rule:    "CountryMismatch",
			Message: fmt.Sprintf("appointment %s is for %s, processor handles %s", msg.AppointmentID, country, p.country),
			Cause:   ErrCountryMismatch,
		}
	}

	appt, err := p.rebuild(msg, country)
	if err != nil {
		return err
	}

	done := *appt
	if err := done.MarkCompleted(); err != nil {
		return err
	}

	if err := p.store.Save(ctx, &done); err != nil {
		// The in-memory copy fails; the message stays unacknowledged so the
		// upsert is retried on redelivery.
		if mErr := appt.MarkFailed(err.Error()); mErr == nil {
			for _, ev := range appt.PullEvents() {
				p.logger.Error("country store write failed",
					"event_type", ev.DetailType(),
					"appointment_id", ev.AggregateID.String(),
					"error", err,
				)
			}
		}
		return Infra("PostgreSQL", "upsert appointment", err)
	}

	if err := p.bus.Publish(ctx, NewCompletedEvent(&done)); err != nil {
		return Infra("EventBridge", "publish completed event", err)
	}

	p.logger.Info("appointment processed",
		"appointment_id", done.ID().String(),
		"insured_id", done.InsuredID().String(),
		"schedule_id", done.ScheduleID(),
	)
	return nil
}

// rebuild reconstructs the aggregate directly in PROCESSING from the payload.
func (p *CountryProcessor) rebuild(msg CreationMessage, country Country) (*Appointment, error) {
	id, _ := msg.ParsedID()
	created := msg.CreatedAt.UTC()
	if created.IsZero() {
		created = now()
	}
	return Rehydrate(Record{
		ID:         id,
		InsuredID:  strings.TrimSpace(msg.InsuredID),
		ScheduleID: msg.ScheduleID,
		Country:    country.String(),
		Status:     StatusProcessing,
		CreatedAt:  created,
		UpdatedAt:  now(),
	})
}

// reject handles a permanently malformed payload. If the message still names
// an appointment, a failed event lets the primary store mark it FAILED so it
// can be retried.
func (p *CountryProcessor) reject(ctx context.Context, msg CreationMessage, cause error) error {
	p.logger.Warn("invalid creation message",
		"appointment_id", msg.AppointmentID,
		"error", cause,
	)
	id, ok := msg.ParsedID()
	if !ok {
		return cause
	}
	if err := p.bus.Publish(ctx, NewFailedEvent(id, msg, cause.Error())); err != nil {
		return Infra("EventBridge", "publish failed event", err)
	}
	return cause
}
