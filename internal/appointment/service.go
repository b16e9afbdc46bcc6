package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

var tracer = otel.Tracer("appointments.internal.appointment")

// CreateRequest is the raw scheduling input. Fields are validated by
// CreateAppointment.
type CreateRequest struct {
	InsuredID  string
	ScheduleID int64
	Country    string
}

type CreateResult struct {
	AppointmentID uuid.UUID
	Message       string
}

// Service is the synchronous side of the saga: intake, queries and the
// cancel/retry transitions on resting appointments.
type Service struct {
	store   PrimaryStore
	router  Router
	logger  *logging.Logger
	metrics *metrics.SagaMetrics
}

func NewService(store PrimaryStore, router Router, logger *logging.Logger, m *metrics.SagaMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:   store,
		router:  router,
		logger:  logger,
		metrics: m,
	}
}

// CreateAppointment validates the request, persists a PENDING appointment
// and routes its creation message. When routing fails the record stays
// PENDING and unrouted; the error goes back to the caller.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (res *CreateResult, err error) {
	ctx, span := tracer.Start(ctx, "appointment.create")
	start := time.Now()
	defer func() {
		s.finish(span, "create", req.Country, start, err)
	}()

	appt, err := New(req.InsuredID, req.ScheduleID, req.Country)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("appointment.id", appt.ID().String()),
		attribute.String("appointment.country", appt.Country().String()),
	)

	if err := s.store.Save(ctx, appt); err != nil {
		return nil, Infra("PrimaryStore", "save appointment", err)
	}
	s.logEvents(ctx, appt)

	if err := s.router.Publish(ctx, NewCreationMessage(appt)); err != nil {
		s.logger.Warn("appointment persisted but not routed",
			"appointment_id", appt.ID().String(),
			"country", appt.Country().String(),
			"error", err,
		)
		return nil, Infra("Router", "publish creation message", err)
	}

	s.logger.Info("appointment created",
		"appointment_id", appt.ID().String(),
		"country", appt.Country().String(),
		"schedule_id", appt.ScheduleID(),
	)
	return &CreateResult{AppointmentID: appt.ID(), Message: CreatedMessage}, nil
}

// GetAppointment loads one appointment or returns a NotFoundError.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, &NotFoundError{ResourceType: "Appointment", ResourceID: id.String()}
		}
		return nil, Infra("PrimaryStore", "find appointment", err)
	}
	return appt, nil
}

// GetTrace projects the current state of an appointment into its trace.
func (s *Service) GetTrace(ctx context.Context, id uuid.UUID) (Trace, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return Trace{}, err
	}
	return BuildTrace(appt), nil
}

// ListByInsuredID returns every appointment of one insured person, newest
// first.
func (s *Service) ListByInsuredID(ctx context.Context, raw string) ([]*Appointment, error) {
	insuredID, err := NewInsuredID(raw)
	if err != nil {
		return nil, err
	}
	list, err := s.store.FindByInsuredID(ctx, insuredID)
	if err != nil {
		return nil, Infra("PrimaryStore", "list appointments by insured id", err)
	}
	sortNewestFirst(list)
	return list, nil
}

// CancelAppointment moves a PENDING appointment to CANCELLED.
func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.cancel")
	start := time.Now()
	country := ""
	defer func() {
		s.finish(span, "cancel", country, start, err)
	}()

	appt, err = s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	country = appt.Country().String()
	from := appt.Status()
	if err := appt.Cancel(reason); err != nil {
		return nil, err
	}
	if err := s.updateStatus(ctx, appt, from); err != nil {
		return nil, err
	}
	s.logEvents(ctx, appt)
	return appt, nil
}

// RetryAppointment moves a FAILED appointment back to PENDING and routes a
// fresh creation message for it.
func (s *Service) RetryAppointment(ctx context.Context, id uuid.UUID) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointment.retry")
	start := time.Now()
	country := ""
	defer func() {
		s.finish(span, "retry", country, start, err)
	}()

	appt, err = s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	country = appt.Country().String()
	from := appt.Status()
	if err := appt.Retry(); err != nil {
		return nil, err
	}
	if err := s.updateStatus(ctx, appt, from); err != nil {
		return nil, err
	}
	s.logEvents(ctx, appt)

	if err := s.router.Publish(ctx, NewCreationMessage(appt)); err != nil {
		return nil, Infra("Router", "publish creation message", err)
	}
	return appt, nil
}

// updateStatus writes the new status, refusing the write when the store can
// tell that someone else moved the appointment first.
func (s *Service) updateStatus(ctx context.Context, appt *Appointment, from Status) error {
	var err error
	if guarded, ok := s.store.(GuardedStatusUpdater); ok {
		err = guarded.UpdateStatusFrom(ctx, appt.ID(), appt.Status(), []Status{from})
	} else {
		err = s.store.UpdateStatus(ctx, appt.ID(), appt.Status())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAppointmentNotFound):
		return &NotFoundError{ResourceType: "Appointment", ResourceID: appt.ID().String()}
	case errors.Is(err, ErrStaleUpdate):
		return &BusinessRuleError{
			Rule:    "InvalidStateTransition",
			Message: fmt.Sprintf("appointment %s is no longer %s", appt.ID(), from),
			Cause:   ErrInvalidStateTransition,
		}
	default:
		return Infra("PrimaryStore", "update status", err)
	}
}

// logEvents drains the aggregate's recorded events into the log.
func (s *Service) logEvents(ctx context.Context, appt *Appointment) {
	for _, ev := range appt.PullEvents() {
		s.logger.InfoContext(ctx, "domain event",
			"event_id", ev.ID.String(),
			"event_type", ev.DetailType(),
			"appointment_id", ev.AggregateID.String(),
			"payload", ev.Payload,
		)
	}
}

func (s *Service) finish(span trace.Span, stage, country string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = outcomeFor(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	s.metrics.ObserveStage(stage, countryLabel(country), outcome, time.Since(start).Seconds())
}

// countryLabel keeps metric cardinality bounded for unvalidated input.
func countryLabel(raw string) string {
	c, err := NewCountry(raw)
	if err != nil {
		return "unknown"
	}
	return c.String()
}

func outcomeFor(err error) string {
	switch ErrorCode(err) {
	case CodeValidation:
		return "invalid"
	case CodeNotFound:
		return "not_found"
	case CodeBusinessRule:
		return "rejected"
	default:
		return "error"
	}
}
