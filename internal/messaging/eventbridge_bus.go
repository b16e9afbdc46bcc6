package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	ebtypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/internal/observability/metrics"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

// maxPutEntries is the PutEvents per-call limit.
const maxPutEntries = 10

type eventBridgeAPI interface {
	PutEvents(context.Context, *eventbridge.PutEventsInput, ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeBus publishes domain events with DetailType
// "appointment.<kind>" on a custom bus.
type EventBridgeBus struct {
	client  eventBridgeAPI
	busName string
	source  string
	logger  *logging.Logger
	metrics *metrics.SagaMetrics
}

var _ appointment.EventBus = (*EventBridgeBus)(nil)

func NewEventBridgeBus(client eventBridgeAPI, busName, source string, logger *logging.Logger, m *metrics.SagaMetrics) *EventBridgeBus {
	if client == nil {
		panic("messaging: EventBridge client cannot be nil")
	}
	if busName == "" {
		busName = "default"
	}
	if source == "" {
		source = "medical-appointments"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &EventBridgeBus{client: client, busName: busName, source: source, logger: logger, metrics: m}
}

// Publish sends one event. A rejected entry is an error so the caller's
// message is redelivered.
func (b *EventBridgeBus) Publish(ctx context.Context, ev appointment.DomainEvent) error {
	entry, err := b.entry(ev)
	if err != nil {
		return err
	}
	out, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []ebtypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return appointment.Infra("EventBridge", "put events", err)
	}
	if out.FailedEntryCount > 0 {
		b.metrics.ObservePublishFailure(ev.DetailType(), int(out.FailedEntryCount))
		reason := ""
		if len(out.Entries) > 0 {
			reason = aws.ToString(out.Entries[0].ErrorMessage)
		}
		return appointment.Infra("EventBridge", "put events",
			fmt.Errorf("entry %s rejected: %s", ev.ID, reason))
	}
	return nil
}

// PublishBatch sends events in chunks of at most ten. Rejected entries are
// logged and counted, not retried.
func (b *EventBridgeBus) PublishBatch(ctx context.Context, evs []appointment.DomainEvent) error {
	for start := 0; start < len(evs); start += maxPutEntries {
		end := start + maxPutEntries
		if end > len(evs) {
			end = len(evs)
		}
		chunk := evs[start:end]

		entries := make([]ebtypes.PutEventsRequestEntry, 0, len(chunk))
		for _, ev := range chunk {
			entry, err := b.entry(ev)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}

		out, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
		if err != nil {
			return appointment.Infra("EventBridge", "put events", err)
		}
		if out.FailedEntryCount == 0 {
			continue
		}
		b.logger.Warn("event batch partially failed",
			"failed", out.FailedEntryCount,
			"total", len(entries),
		)
		for i, res := range out.Entries {
			if res.ErrorCode == nil || i >= len(chunk) {
				continue
			}
			b.metrics.ObservePublishFailure(chunk[i].DetailType(), 1)
			b.logger.Warn("event rejected",
				"event_id", chunk[i].ID.String(),
				"detail_type", chunk[i].DetailType(),
				"error_code", aws.ToString(res.ErrorCode),
				"error", aws.ToString(res.ErrorMessage),
			)
		}
	}
	return nil
}

func (b *EventBridgeBus) entry(ev appointment.DomainEvent) (ebtypes.PutEventsRequestEntry, error) {
	detail, err := json.Marshal(ev.Detail())
	if err != nil {
		return ebtypes.PutEventsRequestEntry{}, fmt.Errorf("messaging: failed to encode event detail: %w", err)
	}
	return ebtypes.PutEventsRequestEntry{
		Source:       aws.String(b.source),
		DetailType:   aws.String(ev.DetailType()),
		Detail:       aws.String(string(detail)),
		EventBusName: aws.String(b.busName),
		Time:         aws.Time(ev.OccurredOn),
	}, nil
}
