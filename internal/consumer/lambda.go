package consumer

import (
	"context"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
)

// SQSHandler adapts a BatchHandler to an SQS-triggered Lambda using partial
// batch responses, so only the failed records are redelivered.
func SQSHandler(h BatchHandler) func(context.Context, events.SQSEvent) (events.SQSEventResponse, error) {
	return func(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
		msgs := make([]Message, 0, len(ev.Records))
		for _, rec := range ev.Records {
			count := 1
			if n, err := strconv.Atoi(rec.Attributes["ApproximateReceiveCount"]); err == nil {
				count = n
			}
			msgs = append(msgs, Message{ID: rec.MessageId, Body: rec.Body, ReceiveCount: count})
		}

		res := h.HandleBatch(ctx, msgs)

		resp := events.SQSEventResponse{}
		for _, id := range res.Failed {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: id})
		}
		return resp, nil
	}
}
