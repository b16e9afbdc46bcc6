package consumer

import (
	"bytes"
	"encoding/json"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
)

// snsEnvelope is the SNS notification body delivered to an SQS subscriber
// without raw message delivery.
type snsEnvelope struct {
	Type     string  `json:"Type"`
	Message  *string `json:"Message"`
	TopicArn string  `json:"TopicArn"`
}

// eventBridgeEnvelope is the full event an EventBridge rule hands to an SQS
// target.
type eventBridgeEnvelope struct {
	DetailType string          `json:"detail-type"`
	Source     string          `json:"source"`
	Detail     json.RawMessage `json:"detail"`
}

// UnwrapCreation returns the creation message carried by body, which is
// either an SNS notification or the bare message JSON.
func UnwrapCreation(body []byte) (appointment.CreationMessage, error) {
	inner := bytes.TrimSpace(body)
	var env snsEnvelope
	if err := json.Unmarshal(inner, &env); err == nil && env.Message != nil {
		inner = []byte(*env.Message)
	}
	return appointment.DecodeCreationMessage(inner)
}

// UnwrapCompletion returns the completion event carried by body, which is
// either an EventBridge event, an SNS notification or the bare detail JSON.
func UnwrapCompletion(body []byte) (appointment.CompletionEvent, error) {
	inner := bytes.TrimSpace(body)

	var sns snsEnvelope
	if err := json.Unmarshal(inner, &sns); err == nil && sns.Message != nil {
		inner = []byte(*sns.Message)
	}

	var eb eventBridgeEnvelope
	if err := json.Unmarshal(inner, &eb); err == nil && len(eb.Detail) > 0 && !bytes.Equal(eb.Detail, []byte("null")) {
		inner = eb.Detail
	}
	return appointment.DecodeCompletionEvent(inner)
}
