package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/hackgods/appointment-routing-saga/internal/appointment"
	"github.com/hackgods/appointment-routing-saga/pkg/logging"
)

const (
	attrCountry   = "countryISO"
	attrEventType = "eventType"

	createdEventType = "appointment.created"
)

type snsAPI interface {
	Publish(context.Context, *sns.PublishInput, ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSRouter publishes creation messages to one topic. Each country queue is
// subscribed with a filter policy on the countryISO attribute, so exactly one
// queue receives each message.
type SNSRouter struct {
	client   snsAPI
	topicARN string
	logger   *logging.Logger
}

var _ appointment.Router = (*SNSRouter)(nil)

func NewSNSRouter(client snsAPI, topicARN string, logger *logging.Logger) *SNSRouter {
	if client == nil {
		panic("messaging: SNS client cannot be nil")
	}
	if topicARN == "" {
		panic("messaging: SNS topic ARN cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SNSRouter{client: client, topicARN: topicARN, logger: logger}
}

func (r *SNSRouter) Publish(ctx context.Context, msg appointment.CreationMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("messaging: failed to encode creation message: %w", err)
	}

	out, err := r.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(r.topicARN),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			attrCountry: {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.CountryISO),
			},
			attrEventType: {
				DataType:    aws.String("String"),
				StringValue: aws.String(createdEventType),
			},
		},
	})
	if err != nil {
		return appointment.Infra("SNS", "publish", err)
	}

	r.logger.Debug("creation message published",
		"appointment_id", msg.AppointmentID,
		"country", msg.CountryISO,
		"message_id", aws.ToString(out.MessageId),
	)
	return nil
}
