package awsclient

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/hackgods/appointment-routing-saga/internal/config"
)

// Clients bundles the AWS service clients the saga talks to.
type Clients struct {
	DynamoDB    *dynamodb.Client
	SQS         *sqs.Client
	SNS         *sns.Client
	EventBridge *eventbridge.Client
}

// LoadAWSConfig builds the shared SDK config. Static credentials are used
// only when both keys are set; an endpoint override points every client at
// LocalStack.
func LoadAWSConfig(ctx context.Context, cfg appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if strings.TrimSpace(cfg.AWSAccessKeyID) != "" && strings.TrimSpace(cfg.AWSSecretAccessKey) != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, err
	}

	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(endpoint)
	}

	return awsCfg, nil
}

// NewClients creates every client from one SDK config.
func NewClients(awsCfg aws.Config) Clients {
	return Clients{
		DynamoDB:    dynamodb.NewFromConfig(awsCfg),
		SQS:         sqs.NewFromConfig(awsCfg),
		SNS:         sns.NewFromConfig(awsCfg),
		EventBridge: eventbridge.NewFromConfig(awsCfg),
	}
}
