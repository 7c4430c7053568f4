package awsutil

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	configv2 "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// localstackCreds are accepted by LocalStack and rejected by real AWS.
var localstackCreds = credentials.NewStaticCredentialsProvider("test", "test", "")

// NewSQSClient builds an outbox client for region. endpoint overrides the AWS
// endpoint for local stacks.
func NewSQSClient(ctx context.Context, region, endpoint string) (*sqs.Client, error) {
	opts := []func(*configv2.LoadOptions) error{configv2.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, configv2.WithCredentialsProvider(localstackCreds))
	}

	cfg, err := configv2.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

type attributesAPI interface {
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// QueueProbe returns a check that succeeds while queueURL resolves to a
// queue. Used for startup and readiness.
func QueueProbe(c attributesAPI, queueURL string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		out, err := c.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(queueURL),
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
		})
		if err != nil {
			return fmt.Errorf("outbox queue %s: %w", queueURL, err)
		}
		if out.Attributes[string(types.QueueAttributeNameQueueArn)] == "" {
			return fmt.Errorf("outbox queue %s: no arn returned", queueURL)
		}
		return nil
	}
}
