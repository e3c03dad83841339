package sns

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/otp-relay/internal/config"
)

type publishAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// TopicAlerter publishes operator alerts to an SNS topic.
type TopicAlerter struct {
	client   publishAPI
	topicARN string
}

func NewTopicAlerter(ctx context.Context, cfg *config.Config) (*TopicAlerter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return &TopicAlerter{client: sns.NewFromConfig(awsCfg, opts...), topicARN: cfg.AlertTopicARN}, nil
}

func (a *TopicAlerter) Alert(ctx context.Context, subject, body string) error {
	// SNS subjects are capped at 100 characters.
	if len(subject) > 100 {
		subject = subject[:100]
	}
	_, err := a.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(a.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	return err
}
