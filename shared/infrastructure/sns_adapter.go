package infrastructure

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
	"go.uber.org/zap"
)

// AWSSettings selects the region and an optional endpoint override
// (LocalStack in development)
type AWSSettings struct {
	Region   string
	Endpoint string
}

// LoadAWSConfig loads the default credential chain for settings
func LoadAWSConfig(ctx context.Context, settings AWSSettings) (aws.Config, error) {
	var opts []func(*config.LoadOptions) error
	if settings.Region != "" {
		opts = append(opts, config.WithRegion(settings.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, errors.Wrap(err, "failed to load AWS config")
	}
	return cfg, nil
}

// SNSPublisherAdapter adapts SNSEventPublisher to work with events.Publisher interface
type SNSPublisherAdapter struct {
	snsPublisher *SNSEventPublisher
}

// NewSNSPublisherAdapter creates a new SNS publisher adapter
func NewSNSPublisherAdapter(ctx context.Context, settings AWSSettings, topicArn string, logger *zap.Logger) (*SNSPublisherAdapter, error) {
	if topicArn == "" {
		return nil, errors.New("SNS topic ARN is required")
	}

	cfg, err := LoadAWSConfig(ctx, settings)
	if err != nil {
		return nil, err
	}

	snsClient := sns.NewFromConfig(cfg, func(o *sns.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	})

	return &SNSPublisherAdapter{
		snsPublisher: NewSNSEventPublisher(snsClient, topicArn, logger),
	}, nil
}

// Publish implements events.Publisher interface
func (p *SNSPublisherAdapter) Publish(ctx context.Context, evts ...*events.Event) error {
	return p.snsPublisher.Publish(ctx, evts...)
}

// Close closes the publisher
func (p *SNSPublisherAdapter) Close() error {
	// SNS client doesn't need explicit closing
	return nil
}
