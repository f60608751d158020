package infrastructure

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
	"go.uber.org/zap"
)

// SQSSubscriberAdapter adapts SQSEventSubscriber to work with events.Subscriber interface
type SQSSubscriberAdapter struct {
	mu            sync.Mutex
	sqsSubscriber *SQSEventSubscriber
	client        SQSAPI
	queueURL      string
	logger        *zap.Logger
	opts          []SQSSubscriberOption
}

// NewSQSSubscriberAdapter creates a new SQS subscriber adapter
func NewSQSSubscriberAdapter(ctx context.Context, settings AWSSettings, queueURL string, logger *zap.Logger, opts ...SQSSubscriberOption) (*SQSSubscriberAdapter, error) {
	if queueURL == "" {
		return nil, errors.New("SQS queue URL is required")
	}

	cfg, err := LoadAWSConfig(ctx, settings)
	if err != nil {
		return nil, err
	}

	client := sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	})

	return newSQSSubscriberAdapter(client, queueURL, logger, opts...), nil
}

func newSQSSubscriberAdapter(client SQSAPI, queueURL string, logger *zap.Logger, opts ...SQSSubscriberOption) *SQSSubscriberAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQSSubscriberAdapter{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
		opts:     opts,
	}
}

// eventHandlerAdapter filters the queue by topic pattern before handing
// events to the subscribed handler
type eventHandlerAdapter struct {
	pattern events.Topic
	handler events.EventHandler
	logger  *zap.Logger
}

func (a *eventHandlerAdapter) HandlerID() string {
	return "subscription:" + string(a.pattern)
}

func (a *eventHandlerAdapter) Handle(ctx context.Context, event *events.Event) error {
	if !event.Topic.Matches(a.pattern) {
		a.logger.Debug("ignoring event outside subscription",
			zap.String("event_type", event.EventType),
			zap.String("pattern", string(a.pattern)),
		)
		return nil
	}
	return a.handler.Handle(ctx, event)
}

// Subscribe starts consuming the queue; topicPattern may use "*" and "#"
func (s *SQSSubscriberAdapter) Subscribe(ctx context.Context, topicPattern string, handler events.EventHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqsSubscriber != nil {
		return errors.New("subscriber is already running")
	}

	pattern, err := events.NewTopic(topicPattern)
	if err != nil {
		return errors.Wrap(err, "invalid subscription")
	}

	adaptedHandler := &eventHandlerAdapter{pattern: pattern, handler: handler, logger: s.logger}
	opts := append([]SQSSubscriberOption{WithSubscriberLogger(s.logger)}, s.opts...)
	subscriber := NewSQSEventSubscriber(s.client, s.queueURL, adaptedHandler, opts...)

	if err := subscriber.Start(ctx); err != nil {
		return errors.Wrap(err, "failed to start SQS subscriber")
	}

	s.sqsSubscriber = subscriber
	return nil
}

// Close stops the subscriber
func (s *SQSSubscriberAdapter) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqsSubscriber == nil {
		return nil
	}

	if err := s.sqsSubscriber.Stop(ctx); err != nil {
		return errors.Wrap(err, "failed to stop SQS subscriber")
	}

	s.sqsSubscriber = nil
	return nil
}
