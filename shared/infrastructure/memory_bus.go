package infrastructure

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	_ events.Publisher  = (*MemoryBus)(nil)
	_ events.Subscriber = (*MemoryBus)(nil)
)

type memorySubscription struct {
	pattern events.Topic
	handler events.EventHandler
}

// MemoryBus is an in-process transport delivering every published event to
// each matching subscription. A failed delivery is retried up to
// maxAttempts times, mimicking at-least-once queues.
type MemoryBus struct {
	mu            sync.RWMutex
	subscriptions []memorySubscription
	maxConcurrent int
	maxAttempts   int
	logger        *zap.Logger
}

type MemoryBusOption func(*MemoryBus)

func WithBusConcurrency(n int) MemoryBusOption {
	return func(b *MemoryBus) {
		if n > 0 {
			b.maxConcurrent = n
		}
	}
}

func WithBusMaxAttempts(n int) MemoryBusOption {
	return func(b *MemoryBus) {
		if n > 0 {
			b.maxAttempts = n
		}
	}
}

func WithBusLogger(logger *zap.Logger) MemoryBusOption {
	return func(b *MemoryBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewMemoryBus creates an empty bus
func NewMemoryBus(opts ...MemoryBusOption) *MemoryBus {
	b := &MemoryBus{
		maxConcurrent: 8,
		maxAttempts:   3,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for topics matching topicPattern
func (b *MemoryBus) Subscribe(_ context.Context, topicPattern string, handler events.EventHandler) error {
	pattern, err := events.NewTopic(topicPattern)
	if err != nil {
		return errors.Wrap(err, "invalid subscription")
	}
	if handler == nil {
		return errors.New("handler is required")
	}

	b.mu.Lock()
	b.subscriptions = append(b.subscriptions, memorySubscription{pattern: pattern, handler: handler})
	b.mu.Unlock()
	return nil
}

// Publish delivers events and returns once every delivery settled. Handler
// failures are logged, not returned: the publisher's job ends at the bus.
func (b *MemoryBus) Publish(ctx context.Context, evts ...*events.Event) error {
	b.mu.RLock()
	subs := append([]memorySubscription(nil), b.subscriptions...)
	b.mu.RUnlock()

	gr, ctx := errgroup.WithContext(ctx)
	gr.SetLimit(b.maxConcurrent)

	for _, event := range evts {
		if event == nil {
			continue
		}
		for _, sub := range subs {
			if !event.Topic.Matches(sub.pattern) {
				continue
			}
			event, sub := event, sub
			gr.Go(func() error {
				b.deliver(ctx, sub, event.Clone())
				return nil
			})
		}
	}

	return gr.Wait()
}

func (b *MemoryBus) deliver(ctx context.Context, sub memorySubscription, event *events.Event) {
	var err error
	for attempt := 1; attempt <= b.maxAttempts; attempt++ {
		if err = sub.handler.Handle(ctx, event); err == nil {
			return
		}
		if ctx.Err() != nil {
			break
		}
		b.logger.Warn("memory bus delivery failed",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", event.EventType),
			zap.Int("attempt", attempt),
		)
	}
	b.logger.Error("memory bus dropped event",
		zap.Error(err),
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
	)
}
