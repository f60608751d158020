package infrastructure

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversToMatchingSubscriptions(t *testing.T) {
	bus := NewMemoryBus()

	var (
		mu    sync.Mutex
		clerk []string
		all   []string
	)
	require.NoError(t, bus.Subscribe(context.Background(), "shipabox.clerk.*", events.EventHandlerFunc(func(_ context.Context, e *events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		clerk = append(clerk, e.EventType)
		return nil
	})))
	require.NoError(t, bus.Subscribe(context.Background(), "shipabox.#", events.EventHandlerFunc(func(_ context.Context, e *events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		all = append(all, e.EventType)
		return nil
	})))

	id := models.GenerateUUID()
	err := bus.Publish(context.Background(),
		events.NewEvent(id, events.BoxReceivedEvent, events.BoxReceivedData{}),
		events.NewEvent(id, events.InvoicePaidEvent, events.InvoicePaidData{}),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{events.BoxReceivedEvent}, clerk)
	assert.ElementsMatch(t, []string{events.BoxReceivedEvent, events.InvoicePaidEvent}, all)
}

func TestMemoryBus_RetriesFailedDelivery(t *testing.T) {
	bus := NewMemoryBus(WithBusMaxAttempts(3))

	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(context.Background(), "#", events.EventHandlerFunc(func(context.Context, *events.Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	})))

	require.NoError(t, bus.Publish(context.Background(), events.NewEvent("", events.BoxWeighedEvent, nil)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestMemoryBus_SubscribeValidation(t *testing.T) {
	bus := NewMemoryBus()
	assert.Error(t, bus.Subscribe(context.Background(), "", events.EventHandlerFunc(nil)))
	assert.Error(t, bus.Subscribe(context.Background(), "#", nil))
}

func TestMemoryEventStore(t *testing.T) {
	store := NewMemoryEventStore()
	ctx := context.Background()
	a, b := models.GenerateUUID(), models.GenerateUUID()

	first := events.NewEvent(a, events.BoxDroppedCommand, events.BoxDroppedData{})
	require.NoError(t, store.Append(ctx, a, first, events.NewEvent(a, events.BoxReceivedEvent, nil)))
	require.NoError(t, store.Append(ctx, a, first))
	require.NoError(t, store.Append(ctx, b, events.NewEvent(b, events.BoxDroppedCommand, nil)))

	stream, err := store.GetEvents(ctx, a)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, first.ID, stream[0].ID)

	dropped, err := store.GetEventsByType(ctx, events.BoxDroppedCommand, 0, 10)
	require.NoError(t, err)
	assert.Len(t, dropped, 2)

	paged, err := store.GetEventsByType(ctx, events.BoxDroppedCommand, 1, 10)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, b, paged[0].AggregateID)

	empty, err := store.GetEvents(ctx, models.GenerateUUID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
