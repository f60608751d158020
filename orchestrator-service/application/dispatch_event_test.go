package application

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/orchestrator-service/mocks"
	"github.com/shipabox/shipment-saga/shared/events"
	sharedinfra "github.com/shipabox/shipment-saga/shared/infrastructure"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/shipabox/shipment-saga/shared/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_Dispatch_HappyPath(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)
	ctx := context.Background()

	created := f.dispatch(t, droppedMsg("Ada"))
	assert.Equal(t, saga.OutcomeCreated, created.Outcome)
	assert.Equal(t, domain.StateNone, created.From)
	assert.Equal(t, domain.StateBoxInStore, created.To)
	id := created.CorrelationID
	require.False(t, id.IsZero())

	published := f.publisher.Events()
	require.Len(t, published, 1)
	assert.Equal(t, events.BoxReceivedEvent, published[0].EventType)
	assert.Equal(t, id, published[0].CorrelationID)
	data, ok := published[0].Data.(events.BoxReceivedData)
	require.True(t, ok)
	assert.Equal(t, id, data.CorrelationID)
	assert.Equal(t, "Ada", data.CustomerName)
	assert.Equal(t, "Springfield", data.AddressCity)

	for _, msg := range []domain.Message{weighedMsg(id), invoiceMsg(id), paidMsg(id), trackingMsg(id)} {
		result := f.dispatch(t, msg)
		assert.Equal(t, saga.OutcomeRecorded, result.Outcome, msg.Type)
		assert.Equal(t, domain.StateBoxInStore, result.To)
		assert.Nil(t, result.Published)
	}

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 5, stored.Version.Value)
	require.NotNil(t, stored.Box)
	assert.Equal(t, 2.5, stored.Box.Weight)
	require.NotNil(t, stored.Invoice)
	assert.Equal(t, 108.0, stored.Invoice.Total)
	require.NotNil(t, stored.Payment)
	assert.True(t, stored.Payment.PaidInFull)
	require.NotNil(t, stored.Tracking)
	assert.Equal(t, "1Z999", stored.Tracking.Number)
	assert.Len(t, stored.AppliedEventIDs, 4)

	sent := f.dispatch(t, sentMsg(id))
	assert.Equal(t, saga.OutcomeTransitioned, sent.Outcome)
	assert.Equal(t, domain.StateBoxInTruck, sent.To)

	delivered := f.dispatch(t, deliveredMsg(id))
	assert.Equal(t, saga.OutcomeCompleted, delivered.Outcome)
	assert.Equal(t, domain.StateBoxInTruck, delivered.From)
	assert.Equal(t, domain.StateBoxDelivered, delivered.To)
	require.NotNil(t, delivered.Shipment.Delivery)
	assert.Equal(t, "d-7", delivered.Shipment.Delivery.DriverID)

	gone, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// seven applied inbound events plus the one emitted
	history, err := f.journal.GetEvents(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 8)
	assert.Len(t, f.publisher.Events(), 1)
}

func TestOrchestrator_Dispatch_Cancellation(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)
	ctx := context.Background()

	id := f.dispatch(t, droppedMsg("Bob")).CorrelationID
	f.dispatch(t, weighedMsg(id))
	f.dispatch(t, invoiceMsg(id))

	result := f.dispatch(t, cancelledMsg(id))
	assert.Equal(t, saga.OutcomeCompleted, result.Outcome)
	assert.Equal(t, domain.StateBoxInStore, result.To)
	require.NotNil(t, result.Shipment.Payment)
	assert.True(t, result.Shipment.Payment.Cancelled)

	gone, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// the saga is over, later events have nowhere to go
	_, err = f.orchestrator.Dispatch(ctx, trackingMsg(id))
	assert.True(t, errors.Is(err, domain.ErrUnrouteableEvent))
}

// interleavingStore runs beforeDelete once, between a replica's read and its
// finalizing delete, to let another replica commit in that window.
type interleavingStore struct {
	domain.InstanceStore
	beforeDelete func()
	once         sync.Once
}

func (s *interleavingStore) Delete(ctx context.Context, id models.ID, version int) error {
	s.once.Do(s.beforeDelete)
	return s.InstanceStore.Delete(ctx, id, version)
}

func TestOrchestrator_Dispatch_FinalizeRacingAnotherReplica(t *testing.T) {
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("cancellation loses to a transition committed elsewhere", func(t *testing.T) {
		shared := newMemoryStore()
		replicaB := NewOrchestrator(workflow, shared, &recordingPublisher{})

		dropped, err := replicaB.Dispatch(ctx, droppedMsg("Ada"))
		require.NoError(t, err)
		id := dropped.CorrelationID

		racing := &interleavingStore{InstanceStore: shared}
		racing.beforeDelete = func() {
			sent, err := replicaB.Dispatch(ctx, sentMsg(id))
			require.NoError(t, err)
			require.Equal(t, domain.StateBoxInTruck, sent.To)
		}
		replicaA := NewOrchestrator(workflow, racing, &recordingPublisher{})

		_, err = replicaA.Dispatch(ctx, cancelledMsg(id))
		assert.True(t, errors.Is(err, domain.ErrUnhandledTransition), "got %v", err)

		got, err := shared.Get(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, domain.StateBoxInTruck, got.State)
		assert.Equal(t, 2, got.Version.Value)
	})

	t.Run("only one of two finalizers completes", func(t *testing.T) {
		shared := newMemoryStore()
		replicaB := NewOrchestrator(workflow, shared, &recordingPublisher{})

		dropped, err := replicaB.Dispatch(ctx, droppedMsg("Bea"))
		require.NoError(t, err)
		id := dropped.CorrelationID
		_, err = replicaB.Dispatch(ctx, sentMsg(id))
		require.NoError(t, err)

		var completedByB *DispatchResult
		racing := &interleavingStore{InstanceStore: shared}
		racing.beforeDelete = func() {
			completedByB, err = replicaB.Dispatch(ctx, deliveredMsg(id))
			require.NoError(t, err)
		}
		replicaA := NewOrchestrator(workflow, racing, &recordingPublisher{})

		_, errA := replicaA.Dispatch(ctx, deliveredMsg(id))
		assert.True(t, errors.Is(errA, domain.ErrUnrouteableEvent), "got %v", errA)
		require.NotNil(t, completedByB)
		assert.Equal(t, saga.OutcomeCompleted, completedByB.Outcome)

		got, err := shared.Get(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestOrchestrator_Dispatch_Faults(t *testing.T) {
	tests := []struct {
		name      string
		policy    domain.Policy
		setup     func(t *testing.T, f *fixture) domain.Message
		expectErr error
	}{
		{
			name:   "unknown correlation id is unrouteable",
			policy: domain.PolicyStandard,
			setup: func(t *testing.T, f *fixture) domain.Message {
				return weighedMsg(models.GenerateUUID())
			},
			expectErr: domain.ErrUnrouteableEvent,
		},
		{
			name:   "clerk event after the box left is unhandled",
			policy: domain.PolicyStandard,
			setup: func(t *testing.T, f *fixture) domain.Message {
				id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
				f.dispatch(t, sentMsg(id))
				return weighedMsg(id)
			},
			expectErr: domain.ErrUnhandledTransition,
		},
		{
			name:   "cancellation after the box left is unhandled",
			policy: domain.PolicyLenient,
			setup: func(t *testing.T, f *fixture) domain.Message {
				id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
				f.dispatch(t, sentMsg(id))
				return cancelledMsg(id)
			},
			expectErr: domain.ErrUnhandledTransition,
		},
		{
			name:   "strict policy refuses delivery of a box still in store",
			policy: domain.PolicyStrict,
			setup: func(t *testing.T, f *fixture) domain.Message {
				id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
				return deliveredMsg(id)
			},
			expectErr: domain.ErrUnhandledTransition,
		},
		{
			name:   "re-drop after the box left is unhandled",
			policy: domain.PolicyStandard,
			setup: func(t *testing.T, f *fixture) domain.Message {
				id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
				f.dispatch(t, sentMsg(id))
				return droppedMsg("Ada")
			},
			expectErr: domain.ErrUnhandledTransition,
		},
		{
			name:   "blank customer name is invalid",
			policy: domain.PolicyStandard,
			setup: func(t *testing.T, f *fixture) domain.Message {
				return droppedMsg("   ")
			},
			expectErr: domain.ErrInvalidMessage,
		},
		{
			name:   "payload of the wrong type is invalid",
			policy: domain.PolicyStandard,
			setup: func(t *testing.T, f *fixture) domain.Message {
				id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
				msg := weighedMsg(id)
				msg.Payload = events.TrackingProvidedData{Correlation: corr(id)}
				return msg
			},
			expectErr: domain.ErrInvalidMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.policy)
			msg := tt.setup(t, f)

			before, err := f.store.List(context.Background())
			require.NoError(t, err)
			publishedBefore := len(f.publisher.Events())

			result, err := f.orchestrator.Dispatch(context.Background(), msg)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)

			after, err := f.store.List(context.Background())
			require.NoError(t, err)
			assert.Equal(t, before, after)
			assert.Len(t, f.publisher.Events(), publishedBefore)
		})
	}
}

func TestOrchestrator_Dispatch_UnhandledTransitionDetails(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)

	id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
	f.dispatch(t, sentMsg(id))

	_, err := f.orchestrator.Dispatch(context.Background(), invoiceMsg(id))
	var unhandled *domain.UnhandledTransitionError
	require.True(t, errors.As(err, &unhandled))
	assert.Equal(t, id, unhandled.CorrelationID)
	assert.Equal(t, domain.StateBoxInTruck, unhandled.State)
	assert.Equal(t, domain.EventInvoiceProvided, unhandled.Event)
	assert.Equal(t, []domain.State{domain.StateBoxInStore}, unhandled.Accepted)
}

func TestOrchestrator_Dispatch_DuplicateDelivery(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)
	ctx := context.Background()

	id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
	msg := weighedMsg(id)

	first := f.dispatch(t, msg)
	assert.Equal(t, saga.OutcomeRecorded, first.Outcome)

	second := f.dispatch(t, msg)
	assert.Equal(t, saga.OutcomeDuplicate, second.Outcome)
	assert.False(t, second.Outcome.Mutated())

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version.Value)

	history, err := f.journal.GetEvents(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestOrchestrator_Dispatch_RedropReannounces(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)

	first := f.dispatch(t, droppedMsg("Ada"))
	f.dispatch(t, weighedMsg(first.CorrelationID))

	again := f.dispatch(t, droppedMsg("  Ada "))
	assert.Equal(t, first.CorrelationID, again.CorrelationID)
	assert.Equal(t, saga.OutcomeRecorded, again.Outcome)
	assert.Equal(t, domain.StateBoxInStore, again.To)
	require.NotNil(t, again.Shipment.Box)

	published := f.publisher.Events()
	require.Len(t, published, 2)
	assert.Equal(t, events.BoxReceivedEvent, published[1].EventType)
	assert.Equal(t, first.CorrelationID, published[1].CorrelationID)

	all, err := f.store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOrchestrator_Dispatch_NaturalKeyFreedAfterCompletion(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)

	first := f.dispatch(t, droppedMsg("Ada"))
	f.dispatch(t, cancelledMsg(first.CorrelationID))

	second := f.dispatch(t, droppedMsg("Ada"))
	assert.Equal(t, saga.OutcomeCreated, second.Outcome)
	assert.NotEqual(t, first.CorrelationID, second.CorrelationID)
}

func TestOrchestrator_Dispatch_LenientPolicyAcceptsLateClerkEvents(t *testing.T) {
	f := newFixture(t, domain.PolicyLenient)

	id := f.dispatch(t, droppedMsg("Ada")).CorrelationID
	f.dispatch(t, sentMsg(id))

	result := f.dispatch(t, trackingMsg(id))
	assert.Equal(t, saga.OutcomeRecorded, result.Outcome)
	assert.Equal(t, domain.StateBoxInTruck, result.To)

	again := f.dispatch(t, sentMsg(id))
	assert.Equal(t, saga.OutcomeRecorded, again.Outcome)
	assert.Equal(t, domain.StateBoxInTruck, again.To)
}

func TestOrchestrator_Dispatch_OrderIndependentRecording(t *testing.T) {
	ctx := context.Background()
	a := newFixture(t, domain.PolicyStandard)
	b := newFixture(t, domain.PolicyStandard)

	idA := a.dispatch(t, droppedMsg("Ada")).CorrelationID
	idB := b.dispatch(t, droppedMsg("Ada")).CorrelationID

	for _, msg := range []domain.Message{weighedMsg(idA), invoiceMsg(idA), paidMsg(idA), trackingMsg(idA)} {
		a.dispatch(t, msg)
	}
	for _, msg := range []domain.Message{trackingMsg(idB), paidMsg(idB), invoiceMsg(idB), weighedMsg(idB)} {
		b.dispatch(t, msg)
	}

	sa, err := a.store.Get(ctx, idA)
	require.NoError(t, err)
	sb, err := b.store.Get(ctx, idB)
	require.NoError(t, err)

	assert.Equal(t, sa.State, sb.State)
	assert.Equal(t, sa.Box, sb.Box)
	assert.Equal(t, sa.Invoice, sb.Invoice)
	assert.Equal(t, sa.Payment, sb.Payment)
	assert.Equal(t, sa.Tracking, sb.Tracking)
}

func TestOrchestrator_Dispatch_ConcurrentEventsForOneShipment(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)
	ctx := context.Background()

	id := f.dispatch(t, droppedMsg("Ada")).CorrelationID

	msgs := []domain.Message{weighedMsg(id), invoiceMsg(id), paidMsg(id), trackingMsg(id)}
	items := f.orchestrator.DispatchAll(ctx, msgs)
	require.Len(t, items, len(msgs))
	for i, item := range items {
		require.NoError(t, item.Err)
		assert.Equal(t, msgs[i].EventID, item.Message.EventID)
		assert.Equal(t, saga.OutcomeRecorded, item.Result.Outcome)
	}

	stored, err := f.store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Version.Value)
	assert.Len(t, stored.AppliedEventIDs, 4)
	assert.NotNil(t, stored.Box)
	assert.NotNil(t, stored.Invoice)
	assert.NotNil(t, stored.Payment)
	assert.NotNil(t, stored.Tracking)
}

func TestOrchestrator_Dispatch_ConcurrentDropsForOneCustomer(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)
	ctx := context.Background()

	const drops = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = make(map[models.ID]int)
	)
	for i := 0; i < drops; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.orchestrator.Dispatch(ctx, droppedMsg("Ada"))
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			ids[result.CorrelationID]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, ids, 1)
	all, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Len(t, f.publisher.Events(), drops)
}

func TestOrchestrator_DispatchAll_IndependentShipments(t *testing.T) {
	f := newFixture(t, domain.PolicyStandard)
	ctx := context.Background()

	msgs := make([]domain.Message, 50)
	for i := range msgs {
		msgs[i] = droppedMsg(fmt.Sprintf("customer-%02d", i))
	}
	// one bad message must not affect the others
	msgs = append(msgs, weighedMsg(models.GenerateUUID()))

	items := f.orchestrator.DispatchAll(ctx, msgs)
	require.Len(t, items, 51)

	ids := make(map[models.ID]bool)
	for _, item := range items[:50] {
		require.NoError(t, item.Err)
		assert.Equal(t, saga.OutcomeCreated, item.Result.Outcome)
		ids[item.Result.CorrelationID] = true
	}
	assert.Len(t, ids, 50)
	assert.True(t, errors.Is(items[50].Err, domain.ErrUnrouteableEvent))

	all, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestOrchestrator_Dispatch_StoreAndPublishFailures(t *testing.T) {
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)

	id := models.ID("550e8400-e29b-41d4-a716-446655440000")
	live := func() *domain.Shipment {
		s := domain.NewShipment(id, "Ada")
		s.State = domain.StateBoxInStore
		s.Version = models.Version{Value: 3}
		return s
	}

	tests := []struct {
		name      string
		msg       domain.Message
		setup     func(*mocks.MockInstanceStore, *mocks.MockPublisher)
		expectErr error
	}{
		{
			name: "lookup by natural key fails",
			msg:  droppedMsg("Ada"),
			setup: func(store *mocks.MockInstanceStore, pub *mocks.MockPublisher) {
				store.EXPECT().FindByNaturalKey(mock.Anything, "Ada").
					Return(nil, errors.New("connection refused")).Once()
			},
			expectErr: domain.ErrStoreFailure,
		},
		{
			name: "put fails",
			msg:  weighedMsg(id),
			setup: func(store *mocks.MockInstanceStore, pub *mocks.MockPublisher) {
				store.EXPECT().Get(mock.Anything, id).Return(live(), nil).Once()
				store.EXPECT().Put(mock.Anything, mock.Anything).
					Return(errors.New("disk full")).Once()
			},
			expectErr: domain.ErrStoreFailure,
		},
		{
			name: "delete fails on finalization",
			msg:  deliveredMsg(id),
			setup: func(store *mocks.MockInstanceStore, pub *mocks.MockPublisher) {
				store.EXPECT().Get(mock.Anything, id).Return(live(), nil).Once()
				store.EXPECT().Delete(mock.Anything, id, 3).
					Return(errors.New("timeout")).Once()
			},
			expectErr: domain.ErrStoreFailure,
		},
		{
			name: "publish fails after persisting",
			msg:  droppedMsg("Ada"),
			setup: func(store *mocks.MockInstanceStore, pub *mocks.MockPublisher) {
				store.EXPECT().FindByNaturalKey(mock.Anything, "Ada").Return(nil, nil).Once()
				store.EXPECT().Put(mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
					return s.State == domain.StateBoxInStore && s.Version.Value == 1
				})).Return(nil).Once()
				pub.EXPECT().Publish(mock.Anything, mock.Anything).
					Return(errors.New("topic not found")).Once()
			},
			expectErr: domain.ErrPublishFailure,
		},
		{
			name: "version conflict persists through every retry",
			msg:  weighedMsg(id),
			setup: func(store *mocks.MockInstanceStore, pub *mocks.MockPublisher) {
				store.EXPECT().Get(mock.Anything, id).Return(live(), nil).Times(defaultConflictRetries)
				store.EXPECT().Put(mock.Anything, mock.Anything).
					Return(errors.Wrap(domain.ErrVersionConflict, "stale")).Times(defaultConflictRetries)
			},
			expectErr: domain.ErrVersionConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := mocks.NewMockInstanceStore(t)
			pub := mocks.NewMockPublisher(t)
			tt.setup(store, pub)

			o := NewOrchestrator(workflow, store, pub)
			result, err := o.Dispatch(context.Background(), tt.msg)

			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.expectErr), "got %v", err)
		})
	}
}

func TestOrchestrator_Dispatch_RetriesVersionConflict(t *testing.T) {
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)

	id := models.ID("550e8400-e29b-41d4-a716-446655440001")
	stale := domain.NewShipment(id, "Ada")
	stale.State = domain.StateBoxInStore
	stale.Version = models.Version{Value: 2}
	fresh := stale.Clone()
	fresh.Version = models.Version{Value: 3}

	store := mocks.NewMockInstanceStore(t)
	store.EXPECT().Get(mock.Anything, id).Return(stale, nil).Once()
	store.EXPECT().Put(mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
		return s.Version.Value == 3
	})).Return(domain.ErrVersionConflict).Once()
	store.EXPECT().Get(mock.Anything, id).Return(fresh, nil).Once()
	store.EXPECT().Put(mock.Anything, mock.MatchedBy(func(s *domain.Shipment) bool {
		return s.Version.Value == 4
	})).Return(nil).Once()

	o := NewOrchestrator(workflow, store, mocks.NewMockPublisher(t))
	result, err := o.Dispatch(context.Background(), weighedMsg(id))

	require.NoError(t, err)
	assert.Equal(t, saga.OutcomeRecorded, result.Outcome)
	assert.Equal(t, 4, result.Shipment.Version.Value)
}

func TestOrchestrator_Dispatch_JournalFailureDoesNotFailDispatch(t *testing.T) {
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)

	journal := mocks.NewMockEventStore(t)
	journal.EXPECT().Append(mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("journal offline")).Twice()

	pub := &recordingPublisher{}
	o := NewOrchestrator(workflow, newMemoryStore(), pub, WithJournal(journal))

	result, err := o.Dispatch(context.Background(), droppedMsg("Ada"))
	require.NoError(t, err)
	assert.Equal(t, saga.OutcomeCreated, result.Outcome)
	assert.Len(t, pub.Events(), 1)
}

func TestOrchestrator_Dispatch_UnpublishedEventIsNotJournalled(t *testing.T) {
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)
	ctx := context.Background()

	pub := mocks.NewMockPublisher(t)
	pub.EXPECT().Publish(mock.Anything, mock.Anything).
		Return(errors.New("topic not found")).Once()

	journal := sharedinfra.NewMemoryEventStore()
	id := models.ID("550e8400-e29b-41d4-a716-446655440043")
	o := NewOrchestrator(workflow, newMemoryStore(), pub,
		WithJournal(journal),
		WithIDGenerator(func() models.ID { return id }),
	)

	_, err = o.Dispatch(ctx, droppedMsg("Ada"))
	require.ErrorIs(t, err, domain.ErrPublishFailure)

	history, err := journal.GetEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, events.BoxDroppedCommand, history[0].EventType)
}

func TestOrchestrator_WithIDGenerator(t *testing.T) {
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)

	fixed := models.ID("550e8400-e29b-41d4-a716-446655440042")
	o := NewOrchestrator(workflow, newMemoryStore(), &recordingPublisher{},
		WithIDGenerator(func() models.ID { return fixed }))

	result, err := o.Dispatch(context.Background(), droppedMsg("Ada"))
	require.NoError(t, err)
	assert.Equal(t, fixed, result.CorrelationID)
}

func TestFaultKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.Wrap(domain.ErrInvalidMessage, "x"), "invalid_message"},
		{&domain.UnrouteableEventError{}, "unrouteable"},
		{&domain.UnhandledTransitionError{}, "unhandled_transition"},
		{errors.Wrap(domain.ErrVersionConflict, "x"), "version_conflict"},
		{errors.Wrap(domain.ErrStoreFailure, "x"), "store_failure"},
		{errors.Wrap(domain.ErrPublishFailure, "x"), "publish_failure"},
		{context.Canceled, "cancelled"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, faultKind(tt.err), tt.err.Error())
	}
}
