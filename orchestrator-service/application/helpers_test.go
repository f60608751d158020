package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/orchestrator-service/infrastructure"
	"github.com/shipabox/shipment-saga/shared/events"
	sharedinfra "github.com/shipabox/shipment-saga/shared/infrastructure"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// recordingPublisher keeps every published event in order
type recordingPublisher struct {
	mu   sync.Mutex
	evts []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evts = append(p.evts, evts...)
	return nil
}

func (p *recordingPublisher) Events() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Event(nil), p.evts...)
}

type fixture struct {
	orchestrator *Orchestrator
	store        *infrastructure.MemoryInstanceStore
	publisher    *recordingPublisher
	journal      *sharedinfra.MemoryEventStore
}

func newFixture(t *testing.T, policy domain.Policy) *fixture {
	t.Helper()

	workflow, err := domain.NewWorkflow(policy)
	require.NoError(t, err)

	f := &fixture{
		store:     infrastructure.NewMemoryInstanceStore(),
		publisher: &recordingPublisher{},
		journal:   sharedinfra.NewMemoryEventStore(),
	}
	f.orchestrator = NewOrchestrator(workflow, f.store, f.publisher, WithJournal(f.journal))
	return f
}

func (f *fixture) dispatch(t *testing.T, msg domain.Message) *DispatchResult {
	t.Helper()
	result, err := f.orchestrator.Dispatch(context.Background(), msg)
	require.NoError(t, err)
	return result
}

func customer(name string) events.Customer {
	return events.Customer{
		CustomerName:  name,
		AddressStreet: "1 Main St",
		AddressCity:   "Springfield",
		AddressState:  "IL",
		AddressZip:    "62701",
	}
}

func corr(id models.ID) events.Correlation {
	return events.Correlation{CorrelationID: id}
}

func metrics() events.BoxMetrics {
	return events.BoxMetrics{
		BoxDimensionsX: 10,
		BoxDimensionsY: 20,
		BoxDimensionsZ: 30,
		BoxWeight:      2.5,
		BoxWeightUnit:  "kg",
	}
}

func totals() events.InvoiceTotals {
	return events.InvoiceTotals{SubTotal: 100, Tax: 8, Total: 108, TimestampInvoiceCreated: testTime}
}

func droppedMsg(name string) domain.Message {
	return domain.NewMessage(domain.EventBoxDropped, models.GenerateUUID(),
		events.BoxDroppedData{Customer: customer(name)})
}

func weighedMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventBoxWeighed, models.GenerateUUID(),
		events.BoxWeighedData{Correlation: corr(id), Customer: customer("Ada"), BoxMetrics: metrics()})
}

func invoiceMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventInvoiceProvided, models.GenerateUUID(),
		events.InvoiceProvidedData{Correlation: corr(id), Customer: customer("Ada"), BoxMetrics: metrics(), InvoiceTotals: totals()})
}

func paidMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventInvoicePaid, models.GenerateUUID(),
		events.InvoicePaidData{
			Correlation:   corr(id),
			Customer:      customer("Ada"),
			BoxMetrics:    metrics(),
			InvoiceTotals: totals(),
			PaymentInfo:   events.PaymentInfo{PaidInFull: true, TimestampPaymentInitiated: testTime},
		})
}

func cancelledMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventInvoiceCancelled, models.GenerateUUID(),
		events.InvoiceCancelledData{
			Correlation:   corr(id),
			Customer:      customer("Ada"),
			BoxMetrics:    metrics(),
			InvoiceTotals: totals(),
			PaymentInfo:   events.PaymentInfo{PaidInFull: false, TimestampPaymentInitiated: testTime},
		})
}

func trackingMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventTrackingProvided, models.GenerateUUID(),
		events.TrackingProvidedData{
			Correlation:  corr(id),
			Customer:     customer("Ada"),
			TrackingInfo: events.TrackingInfo{TrackingNumber: "1Z999", CarrierID: "ups", TimestampTrackingCreated: testTime},
		})
}

func sentMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventBoxSentByClerk, models.GenerateUUID(),
		events.BoxSentData{Correlation: corr(id), Customer: customer("Ada"), TimestampBoxLeftFacility: testTime})
}

func deliveredMsg(id models.ID) domain.Message {
	return domain.NewMessage(domain.EventBoxDelivered, models.GenerateUUID(),
		events.BoxDeliveredData{
			Correlation:              corr(id),
			Customer:                 customer("Ada"),
			TimestampBoxLeftFacility: testTime,
			DeliveryInfo:             events.DeliveryInfo{DriverID: "d-7", TruckID: "t-3", TimestampDeliveryCompleted: testTime.Add(time.Hour)},
		})
}

func newMemoryStore() *infrastructure.MemoryInstanceStore {
	return infrastructure.NewMemoryInstanceStore()
}
