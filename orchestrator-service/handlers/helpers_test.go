package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/shipabox/shipment-saga/orchestrator-service/application"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/orchestrator-service/infrastructure"
	"github.com/shipabox/shipment-saga/shared/events"
	sharedinfra "github.com/shipabox/shipment-saga/shared/infrastructure"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu   sync.Mutex
	evts []*events.Event
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, evts ...*events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.evts = append(p.evts, evts...)
	return nil
}

func (p *recordingPublisher) Events() []*events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*events.Event(nil), p.evts...)
}

type harness struct {
	orchestrator *application.Orchestrator
	store        *infrastructure.MemoryInstanceStore
	journal      *sharedinfra.MemoryEventStore
	outbound     *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	workflow, err := domain.NewWorkflow(domain.PolicyStandard)
	require.NoError(t, err)

	h := &harness{
		store:    infrastructure.NewMemoryInstanceStore(),
		journal:  sharedinfra.NewMemoryEventStore(),
		outbound: &recordingPublisher{},
	}
	h.orchestrator = application.NewOrchestrator(workflow, h.store, h.outbound, application.WithJournal(h.journal))
	return h
}

// drop starts a saga and returns its correlation id
func (h *harness) drop(t *testing.T, name string) models.ID {
	t.Helper()
	resp, err := application.NewDropBox(h.orchestrator).Execute(context.Background(), &application.DropBoxCommand{
		CustomerName: name,
		AddressCity:  "Springfield",
		AddressState: "IL",
	})
	require.NoError(t, err)
	return models.ID(resp.CorrelationID)
}

func envelope(eventType string, id models.ID, data interface{}) *events.Event {
	return events.NewEvent(id, eventType, data).WithCorrelationID(id)
}
