package handlers

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/application"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/logging"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ShipmentEventHandler feeds transport envelopes to the orchestrator. It
// acknowledges everything that redelivery cannot fix and returns the error
// for store and publish failures so the transport retries them.
type ShipmentEventHandler struct {
	orchestrator *application.Orchestrator
	publisher    events.Publisher
	journal      events.EventStore
	logger       *zap.Logger
	inbound      map[domain.EventType]bool
}

// NewShipmentEventHandler creates the inbound event handler. Faulted events
// are published through publisher and, once published, journalled when
// journal is not nil.
func NewShipmentEventHandler(
	orchestrator *application.Orchestrator,
	publisher events.Publisher,
	journal events.EventStore,
	logger *zap.Logger,
) *ShipmentEventHandler {
	logger = logging.OrNop(logger)
	inbound := make(map[domain.EventType]bool, len(domain.InboundEventTypes))
	for _, t := range domain.InboundEventTypes {
		inbound[t] = true
	}
	return &ShipmentEventHandler{
		orchestrator: orchestrator,
		publisher:    publisher,
		journal:      journal,
		logger:       logger,
		inbound:      inbound,
	}
}

// HandlerID returns the unique identifier for this event handler
func (h *ShipmentEventHandler) HandlerID() string {
	return "shipment-orchestrator-event-handler"
}

// Handle implements the events.EventHandler interface
func (h *ShipmentEventHandler) Handle(ctx context.Context, event *events.Event) error {
	if event == nil {
		return nil
	}
	// the orchestrator's own outbound events come back on wildcard subscriptions
	if !h.inbound[domain.EventType(event.EventType)] {
		return nil
	}

	msg, err := domain.DecodeMessage(event)
	if err != nil {
		h.logger.Warn("dropping malformed event",
			zap.Error(err),
			zap.String("event_id", event.ID.String()),
			zap.String("event_type", event.EventType),
		)
		return nil
	}

	_, err = h.orchestrator.Dispatch(ctx, msg)
	return h.classify(ctx, msg, err)
}

func (h *ShipmentEventHandler) classify(ctx context.Context, msg domain.Message, err error) error {
	if err == nil {
		return nil
	}

	var unhandled *domain.UnhandledTransitionError
	switch {
	case errors.As(err, &unhandled):
		telemetry.RecordCounter(ctx, "saga_faults_total", "Events refused by the shipment workflow", 1,
			attribute.String("event_type", msg.Type.Short()),
			attribute.String("state", unhandled.State.String()),
		)
		return h.publishFault(ctx, msg, unhandled)

	case errors.Is(err, domain.ErrUnrouteableEvent), errors.Is(err, domain.ErrInvalidMessage):
		return nil

	default:
		// store failures, version conflicts and publish failures are retried by redelivery
		return err
	}
}

// publishFault tells operators about an event the workflow refused
func (h *ShipmentEventHandler) publishFault(ctx context.Context, msg domain.Message, fault *domain.UnhandledTransitionError) error {
	data := events.SagaFaultedData{
		Correlation: events.Correlation{CorrelationID: fault.CorrelationID},
		State:       fault.State.String(),
		EventType:   msg.Type.String(),
		EventID:     msg.EventID,
		Reason:      fault.Error(),
		FaultedAt:   time.Now().UTC(),
	}
	evt := events.NewEvent(fault.CorrelationID, events.SagaFaultedEvent, data).
		WithCorrelationID(fault.CorrelationID)

	if err := h.publisher.Publish(ctx, evt); err != nil {
		h.logger.Error("failed to publish saga fault",
			zap.Error(err),
			zap.String("correlation_id", fault.CorrelationID.String()),
			zap.String("event_type", msg.Type.String()),
		)
		return errors.Wrapf(domain.ErrPublishFailure, "publish saga fault: %v", err)
	}

	if h.journal != nil {
		if err := h.journal.Append(ctx, fault.CorrelationID, evt); err != nil {
			h.logger.Warn("failed to journal saga fault",
				zap.Error(err),
				zap.String("correlation_id", fault.CorrelationID.String()),
			)
		}
	}
	return nil
}
