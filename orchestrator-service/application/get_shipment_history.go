package application

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetShipmentHistoryQuery represents the query for a shipment's journal
type GetShipmentHistoryQuery struct {
	CorrelationID string `json:"correlation_id"`
}

// HistoryEntry is one journalled inbound or outbound event
type HistoryEntry struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type GetShipmentHistoryResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Events        []*HistoryEntry `json:"events"`
}

// GetShipmentHistory reads the journal, which outlives the saga instance
type GetShipmentHistory struct {
	journal events.EventStore
}

// NewGetShipmentHistory creates a new GetShipmentHistory use case
func NewGetShipmentHistory(journal events.EventStore) *GetShipmentHistory {
	return &GetShipmentHistory{journal: journal}
}

func (uc *GetShipmentHistory) Execute(ctx context.Context, query *GetShipmentHistoryQuery) (*GetShipmentHistoryResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "get_shipment_history",
		trace.WithAttributes(attribute.String("correlation_id", query.CorrelationID)),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordQuery(ctx, "get_shipment_history", status, time.Since(start))
	}()

	id, err := models.NewID(query.CorrelationID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(domain.ErrInvalidMessage, "invalid correlation id: %v", err)
	}

	evts, err := uc.journal.GetEvents(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(domain.ErrStoreFailure, "read journal: %v", err)
	}
	if len(evts) == 0 {
		status = "not_found"
		return nil, errors.Wrapf(domain.ErrShipmentNotFound, "no history for shipment %s", id)
	}

	resp := &GetShipmentHistoryResponse{
		CorrelationID: id.String(),
		Events:        make([]*HistoryEntry, 0, len(evts)),
	}
	for _, evt := range evts {
		data, err := evt.MarshalPayload()
		if err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "encode journalled event %s", evt.ID)
		}
		resp.Events = append(resp.Events, &HistoryEntry{
			EventID:   evt.ID.String(),
			EventType: evt.EventType,
			Timestamp: evt.Timestamp.Format(timestampLayout),
			Data:      data,
		})
	}

	span.SetAttributes(attribute.Int("count", len(resp.Events)))

	status = "success"
	return resp, nil
}
