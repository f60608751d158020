package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultFaultsLimit = 50
	maxFaultsLimit     = 500
)

// ListFaultsQuery pages through journalled saga faults, oldest first
type ListFaultsQuery struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// FaultEntry is one event the workflow refused
type FaultEntry struct {
	EventID       string `json:"event_id"`
	CorrelationID string `json:"correlation_id"`
	State         string `json:"state"`
	EventType     string `json:"event_type"`
	RefusedID     string `json:"refused_event_id"`
	Reason        string `json:"reason"`
	FaultedAt     string `json:"faulted_at"`
}

type ListFaultsResponse struct {
	Faults []*FaultEntry `json:"faults"`
	Offset int           `json:"offset"`
	Count  int           `json:"count"`
}

// ListFaults reads saga faults back from the journal
type ListFaults struct {
	journal events.EventStore
}

// NewListFaults creates a new ListFaults use case
func NewListFaults(journal events.EventStore) *ListFaults {
	return &ListFaults{journal: journal}
}

func (uc *ListFaults) Execute(ctx context.Context, query *ListFaultsQuery) (*ListFaultsResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "list_faults",
		trace.WithAttributes(
			attribute.Int("offset", query.Offset),
			attribute.Int("limit", query.Limit),
		),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordQuery(ctx, "list_faults", status, time.Since(start))
	}()

	if query.Offset < 0 || query.Limit < 0 {
		return nil, errors.Wrapf(domain.ErrInvalidMessage, "offset and limit must not be negative")
	}
	limit := query.Limit
	switch {
	case limit == 0:
		limit = DefaultFaultsLimit
	case limit > maxFaultsLimit:
		limit = maxFaultsLimit
	}

	evts, err := uc.journal.GetEventsByType(ctx, events.SagaFaultedEvent, query.Offset, limit)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(domain.ErrStoreFailure, "read journal: %v", err)
	}

	resp := &ListFaultsResponse{
		Faults: make([]*FaultEntry, 0, len(evts)),
		Offset: query.Offset,
	}
	for _, evt := range evts {
		var data events.SagaFaultedData
		if err := evt.UnmarshalPayload(&data); err != nil {
			span.RecordError(err)
			return nil, errors.Wrapf(err, "decode journalled fault %s", evt.ID)
		}
		resp.Faults = append(resp.Faults, &FaultEntry{
			EventID:       evt.ID.String(),
			CorrelationID: data.CorrelationID.String(),
			State:         data.State,
			EventType:     data.EventType,
			RefusedID:     data.EventID.String(),
			Reason:        data.Reason,
			FaultedAt:     data.FaultedAt.Format(timestampLayout),
		})
	}
	resp.Count = len(resp.Faults)

	status = "success"
	return resp, nil
}
