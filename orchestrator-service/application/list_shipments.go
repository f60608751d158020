package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ListShipmentsQuery filters live shipments; an empty State lists all of them
type ListShipmentsQuery struct {
	State string `json:"state,omitempty"`
}

// ListShipmentsResponse holds the matching shipments, oldest first
type ListShipmentsResponse struct {
	Shipments []*ShipmentResponse `json:"shipments"`
	Count     int                 `json:"count"`
}

// ListShipments use case
type ListShipments struct {
	store domain.InstanceStore
}

// NewListShipments creates a new ListShipments use case
func NewListShipments(store domain.InstanceStore) *ListShipments {
	return &ListShipments{store: store}
}

func (uc *ListShipments) Execute(ctx context.Context, query *ListShipmentsQuery) (*ListShipmentsResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "list_shipments",
		trace.WithAttributes(attribute.String("state", query.State)),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordQuery(ctx, "list_shipments", status, time.Since(start))
	}()

	var filter domain.State
	if query.State != "" {
		filter = domain.State(query.State)
		if !filter.IsValid() {
			return nil, errors.Wrapf(domain.ErrInvalidMessage, "unknown state %q", query.State)
		}
	}

	shipments, err := uc.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, storeFailure(err, "list shipments")
	}

	resp := &ListShipmentsResponse{Shipments: make([]*ShipmentResponse, 0, len(shipments))}
	for _, s := range shipments {
		if filter != "" && s.State != filter {
			continue
		}
		resp.Shipments = append(resp.Shipments, NewShipmentResponse(s))
	}
	resp.Count = len(resp.Shipments)

	span.SetAttributes(attribute.Int("count", resp.Count))

	status = "success"
	return resp, nil
}
