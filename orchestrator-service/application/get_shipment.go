package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const timestampLayout = "2006-01-02T15:04:05Z07:00"

// GetShipmentQuery represents the query to get a live shipment
type GetShipmentQuery struct {
	CorrelationID string `json:"correlation_id"`
}

// ShipmentResponse is the read model of a live shipment
type ShipmentResponse struct {
	CorrelationID  string           `json:"correlation_id"`
	State          string           `json:"state"`
	CustomerName   string           `json:"customer_name"`
	Address        domain.Address   `json:"address"`
	Box            *domain.Box      `json:"box,omitempty"`
	Invoice        *domain.Invoice  `json:"invoice,omitempty"`
	Payment        *domain.Payment  `json:"payment,omitempty"`
	Tracking       *domain.Tracking `json:"tracking,omitempty"`
	LeftFacilityAt string           `json:"left_facility_at,omitempty"`
	Delivery       *domain.Delivery `json:"delivery,omitempty"`
	Version        int              `json:"version"`
	CreatedAt      string           `json:"created_at"`
	UpdatedAt      string           `json:"updated_at"`
}

// NewShipmentResponse converts a shipment to its read model
func NewShipmentResponse(s *domain.Shipment) *ShipmentResponse {
	resp := &ShipmentResponse{
		CorrelationID: s.CorrelationID.String(),
		State:         s.State.String(),
		CustomerName:  s.CustomerName,
		Address:       s.Address,
		Box:           s.Box,
		Invoice:       s.Invoice,
		Payment:       s.Payment,
		Tracking:      s.Tracking,
		Delivery:      s.Delivery,
		Version:       s.Version.Value,
		CreatedAt:     s.Timestamps.CreatedAt.Format(timestampLayout),
		UpdatedAt:     s.Timestamps.UpdatedAt.Format(timestampLayout),
	}
	if s.LeftFacilityAt != nil {
		resp.LeftFacilityAt = s.LeftFacilityAt.Format(timestampLayout)
	}
	return resp
}

// GetShipment use case
type GetShipment struct {
	store domain.InstanceStore
}

// NewGetShipment creates a new GetShipment use case
func NewGetShipment(store domain.InstanceStore) *GetShipment {
	return &GetShipment{store: store}
}

// Execute returns the live shipment, or ErrShipmentNotFound once it has
// finalized or was never created
func (uc *GetShipment) Execute(ctx context.Context, query *GetShipmentQuery) (*ShipmentResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "get_shipment",
		trace.WithAttributes(attribute.String("correlation_id", query.CorrelationID)),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordQuery(ctx, "get_shipment", status, time.Since(start))
	}()

	id, err := models.NewID(query.CorrelationID)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrapf(domain.ErrInvalidMessage, "invalid correlation id: %v", err)
	}

	shipment, err := uc.store.Get(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, storeFailure(err, "get shipment")
	}
	if shipment == nil {
		status = "not_found"
		return nil, errors.Wrapf(domain.ErrShipmentNotFound, "shipment %s", id)
	}

	span.SetAttributes(attribute.String("state", shipment.State.String()))

	status = "success"
	return NewShipmentResponse(shipment), nil
}

func recordQuery(ctx context.Context, operation, status string, d time.Duration) {
	telemetry.RecordCounter(ctx, "shipment_queries_total", "Total shipment queries", 1,
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	telemetry.RecordHistogram(ctx, "shipment_query_duration_seconds", "Shipment query duration", d.Seconds(),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}
