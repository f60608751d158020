package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/logging"
	"github.com/shipabox/shipment-saga/shared/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultStaleAfter is how long a shipment may sit untouched before it is reported
const DefaultStaleAfter = 24 * time.Hour

// FindStaleShipmentsQuery selects live shipments whose last update is older than OlderThan
type FindStaleShipmentsQuery struct {
	OlderThan time.Duration `json:"older_than"`
}

// StaleShipmentResponse is a stuck shipment and how long it has been idle
type StaleShipmentResponse struct {
	*ShipmentResponse
	IdleFor string `json:"idle_for"`
}

type FindStaleShipmentsResponse struct {
	Shipments []*StaleShipmentResponse `json:"shipments"`
	Count     int                      `json:"count"`
	OlderThan string                   `json:"older_than"`
}

// FindStaleShipments reports sagas that stopped receiving events. It only
// detects; nothing is transitioned or removed.
type FindStaleShipments struct {
	store domain.InstanceStore
	now   func() time.Time
}

// NewFindStaleShipments creates a new FindStaleShipments use case
func NewFindStaleShipments(store domain.InstanceStore) *FindStaleShipments {
	return &FindStaleShipments{store: store, now: time.Now}
}

func (uc *FindStaleShipments) Execute(ctx context.Context, query *FindStaleShipmentsQuery) (*FindStaleShipmentsResponse, error) {
	start := time.Now()
	ctx, span := telemetry.StartSpan(ctx, "find_stale_shipments",
		trace.WithAttributes(attribute.String("older_than", query.OlderThan.String())),
	)
	defer span.End()

	status := "error"
	defer func() {
		recordQuery(ctx, "find_stale_shipments", status, time.Since(start))
	}()

	if query.OlderThan <= 0 {
		return nil, errors.Wrapf(domain.ErrInvalidMessage, "older_than must be positive, got %s", query.OlderThan)
	}

	shipments, err := uc.store.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, storeFailure(err, "list shipments")
	}

	now := uc.now()
	resp := &FindStaleShipmentsResponse{
		Shipments: make([]*StaleShipmentResponse, 0),
		OlderThan: query.OlderThan.String(),
	}
	for _, s := range shipments {
		idle := now.Sub(s.Timestamps.UpdatedAt)
		if idle < query.OlderThan {
			continue
		}
		resp.Shipments = append(resp.Shipments, &StaleShipmentResponse{
			ShipmentResponse: NewShipmentResponse(s),
			IdleFor:          idle.Truncate(time.Second).String(),
		})
	}
	resp.Count = len(resp.Shipments)

	span.SetAttributes(attribute.Int("count", resp.Count))

	status = "success"
	return resp, nil
}

// StaleMonitor periodically logs and gauges stuck shipments
type StaleMonitor struct {
	finder     *FindStaleShipments
	staleAfter time.Duration
	interval   time.Duration
	logger     *zap.Logger
}

// NewStaleMonitor creates a monitor; non-positive durations fall back to defaults
func NewStaleMonitor(finder *FindStaleShipments, staleAfter, interval time.Duration, logger *zap.Logger) *StaleMonitor {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if interval <= 0 {
		interval = time.Minute
	}
	logger = logging.OrNop(logger)
	return &StaleMonitor{
		finder:     finder,
		staleAfter: staleAfter,
		interval:   interval,
		logger:     logger,
	}
}

// Run checks once immediately and then on every tick until ctx is done
func (m *StaleMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		m.Check(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Check runs a single scan and returns the number of stale shipments
func (m *StaleMonitor) Check(ctx context.Context) int {
	resp, err := m.finder.Execute(ctx, &FindStaleShipmentsQuery{OlderThan: m.staleAfter})
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("failed to scan for stale shipments", zap.Error(err))
		}
		return 0
	}

	telemetry.RecordGauge(ctx, "saga_stale_instances", "Live shipments not updated within the stale threshold", float64(resp.Count))

	for _, s := range resp.Shipments {
		m.logger.Warn("shipment is stale",
			zap.String("correlation_id", s.CorrelationID),
			zap.String("state", s.State),
			zap.String("customer_name", s.CustomerName),
			zap.String("idle_for", s.IdleFor),
		)
	}
	return resp.Count
}
