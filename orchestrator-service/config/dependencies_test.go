package config

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shipabox/shipment-saga/orchestrator-service/application"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load(t.TempDir(), "missing")
	require.NoError(t, err)
	cfg.Telemetry.Enabled = false
	return cfg
}

func TestBuildDependencies_InMemory(t *testing.T) {
	ctx := context.Background()
	deps, err := BuildDependencies(ctx, memoryConfig(t), nil)
	require.NoError(t, err)
	defer deps.Close(ctx)

	require.NoError(t, deps.Subscribe(ctx))
	assert.Equal(t, "shipment/standard", deps.Workflow.Name())

	dropped, err := deps.DropBox.Execute(ctx, &application.DropBoxCommand{CustomerName: "Ada", AddressCity: "Springfield"})
	require.NoError(t, err)
	id := models.ID(dropped.CorrelationID)

	// an inbound event published on the bus reaches the orchestrator
	weighed := events.NewEvent(id, events.BoxWeighedEvent, events.BoxWeighedData{
		Correlation: events.Correlation{CorrelationID: id},
		BoxMetrics:  events.BoxMetrics{BoxWeight: 1.5, BoxWeightUnit: "kg"},
	}).WithCorrelationID(id)
	require.NoError(t, deps.EventPublisher.Publish(ctx, weighed))

	shipment, err := deps.GetShipment.Execute(ctx, &application.GetShipmentQuery{CorrelationID: id.String()})
	require.NoError(t, err)
	require.NotNil(t, shipment.Box)
	assert.Equal(t, 1.5, shipment.Box.Weight)

	history, err := deps.GetShipmentHistory.Execute(ctx, &application.GetShipmentHistoryQuery{CorrelationID: id.String()})
	require.NoError(t, err)
	assert.Len(t, history.Events, 3)
}

func TestBuildDependencies_Policy(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Dispatch.Policy = string(domain.PolicyStrict)

	deps, err := BuildDependencies(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer deps.Close(context.Background())

	assert.Equal(t, []domain.State{domain.StateBoxInTruck}, deps.Workflow.AcceptedStates(domain.EventBoxDelivered))
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS shipments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS event_stream").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, Migrate(ctx, sqlx.NewDb(db, "sqlmock")))
	assert.NoError(t, mock.ExpectationsWereMet())
}
