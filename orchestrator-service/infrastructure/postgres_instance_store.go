package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/models"
)

var _ domain.InstanceStore = (*PostgresInstanceStore)(nil)

// ShipmentsSchema creates the shipment saga table. Finalized sagas are soft
// deleted; the partial index keeps natural keys unique among live ones.
const ShipmentsSchema = `
CREATE TABLE IF NOT EXISTS shipments (
	correlation_id TEXT PRIMARY KEY,
	natural_key    TEXT NOT NULL,
	state          TEXT NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL,
	deleted_at     TIMESTAMPTZ,
	version        INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS shipments_live_natural_key_idx
	ON shipments (natural_key) WHERE deleted_at IS NULL;
`

// PostgresInstanceStore implements InstanceStore using PostgreSQL
type PostgresInstanceStore struct {
	db *sqlx.DB
}

// NewPostgresInstanceStore creates a new PostgresInstanceStore
func NewPostgresInstanceStore(db *sqlx.DB) *PostgresInstanceStore {
	return &PostgresInstanceStore{db: db}
}

// postgresShipment represents a shipment in database
type postgresShipment struct {
	CorrelationID string     `db:"correlation_id"`
	NaturalKey    string     `db:"natural_key"`
	State         string     `db:"state"`
	Payload       []byte     `db:"payload"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	DeletedAt     *time.Time `db:"deleted_at"`
	Version       int        `db:"version"`
}

const selectShipment = `
	SELECT correlation_id, natural_key, state, payload,
		   created_at, updated_at, deleted_at, version
	FROM shipments`

// Get finds a live shipment by correlation id
func (r *PostgresInstanceStore) Get(ctx context.Context, id models.ID) (*domain.Shipment, error) {
	return r.getOne(ctx, selectShipment+`
		WHERE correlation_id = $1 AND deleted_at IS NULL`, id.String())
}

// FindByNaturalKey finds the live shipment for a customer
func (r *PostgresInstanceStore) FindByNaturalKey(ctx context.Context, key string) (*domain.Shipment, error) {
	return r.getOne(ctx, selectShipment+`
		WHERE natural_key = $1 AND deleted_at IS NULL`, key)
}

func (r *PostgresInstanceStore) getOne(ctx context.Context, query string, arg string) (*domain.Shipment, error) {
	var pgShipment postgresShipment
	err := r.db.GetContext(ctx, &pgShipment, query, arg)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find shipment")
	}

	return r.toDomain(&pgShipment)
}

// Put inserts a version 1 shipment or replaces the stored Version-1 row
func (r *PostgresInstanceStore) Put(ctx context.Context, shipment *domain.Shipment) error {
	pgShipment, err := r.toPostgres(shipment)
	if err != nil {
		return err
	}

	if shipment.Version.IsNew() {
		return r.insertShipment(ctx, pgShipment)
	}
	return r.updateShipment(ctx, pgShipment, shipment.Version.Previous())
}

func (r *PostgresInstanceStore) insertShipment(ctx context.Context, pgShipment *postgresShipment) error {
	query := `
		INSERT INTO shipments (
			correlation_id, natural_key, state, payload,
			created_at, updated_at, version
		) VALUES (
			:correlation_id, :natural_key, :state, :payload,
			:created_at, :updated_at, :version
		)
		ON CONFLICT DO NOTHING`

	result, err := r.db.NamedExecContext(ctx, query, pgShipment)
	if err != nil {
		return errors.Wrap(err, "failed to insert shipment")
	}

	return r.expectOneRow(result, pgShipment.CorrelationID)
}

func (r *PostgresInstanceStore) updateShipment(ctx context.Context, pgShipment *postgresShipment, oldVersion int) error {
	query := `
		UPDATE shipments
		SET natural_key = :natural_key, state = :state, payload = :payload,
			updated_at = :updated_at, version = :version
		WHERE correlation_id = :correlation_id AND version = :old_version AND deleted_at IS NULL`

	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"correlation_id": pgShipment.CorrelationID,
		"natural_key":    pgShipment.NaturalKey,
		"state":          pgShipment.State,
		"payload":        pgShipment.Payload,
		"updated_at":     pgShipment.UpdatedAt,
		"version":        pgShipment.Version,
		"old_version":    oldVersion,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update shipment")
	}

	return r.expectOneRow(result, pgShipment.CorrelationID)
}

func (r *PostgresInstanceStore) expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read affected rows")
	}
	if rows == 0 {
		return errors.Wrapf(domain.ErrVersionConflict, "shipment %s was modified concurrently", id)
	}
	return nil
}

// Delete soft deletes a shipment that is still at version
func (r *PostgresInstanceStore) Delete(ctx context.Context, id models.ID, version int) error {
	query := `
		UPDATE shipments
		SET deleted_at = $2, updated_at = $2
		WHERE correlation_id = $1 AND version = $3 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id.String(), time.Now().UTC(), version)
	if err != nil {
		return errors.Wrap(err, "failed to delete shipment")
	}

	return r.expectOneRow(result, id.String())
}

// List returns every live shipment, oldest first
func (r *PostgresInstanceStore) List(ctx context.Context) ([]*domain.Shipment, error) {
	var pgShipments []postgresShipment
	err := r.db.SelectContext(ctx, &pgShipments, selectShipment+`
		WHERE deleted_at IS NULL
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list shipments")
	}

	shipments := make([]*domain.Shipment, len(pgShipments))
	for i := range pgShipments {
		shipment, err := r.toDomain(&pgShipments[i])
		if err != nil {
			return nil, err
		}
		shipments[i] = shipment
	}

	return shipments, nil
}

// toPostgres converts a shipment to its row; the full aggregate lives in payload
func (r *PostgresInstanceStore) toPostgres(shipment *domain.Shipment) (*postgresShipment, error) {
	payload, err := json.Marshal(shipment)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal shipment")
	}

	return &postgresShipment{
		CorrelationID: shipment.CorrelationID.String(),
		NaturalKey:    shipment.NaturalKey(),
		State:         string(shipment.State),
		Payload:       payload,
		CreatedAt:     shipment.Timestamps.CreatedAt,
		UpdatedAt:     shipment.Timestamps.UpdatedAt,
		Version:       shipment.Version.Value,
	}, nil
}

// toDomain converts a row back to a shipment; columns win over the payload
func (r *PostgresInstanceStore) toDomain(pgShipment *postgresShipment) (*domain.Shipment, error) {
	var shipment domain.Shipment
	if err := json.Unmarshal(pgShipment.Payload, &shipment); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal shipment")
	}

	shipment.CorrelationID = models.ID(pgShipment.CorrelationID)
	shipment.State = domain.State(pgShipment.State)
	shipment.Timestamps = models.Timestamps{
		CreatedAt: pgShipment.CreatedAt,
		UpdatedAt: pgShipment.UpdatedAt,
	}
	shipment.Version = models.Version{Value: pgShipment.Version}

	return &shipment, nil
}
