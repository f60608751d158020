package application

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/models"
)

// Resolution is the saga instance an inbound message belongs to
type Resolution struct {
	// Shipment is a working copy; it is only persisted by the orchestrator
	Shipment *domain.Shipment
	// Created is set when no live instance matched and a new one was minted
	Created bool
}

// CorrelationResolver finds the shipment a message is addressed to. The
// initiating command is correlated by natural key (customer name) and
// creates a shipment with a fresh id when none is live; every other event
// is correlated by its correlation id and never creates one.
type CorrelationResolver struct {
	store domain.InstanceStore
	newID func() models.ID
}

// NewCorrelationResolver creates a resolver; a nil newID uses random UUIDs
func NewCorrelationResolver(store domain.InstanceStore, newID func() models.ID) *CorrelationResolver {
	if newID == nil {
		newID = models.GenerateUUID
	}
	return &CorrelationResolver{store: store, newID: newID}
}

// Resolve returns the target shipment for msg
func (r *CorrelationResolver) Resolve(ctx context.Context, msg domain.Message, initiating bool) (*Resolution, error) {
	if initiating {
		key := msg.NaturalKey()
		existing, err := r.store.FindByNaturalKey(ctx, key)
		if err != nil {
			return nil, storeFailure(err, "find shipment by natural key")
		}
		if existing != nil {
			return &Resolution{Shipment: existing}, nil
		}
		return r.create(key), nil
	}

	shipment, err := r.store.Get(ctx, msg.CorrelationID)
	if err != nil {
		return nil, storeFailure(err, "get shipment")
	}
	if shipment == nil {
		return nil, &domain.UnrouteableEventError{CorrelationID: msg.CorrelationID, Event: msg.Type}
	}
	return &Resolution{Shipment: shipment}, nil
}

// Refresh re-reads a shipment found by natural key once its id lock is
// held. If it finalized in the meantime the drop starts a new saga.
func (r *CorrelationResolver) Refresh(ctx context.Context, res *Resolution) (*Resolution, error) {
	if res.Created {
		return res, nil
	}
	shipment, err := r.store.Get(ctx, res.Shipment.CorrelationID)
	if err != nil {
		return nil, storeFailure(err, "get shipment")
	}
	if shipment == nil {
		return r.create(res.Shipment.NaturalKey()), nil
	}
	return &Resolution{Shipment: shipment}, nil
}

func (r *CorrelationResolver) create(key string) *Resolution {
	return &Resolution{
		Shipment: domain.NewShipment(r.newID(), key),
		Created:  true,
	}
}

// storeFailure marks err as a store failure unless it is a version conflict
func storeFailure(err error, op string) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		return errors.Wrap(err, op)
	}
	return errors.Wrapf(domain.ErrStoreFailure, "%s: %v", op, err)
}
