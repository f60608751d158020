package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/models"
)

var _ domain.InstanceStore = (*MemoryInstanceStore)(nil)

// MemoryInstanceStore keeps shipments in process memory. Stored values are
// copies, so callers never share state with the store.
type MemoryInstanceStore struct {
	mu          sync.RWMutex
	shipments   map[models.ID]*domain.Shipment
	naturalKeys map[string]models.ID
}

// NewMemoryInstanceStore creates an empty store
func NewMemoryInstanceStore() *MemoryInstanceStore {
	return &MemoryInstanceStore{
		shipments:   make(map[models.ID]*domain.Shipment),
		naturalKeys: make(map[string]models.ID),
	}
}

// Get returns the shipment or nil when absent
func (s *MemoryInstanceStore) Get(_ context.Context, id models.ID) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shipments[id].Clone(), nil
}

// FindByNaturalKey returns the live shipment for key or nil
func (s *MemoryInstanceStore) FindByNaturalKey(_ context.Context, key string) (*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.naturalKeys[key]
	if !ok {
		return nil, nil
	}
	return s.shipments[id].Clone(), nil
}

// Put inserts or replaces a shipment with compare-and-swap on its version
func (s *MemoryInstanceStore) Put(_ context.Context, shipment *domain.Shipment) error {
	if shipment == nil || shipment.CorrelationID.IsZero() {
		return errors.New("shipment with a correlation id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.shipments[shipment.CorrelationID]
	key := shipment.NaturalKey()

	if shipment.Version.IsNew() {
		if exists {
			return errors.Wrapf(domain.ErrVersionConflict, "shipment %s already exists", shipment.CorrelationID)
		}
		if owner, taken := s.naturalKeys[key]; taken && owner != shipment.CorrelationID {
			return errors.Wrapf(domain.ErrVersionConflict, "natural key %q belongs to shipment %s", key, owner)
		}
	} else {
		if !exists {
			return errors.Wrapf(domain.ErrVersionConflict, "shipment %s no longer exists", shipment.CorrelationID)
		}
		if current.Version.Value != shipment.Version.Previous() {
			return errors.Wrapf(domain.ErrVersionConflict, "shipment %s is at version %d, expected %d",
				shipment.CorrelationID, current.Version.Value, shipment.Version.Previous())
		}
		if current.NaturalKey() != key {
			delete(s.naturalKeys, current.NaturalKey())
		}
	}

	s.shipments[shipment.CorrelationID] = shipment.Clone()
	s.naturalKeys[key] = shipment.CorrelationID
	return nil
}

// Delete removes a shipment that is still at version
func (s *MemoryInstanceStore) Delete(_ context.Context, id models.ID, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.shipments[id]
	if !ok {
		return errors.Wrapf(domain.ErrVersionConflict, "shipment %s no longer exists", id)
	}
	if current.Version.Value != version {
		return errors.Wrapf(domain.ErrVersionConflict, "shipment %s is at version %d, expected %d",
			id, current.Version.Value, version)
	}
	if s.naturalKeys[current.NaturalKey()] == id {
		delete(s.naturalKeys, current.NaturalKey())
	}
	delete(s.shipments, id)
	return nil
}

// List returns every live shipment, oldest first
func (s *MemoryInstanceStore) List(_ context.Context) ([]*domain.Shipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Shipment, 0, len(s.shipments))
	for _, shipment := range s.shipments {
		result = append(result, shipment.Clone())
	}
	sortShipments(result)
	return result, nil
}

func sortShipments(shipments []*domain.Shipment) {
	sort.Slice(shipments, func(i, j int) bool {
		a, b := shipments[i].Timestamps.CreatedAt, shipments[j].Timestamps.CreatedAt
		if a.Equal(b) {
			return shipments[i].CorrelationID < shipments[j].CorrelationID
		}
		return a.Before(b)
	})
}
