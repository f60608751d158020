package infrastructure

import (
	"context"
	"sync"

	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
)

var _ events.EventStore = (*MemoryEventStore)(nil)

// MemoryEventStore is an in-process journal used with the memory store
type MemoryEventStore struct {
	mu      sync.RWMutex
	streams map[models.ID][]*events.Event
	all     []*events.Event
	seen    map[models.ID]struct{}
}

// NewMemoryEventStore creates an empty journal
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams: make(map[models.ID][]*events.Event),
		seen:    make(map[models.ID]struct{}),
	}
}

// Append journals events, skipping ids that are already present
func (s *MemoryEventStore) Append(_ context.Context, aggregateID models.ID, evts ...*events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range evts {
		if event == nil {
			continue
		}
		if _, ok := s.seen[event.ID]; ok && !event.ID.IsZero() {
			continue
		}
		stored := event.Clone()
		stored.AggregateID = aggregateID
		s.streams[aggregateID] = append(s.streams[aggregateID], stored)
		s.all = append(s.all, stored)
		s.seen[event.ID] = struct{}{}
	}
	return nil
}

// GetEvents returns the stream of aggregateID in append order
func (s *MemoryEventStore) GetEvents(_ context.Context, aggregateID models.ID) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID]
	result := make([]*events.Event, len(stream))
	for i, event := range stream {
		result[i] = event.Clone()
	}
	return result, nil
}

// GetEventsByType pages through every stream by event type
func (s *MemoryEventStore) GetEventsByType(_ context.Context, eventType string, offset, limit int) ([]*events.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*events.Event
	skipped := 0
	for _, event := range s.all {
		if event.EventType != eventType {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if limit > 0 && len(result) >= limit {
			break
		}
		result = append(result, event.Clone())
	}
	return result, nil
}
