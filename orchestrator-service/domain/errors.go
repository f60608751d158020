package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/models"
)

var (
	// ErrUnrouteableEvent: a non-initiating event names no live saga
	ErrUnrouteableEvent = errors.New("unrouteable event")
	// ErrUnhandledTransition: the saga exists but the event is illegal in its state
	ErrUnhandledTransition = errors.New("unhandled transition")
	// ErrStoreFailure: the instance store could not be read or written
	ErrStoreFailure = errors.New("instance store failure")
	// ErrVersionConflict: a compare-and-swap Put lost against a concurrent writer
	ErrVersionConflict = errors.New("instance version conflict")
	// ErrInvalidMessage: the inbound message is malformed or of an unknown type
	ErrInvalidMessage = errors.New("invalid message")
	// ErrPublishFailure: the state was persisted but the outbound event was not published
	ErrPublishFailure = errors.New("outbound publish failure")
	// ErrShipmentNotFound is returned by queries
	ErrShipmentNotFound = errors.New("shipment not found")
)

// UnrouteableEventError carries the correlation id nobody answered to
type UnrouteableEventError struct {
	CorrelationID models.ID
	Event         EventType
}

func (e *UnrouteableEventError) Error() string {
	return fmt.Sprintf("unrouteable event: %s for correlation id %s matches no live shipment", e.Event, e.CorrelationID)
}

func (e *UnrouteableEventError) Unwrap() error {
	return ErrUnrouteableEvent
}

// UnhandledTransitionError describes an event that is not legal in the
// saga's current state. The saga is left untouched.
type UnhandledTransitionError struct {
	CorrelationID models.ID
	State         State
	Event         EventType
	Accepted      []State
}

func (e *UnhandledTransitionError) Error() string {
	accepted := make([]string, len(e.Accepted))
	for i, s := range e.Accepted {
		accepted[i] = s.String()
	}
	return fmt.Sprintf("unhandled transition: %s is not accepted in state %s for shipment %s (accepted in: %s)",
		e.Event, e.State, e.CorrelationID, strings.Join(accepted, ", "))
}

func (e *UnhandledTransitionError) Unwrap() error {
	return ErrUnhandledTransition
}
