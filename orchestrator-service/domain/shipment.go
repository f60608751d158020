package domain

import (
	"context"
	"time"

	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
)

// State is the workflow position of a shipment saga
type State string

const (
	// StateNone is the sentinel for a saga that does not exist yet
	StateNone         State = ""
	StateBoxInStore   State = "BoxInStore"
	StateBoxInTruck   State = "BoxInTruck"
	StateBoxDelivered State = "BoxDelivered"
)

// Rank orders states along the workflow; a saga never moves to a lower rank
func (s State) Rank() int {
	switch s {
	case StateBoxInStore:
		return 1
	case StateBoxInTruck:
		return 2
	case StateBoxDelivered:
		return 3
	default:
		return 0
	}
}

// IsValid reports whether s is one of the live workflow states
func (s State) IsValid() bool {
	return s.Rank() > 0
}

func (s State) String() string {
	if s == StateNone {
		return "None"
	}
	return string(s)
}

// Address is where the box is headed
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Box holds dimensions and weight as measured by the clerk
type Box struct {
	DimensionsX float64 `json:"dimensions_x"`
	DimensionsY float64 `json:"dimensions_y"`
	DimensionsZ float64 `json:"dimensions_z"`
	Weight      float64 `json:"weight"`
	WeightUnit  string  `json:"weight_unit"`
}

// Invoice holds the taxable invoice totals
type Invoice struct {
	SubTotal  float64   `json:"sub_total"`
	Tax       float64   `json:"tax"`
	Total     float64   `json:"total"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment holds the customer's answer to the invoice
type Payment struct {
	PaidInFull  bool      `json:"paid_in_full"`
	Cancelled   bool      `json:"cancelled"`
	InitiatedAt time.Time `json:"initiated_at"`
}

// Tracking holds carrier tracking metadata
type Tracking struct {
	Number             string    `json:"number"`
	CarrierID          string    `json:"carrier_id"`
	CreatedAt          time.Time `json:"created_at"`
	DeliveryExpectedAt time.Time `json:"delivery_expected_at"`
}

// Delivery holds the completed hand-over
type Delivery struct {
	DriverID    string    `json:"driver_id"`
	TruckID     string    `json:"truck_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Shipment is one in-flight shipment saga instance. Optional sections stay
// nil until the event carrying them has been observed and are never cleared.
type Shipment struct {
	CorrelationID   models.ID         `json:"correlation_id"`
	State           State             `json:"state"`
	CustomerName    string            `json:"customer_name"`
	Address         Address           `json:"address"`
	Box             *Box              `json:"box,omitempty"`
	Invoice         *Invoice          `json:"invoice,omitempty"`
	Payment         *Payment          `json:"payment,omitempty"`
	Tracking        *Tracking         `json:"tracking,omitempty"`
	LeftFacilityAt  *time.Time        `json:"left_facility_at,omitempty"`
	Delivery        *Delivery         `json:"delivery,omitempty"`
	AppliedEventIDs []models.ID       `json:"applied_event_ids,omitempty"`
	Timestamps      models.Timestamps `json:"timestamps"`
	Version         models.Version    `json:"version"`
}

// NewShipment creates an instance for a freshly minted correlation id
func NewShipment(correlationID models.ID, customerName string) *Shipment {
	return &Shipment{
		CorrelationID: correlationID,
		State:         StateNone,
		CustomerName:  customerName,
		Timestamps:    models.NewTimestamps(),
		Version:       models.Version{Value: 0},
	}
}

// NaturalKey returns the key initiating commands are correlated by
func (s *Shipment) NaturalKey() string {
	return s.CustomerName
}

// HasApplied reports whether the inbound envelope id was already applied
func (s *Shipment) HasApplied(eventID models.ID) bool {
	if eventID.IsZero() {
		return false
	}
	for _, id := range s.AppliedEventIDs {
		if id == eventID {
			return true
		}
	}
	return false
}

// MarkApplied records an inbound envelope id
func (s *Shipment) MarkApplied(eventID models.ID) {
	if eventID.IsZero() || s.HasApplied(eventID) {
		return
	}
	s.AppliedEventIDs = append(s.AppliedEventIDs, eventID)
}

// Clone returns a deep copy so effects can run without touching stored data
func (s *Shipment) Clone() *Shipment {
	if s == nil {
		return nil
	}
	c := *s
	if s.Box != nil {
		box := *s.Box
		c.Box = &box
	}
	if s.Invoice != nil {
		invoice := *s.Invoice
		c.Invoice = &invoice
	}
	if s.Payment != nil {
		payment := *s.Payment
		c.Payment = &payment
	}
	if s.Tracking != nil {
		tracking := *s.Tracking
		c.Tracking = &tracking
	}
	if s.LeftFacilityAt != nil {
		left := *s.LeftFacilityAt
		c.LeftFacilityAt = &left
	}
	if s.Delivery != nil {
		delivery := *s.Delivery
		c.Delivery = &delivery
	}
	if s.AppliedEventIDs != nil {
		c.AppliedEventIDs = append([]models.ID(nil), s.AppliedEventIDs...)
	}
	return &c
}

// customer rebuilds the identity/address block carried by outbound events
func (s *Shipment) customer() events.Customer {
	return events.Customer{
		CustomerName:  s.CustomerName,
		AddressStreet: s.Address.Street,
		AddressCity:   s.Address.City,
		AddressState:  s.Address.State,
		AddressZip:    s.Address.Zip,
	}
}

// InstanceStore persists shipment sagas keyed by correlation id.
// Get and FindByNaturalKey return nil, nil when nothing matches. Put is a
// compare-and-swap on Version: a shipment at version 1 must not exist yet,
// any later version must replace exactly Version-1, otherwise
// ErrVersionConflict is returned. Delete is a compare-and-swap as well: it
// removes the shipment only while it is still at version and returns
// ErrVersionConflict when it moved on or is already gone.
type InstanceStore interface {
	Get(ctx context.Context, id models.ID) (*Shipment, error)
	FindByNaturalKey(ctx context.Context, key string) (*Shipment, error)
	Put(ctx context.Context, shipment *Shipment) error
	Delete(ctx context.Context, id models.ID, version int) error
	List(ctx context.Context) ([]*Shipment, error)
}
