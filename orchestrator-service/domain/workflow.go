package domain

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/saga"
)

// Workflow is the shipment transition table
type Workflow = saga.Table[State, EventType, *Shipment, Message]

// Transition is one shipment workflow rule
type Transition = saga.Transition[State, *Shipment, Message]

// Policy selects which states accept events whose order is not guaranteed
type Policy string

const (
	// PolicyStandard accepts clerk events only in BoxInStore and delivery
	// in BoxInStore or BoxInTruck
	PolicyStandard Policy = "standard"
	// PolicyLenient also accepts the clerk events after the box left the
	// facility, and a repeated "box sent" keeps the saga in BoxInTruck
	PolicyLenient Policy = "lenient"
	// PolicyStrict accepts "box sent" only in BoxInStore and delivery only
	// in BoxInTruck
	PolicyStrict Policy = "strict"
)

// ErrUnknownPolicy is returned for an unrecognised policy name
var ErrUnknownPolicy = errors.New("unknown workflow policy")

// ParsePolicy accepts the configured policy name; empty means standard
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyStandard:
		return PolicyStandard, nil
	case PolicyLenient:
		return PolicyLenient, nil
	case PolicyStrict:
		return PolicyStrict, nil
	}
	return "", errors.Wrapf(ErrUnknownPolicy, "%q", name)
}

var (
	receiveBox = Transition{
		Name:      "receive_box",
		Effect:    receiveBoxEffect,
		Target:    StateBoxInStore,
		HasTarget: true,
	}
	// a repeated drop of a box still in the store re-announces it
	announceBoxAgain = Transition{
		Name:   "announce_box_again",
		Effect: announceBoxEffect,
	}
	recordWeight = Transition{
		Name:   "record_weight",
		Effect: recordWeightEffect,
	}
	recordInvoice = Transition{
		Name:   "record_invoice",
		Effect: recordInvoiceEffect,
	}
	recordPayment = Transition{
		Name:   "record_payment",
		Effect: recordPaymentEffect,
	}
	recordTracking = Transition{
		Name:   "record_tracking",
		Effect: recordTrackingEffect,
	}
	loadTruck = Transition{
		Name:      "load_truck",
		Effect:    recordDepartureEffect,
		Target:    StateBoxInTruck,
		HasTarget: true,
	}
	recordDepartureAgain = Transition{
		Name:   "record_departure",
		Effect: recordDepartureEffect,
	}
	cancelShipment = Transition{
		Name:     "cancel_shipment",
		Effect:   recordCancellationEffect,
		Finalize: true,
	}
	completeDelivery = Transition{
		Name:      "complete_delivery",
		Effect:    recordDeliveryEffect,
		Target:    StateBoxDelivered,
		HasTarget: true,
		Finalize:  true,
	}
)

// NewWorkflow builds the transition table for policy
func NewWorkflow(policy Policy) (*Workflow, error) {
	b := saga.NewBuilder[State, EventType, *Shipment, Message]("shipment/"+string(policy), StateNone).
		Ordered(State.Rank).
		Initially(EventBoxDropped, receiveBox)

	switch policy {
	case PolicyStandard:
		b.During(StateBoxInStore).
			When(EventBoxDropped, announceBoxAgain).
			When(EventBoxWeighed, recordWeight).
			When(EventInvoiceProvided, recordInvoice).
			When(EventInvoicePaid, recordPayment).
			When(EventTrackingProvided, recordTracking).
			When(EventBoxSentByClerk, loadTruck).
			When(EventInvoiceCancelled, cancelShipment)
		b.During(StateBoxInStore, StateBoxInTruck).
			When(EventBoxDelivered, completeDelivery)

	case PolicyLenient:
		b.During(StateBoxInStore).
			When(EventBoxDropped, announceBoxAgain).
			When(EventBoxSentByClerk, loadTruck).
			When(EventInvoiceCancelled, cancelShipment)
		b.During(StateBoxInStore, StateBoxInTruck).
			When(EventBoxWeighed, recordWeight).
			When(EventInvoiceProvided, recordInvoice).
			When(EventInvoicePaid, recordPayment).
			When(EventTrackingProvided, recordTracking).
			When(EventBoxDelivered, completeDelivery)
		b.During(StateBoxInTruck).
			When(EventBoxSentByClerk, recordDepartureAgain)

	case PolicyStrict:
		b.During(StateBoxInStore).
			When(EventBoxDropped, announceBoxAgain).
			When(EventBoxWeighed, recordWeight).
			When(EventInvoiceProvided, recordInvoice).
			When(EventInvoicePaid, recordPayment).
			When(EventTrackingProvided, recordTracking).
			When(EventBoxSentByClerk, loadTruck).
			When(EventInvoiceCancelled, cancelShipment)
		b.During(StateBoxInTruck).
			When(EventBoxDelivered, completeDelivery)

	default:
		return nil, errors.Wrapf(ErrUnknownPolicy, "%q", policy)
	}

	return b.Build()
}

func payloadOf[T any](msg Message) (T, error) {
	p, ok := msg.Payload.(T)
	if !ok {
		var zero T
		return zero, errors.Wrapf(ErrInvalidMessage, "%s carries %T, want %T", msg.Type, msg.Payload, zero)
	}
	return p, nil
}

func receiveBoxEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.BoxDroppedData](msg)
	if err != nil {
		return nil, err
	}
	s.CustomerName = msg.NaturalKey()
	s.Address = Address{
		Street: p.AddressStreet,
		City:   p.AddressCity,
		State:  p.AddressState,
		Zip:    p.AddressZip,
	}
	return boxReceived(s), nil
}

func announceBoxEffect(s *Shipment, msg Message) (*events.Event, error) {
	if _, err := payloadOf[events.BoxDroppedData](msg); err != nil {
		return nil, err
	}
	return boxReceived(s), nil
}

func boxReceived(s *Shipment) *events.Event {
	data := events.BoxReceivedData{
		Correlation: events.Correlation{CorrelationID: s.CorrelationID},
		Customer:    s.customer(),
	}
	return events.NewEvent(s.CorrelationID, events.BoxReceivedEvent, data).
		WithCorrelationID(s.CorrelationID)
}

func recordWeightEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.BoxWeighedData](msg)
	if err != nil {
		return nil, err
	}
	s.Box = &Box{
		DimensionsX: p.BoxDimensionsX,
		DimensionsY: p.BoxDimensionsY,
		DimensionsZ: p.BoxDimensionsZ,
		Weight:      p.BoxWeight,
		WeightUnit:  p.BoxWeightUnit,
	}
	return nil, nil
}

func recordInvoiceEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.InvoiceProvidedData](msg)
	if err != nil {
		return nil, err
	}
	s.Invoice = &Invoice{
		SubTotal:  p.SubTotal,
		Tax:       p.Tax,
		Total:     p.Total,
		CreatedAt: p.TimestampInvoiceCreated,
	}
	return nil, nil
}

func recordPaymentEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.InvoicePaidData](msg)
	if err != nil {
		return nil, err
	}
	s.Payment = &Payment{
		PaidInFull:  p.PaidInFull,
		InitiatedAt: p.TimestampPaymentInitiated,
	}
	return nil, nil
}

func recordTrackingEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.TrackingProvidedData](msg)
	if err != nil {
		return nil, err
	}
	s.Tracking = &Tracking{
		Number:             p.TrackingNumber,
		CarrierID:          p.CarrierID,
		CreatedAt:          p.TimestampTrackingCreated,
		DeliveryExpectedAt: p.TimestampDeliveryExpected,
	}
	return nil, nil
}

func recordDepartureEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.BoxSentData](msg)
	if err != nil {
		return nil, err
	}
	left := p.TimestampBoxLeftFacility
	if left.IsZero() {
		left = msg.ReceivedAt
	}
	s.LeftFacilityAt = &left
	return nil, nil
}

func recordCancellationEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.InvoiceCancelledData](msg)
	if err != nil {
		return nil, err
	}
	s.Payment = &Payment{
		PaidInFull:  false,
		Cancelled:   true,
		InitiatedAt: p.TimestampPaymentInitiated,
	}
	return nil, nil
}

func recordDeliveryEffect(s *Shipment, msg Message) (*events.Event, error) {
	p, err := payloadOf[events.BoxDeliveredData](msg)
	if err != nil {
		return nil, err
	}
	completed := p.TimestampDeliveryCompleted
	if completed.IsZero() {
		completed = msg.ReceivedAt
	}
	s.Delivery = &Delivery{
		DriverID:    p.DriverID,
		TruckID:     p.TruckID,
		CompletedAt: completed,
	}
	if s.LeftFacilityAt == nil && !p.TimestampBoxLeftFacility.IsZero() {
		left := p.TimestampBoxLeftFacility
		s.LeftFacilityAt = &left
	}
	return nil, nil
}

// Narrate returns the operator log line for an applied message
func Narrate(s *Shipment, msg Message) string {
	switch msg.Type {
	case EventBoxDropped:
		return fmt.Sprintf("Box received for %s going to %s, %s", s.CustomerName, s.Address.City, s.Address.State)
	case EventBoxWeighed:
		if s.Box != nil {
			return fmt.Sprintf("Box x,y,z: {%g,%g,%g}", s.Box.DimensionsX, s.Box.DimensionsY, s.Box.DimensionsZ)
		}
	case EventInvoiceProvided:
		if s.Invoice != nil {
			return fmt.Sprintf("Invoice total: $%.2f", s.Invoice.Total)
		}
	case EventInvoicePaid:
		if s.Payment != nil {
			return fmt.Sprintf("Customer paid invoice: %s", yesNo(s.Payment.PaidInFull))
		}
	case EventTrackingProvided:
		if s.Tracking != nil {
			return fmt.Sprintf("Tracking number: %s", s.Tracking.Number)
		}
	case EventBoxSentByClerk:
		if s.LeftFacilityAt != nil {
			return fmt.Sprintf("Clerk sent box at: %s", s.LeftFacilityAt.Format(time.RFC3339))
		}
	case EventInvoiceCancelled:
		return "Customer cancelled transaction."
	case EventBoxDelivered:
		if s.Delivery != nil {
			return fmt.Sprintf("Box delivered at: %s", s.Delivery.CompletedAt.Format(time.RFC3339))
		}
	}
	return fmt.Sprintf("%s applied to shipment %s", msg.Type.Short(), s.CorrelationID)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
