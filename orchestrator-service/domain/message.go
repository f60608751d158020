package domain

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
)

// EventType names an inbound message type; values equal the transport topics
type EventType string

const (
	EventBoxDropped       EventType = events.BoxDroppedCommand
	EventBoxWeighed       EventType = events.BoxWeighedEvent
	EventInvoiceProvided  EventType = events.InvoiceProvidedEvent
	EventInvoicePaid      EventType = events.InvoicePaidEvent
	EventTrackingProvided EventType = events.TrackingProvidedEvent
	EventBoxSentByClerk   EventType = events.BoxSentByClerkEvent
	EventInvoiceCancelled EventType = events.InvoiceCancelledEvent
	EventBoxDelivered     EventType = events.BoxDeliveredEvent
)

// InboundEventTypes lists every type the orchestrator consumes
var InboundEventTypes = []EventType{
	EventBoxDropped,
	EventBoxWeighed,
	EventInvoiceProvided,
	EventInvoicePaid,
	EventTrackingProvided,
	EventBoxSentByClerk,
	EventInvoiceCancelled,
	EventBoxDelivered,
}

func (e EventType) String() string {
	return string(e)
}

// Short returns the last topic segment, used as a metric label
func (e EventType) Short() string {
	s := string(e)
	if i := strings.LastIndex(s, "."); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Message is one decoded inbound event or command
type Message struct {
	Type          EventType
	EventID       models.ID
	CorrelationID models.ID
	Payload       interface{}
	ReceivedAt    time.Time
	// Envelope is the transport event the message was decoded from, if any
	Envelope *events.Event
}

// NaturalKey returns the initiating command's correlation key
func (m Message) NaturalKey() string {
	if p, ok := m.Payload.(events.BoxDroppedData); ok {
		return strings.TrimSpace(p.CustomerName)
	}
	return ""
}

// ToEvent returns the envelope, rebuilding one when the message was built in process
func (m Message) ToEvent() *events.Event {
	if m.Envelope != nil {
		return m.Envelope
	}
	evt := events.NewEvent(m.CorrelationID, string(m.Type), m.Payload).WithCorrelationID(m.CorrelationID)
	if !m.EventID.IsZero() {
		evt.ID = m.EventID
	}
	if !m.ReceivedAt.IsZero() {
		evt.Timestamp = m.ReceivedAt
	}
	return evt
}

// Validate checks the message is routable at all
func (m Message) Validate() error {
	if m.Payload == nil {
		return errors.Wrapf(ErrInvalidMessage, "%s has no payload", m.Type)
	}
	if m.Type == EventBoxDropped {
		if m.NaturalKey() == "" {
			return errors.Wrap(ErrInvalidMessage, "customer name is required")
		}
		return nil
	}
	if m.CorrelationID.IsZero() {
		return errors.Wrapf(ErrInvalidMessage, "%s has no correlation id", m.Type)
	}
	return nil
}

// NewMessage builds a message from a typed payload
func NewMessage(eventType EventType, eventID models.ID, payload interface{}) Message {
	msg := Message{
		Type:       eventType,
		EventID:    eventID,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	}
	if c, ok := payload.(events.Correlated); ok {
		msg.CorrelationID = c.GetCorrelationID()
	}
	return msg
}

// DecodeMessage turns a transport envelope into a typed message
func DecodeMessage(evt *events.Event) (Message, error) {
	if evt == nil {
		return Message{}, errors.Wrap(ErrInvalidMessage, "nil event")
	}

	eventType := EventType(evt.EventType)
	if eventType == "" {
		eventType = EventType(evt.Topic)
	}

	var (
		payload interface{}
		err     error
	)
	switch eventType {
	case EventBoxDropped:
		var p events.BoxDroppedData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventBoxWeighed:
		var p events.BoxWeighedData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventInvoiceProvided:
		var p events.InvoiceProvidedData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventInvoicePaid:
		var p events.InvoicePaidData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventInvoiceCancelled:
		var p events.InvoiceCancelledData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventTrackingProvided:
		var p events.TrackingProvidedData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventBoxSentByClerk:
		var p events.BoxSentData
		err = evt.UnmarshalPayload(&p)
		payload = p
	case EventBoxDelivered:
		var p events.BoxDeliveredData
		err = evt.UnmarshalPayload(&p)
		payload = p
	default:
		return Message{}, errors.Wrapf(ErrInvalidMessage, "unknown event type %q", evt.EventType)
	}
	if err != nil {
		return Message{}, errors.Wrapf(ErrInvalidMessage, "decode %s: %v", eventType, err)
	}

	msg := NewMessage(eventType, evt.ID, payload)
	msg.Envelope = evt
	if msg.CorrelationID.IsZero() && eventType != EventBoxDropped {
		msg.CorrelationID = evt.CorrelationID
	}
	return msg, nil
}
