package events

import (
	"time"

	"github.com/shipabox/shipment-saga/shared/models"
)

// Message contracts exchanged between the orchestrator and the clerk,
// customer and truck collaborators. Each payload carries every field of the
// previous step plus its own, so a consumer never needs a lookup.

// Correlation ties a payload to one shipment saga
type Correlation struct {
	CorrelationID models.ID `json:"correlation_id"`
}

// GetCorrelationID returns the saga correlation identifier
func (c Correlation) GetCorrelationID() models.ID {
	return c.CorrelationID
}

// Correlated is implemented by every payload except the initiating command
type Correlated interface {
	GetCorrelationID() models.ID
}

// Customer holds identity and destination address
type Customer struct {
	CustomerName  string `json:"customer_name"`
	AddressStreet string `json:"address_street"`
	AddressCity   string `json:"address_city"`
	AddressState  string `json:"address_state"`
	AddressZip    string `json:"address_zip"`
}

// BoxMetrics holds the measured box
type BoxMetrics struct {
	BoxDimensionsX float64 `json:"box_dimensions_x"`
	BoxDimensionsY float64 `json:"box_dimensions_y"`
	BoxDimensionsZ float64 `json:"box_dimensions_z"`
	BoxWeight      float64 `json:"box_weight"`
	BoxWeightUnit  string  `json:"box_weight_unit"`
}

// InvoiceTotals holds the taxable invoice
type InvoiceTotals struct {
	SubTotal                float64   `json:"sub_total"`
	Tax                     float64   `json:"tax"`
	Total                   float64   `json:"total"`
	TimestampInvoiceCreated time.Time `json:"timestamp_invoice_created"`
}

// PaymentInfo holds the customer's answer to the invoice
type PaymentInfo struct {
	PaidInFull                bool      `json:"paid_in_full"`
	TimestampPaymentInitiated time.Time `json:"timestamp_payment_initiated"`
}

// TrackingInfo holds carrier tracking metadata
type TrackingInfo struct {
	TrackingNumber            string    `json:"tracking_number"`
	CarrierID                 string    `json:"carrier_id"`
	TimestampTrackingCreated  time.Time `json:"timestamp_tracking_created"`
	TimestampDeliveryExpected time.Time `json:"timestamp_delivery_expected"`
}

// DeliveryInfo holds the completed delivery
type DeliveryInfo struct {
	DriverID                   string    `json:"driver_id"`
	TruckID                    string    `json:"truck_id"`
	TimestampDeliveryCompleted time.Time `json:"timestamp_delivery_completed"`
}

// BoxDroppedData is the initiating command a customer sends to the orchestrator
type BoxDroppedData struct {
	Customer
}

// BoxReceivedData is published by the orchestrator once a saga starts
type BoxReceivedData struct {
	Correlation
	Customer
}

type BoxWeighedData struct {
	Correlation
	Customer
	BoxMetrics
}

type InvoiceProvidedData struct {
	Correlation
	Customer
	BoxMetrics
	InvoiceTotals
}

// InvoicePaidData is published when the customer pays the invoice
type InvoicePaidData struct {
	Correlation
	Customer
	BoxMetrics
	InvoiceTotals
	PaymentInfo
}

// InvoiceCancelledData is published when the customer refuses to pay
type InvoiceCancelledData struct {
	Correlation
	Customer
	BoxMetrics
	InvoiceTotals
	PaymentInfo
}

type TrackingProvidedData struct {
	Correlation
	Customer
	BoxMetrics
	InvoiceTotals
	PaymentInfo
	TrackingInfo
}

type BoxSentData struct {
	Correlation
	Customer
	BoxMetrics
	InvoiceTotals
	PaymentInfo
	TrackingInfo
	TimestampBoxLeftFacility time.Time `json:"timestamp_box_left_facility"`
}

type BoxDeliveredData struct {
	Correlation
	Customer
	BoxMetrics
	InvoiceTotals
	PaymentInfo
	TrackingInfo
	TimestampBoxLeftFacility time.Time `json:"timestamp_box_left_facility"`
	DeliveryInfo
}

// SagaFaultedData reports an event the workflow refused to apply
type SagaFaultedData struct {
	Correlation
	State     string    `json:"state"`
	EventType string    `json:"event_type"`
	EventID   models.ID `json:"event_id"`
	Reason    string    `json:"reason"`
	FaultedAt time.Time `json:"faulted_at"`
}
