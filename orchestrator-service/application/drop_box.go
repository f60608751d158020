package application

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/events"
	"github.com/shipabox/shipment-saga/shared/models"
)

// DropBoxCommand is a customer handing a box over at the counter
type DropBoxCommand struct {
	CustomerName  string `json:"customer_name"`
	AddressStreet string `json:"address_street"`
	AddressCity   string `json:"address_city"`
	AddressState  string `json:"address_state"`
	AddressZip    string `json:"address_zip"`
}

// DropBoxResponse represents the response after dropping a box
type DropBoxResponse struct {
	CorrelationID string `json:"correlation_id"`
	State         string `json:"state"`
	Outcome       string `json:"outcome"`
	EventID       string `json:"event_id"`
}

// DropBox sends the initiating command straight to the orchestrator
type DropBox struct {
	orchestrator *Orchestrator
}

// NewDropBox creates a new DropBox use case
func NewDropBox(orchestrator *Orchestrator) *DropBox {
	return &DropBox{orchestrator: orchestrator}
}

// Execute starts a shipment saga, or re-announces the live one for the same customer
func (uc *DropBox) Execute(ctx context.Context, cmd *DropBoxCommand) (*DropBoxResponse, error) {
	if strings.TrimSpace(cmd.CustomerName) == "" {
		return nil, errors.Wrap(domain.ErrInvalidMessage, "customer name is required")
	}

	payload := events.BoxDroppedData{
		Customer: events.Customer{
			CustomerName:  strings.TrimSpace(cmd.CustomerName),
			AddressStreet: cmd.AddressStreet,
			AddressCity:   cmd.AddressCity,
			AddressState:  cmd.AddressState,
			AddressZip:    cmd.AddressZip,
		},
	}
	evt := events.NewEvent(models.ID(""), domain.EventBoxDropped.String(), payload).
		WithMetadata("source", "http")

	msg, err := domain.DecodeMessage(evt)
	if err != nil {
		return nil, err
	}

	result, err := uc.orchestrator.Dispatch(ctx, msg)
	if err != nil {
		return nil, err
	}

	return &DropBoxResponse{
		CorrelationID: result.CorrelationID.String(),
		State:         result.To.String(),
		Outcome:       result.Outcome.String(),
		EventID:       evt.ID.String(),
	}, nil
}
