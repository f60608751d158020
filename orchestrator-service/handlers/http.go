package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/shipabox/shipment-saga/orchestrator-service/application"
	"github.com/shipabox/shipment-saga/orchestrator-service/domain"
	"github.com/shipabox/shipment-saga/shared/logging"
	"go.uber.org/zap"
)

// ShipmentHandlers contains shipment HTTP handlers
type ShipmentHandlers struct {
	dropBox            *application.DropBox
	getShipment        *application.GetShipment
	listShipments      *application.ListShipments
	findStaleShipments *application.FindStaleShipments
	getHistory         *application.GetShipmentHistory
	listFaults         *application.ListFaults
	staleAfter         time.Duration
	logger             *zap.Logger
}

// NewShipmentHandlers creates new shipment handlers. staleAfter is the
// default threshold of the stale listing.
func NewShipmentHandlers(
	dropBox *application.DropBox,
	getShipment *application.GetShipment,
	listShipments *application.ListShipments,
	findStaleShipments *application.FindStaleShipments,
	getHistory *application.GetShipmentHistory,
	listFaults *application.ListFaults,
	staleAfter time.Duration,
	logger *zap.Logger,
) *ShipmentHandlers {
	if staleAfter <= 0 {
		staleAfter = application.DefaultStaleAfter
	}
	logger = logging.OrNop(logger)
	return &ShipmentHandlers{
		dropBox:            dropBox,
		getShipment:        getShipment,
		listShipments:      listShipments,
		findStaleShipments: findStaleShipments,
		getHistory:         getHistory,
		listFaults:         listFaults,
		staleAfter:         staleAfter,
		logger:             logger,
	}
}

// DropBox handles a customer dropping a box at the counter
func (h *ShipmentHandlers) DropBox(w http.ResponseWriter, r *http.Request) {
	var cmd application.DropBoxCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.dropBox.Execute(r.Context(), &cmd)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if response.Outcome != "created" {
		status = http.StatusOK
	}
	writeJSON(w, status, response)
}

// GetShipment handles live shipment retrieval
func (h *ShipmentHandlers) GetShipment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Shipment ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.getShipment.Execute(r.Context(), &application.GetShipmentQuery{CorrelationID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ListShipments lists live shipments, optionally filtered by ?state=
func (h *ShipmentHandlers) ListShipments(w http.ResponseWriter, r *http.Request) {
	query := &application.ListShipmentsQuery{State: r.URL.Query().Get("state")}

	response, err := h.listShipments.Execute(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// FindStaleShipments lists shipments idle for longer than ?older_than= (a Go duration)
func (h *ShipmentHandlers) FindStaleShipments(w http.ResponseWriter, r *http.Request) {
	olderThan := h.staleAfter
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			http.Error(w, "Invalid older_than duration", http.StatusBadRequest)
			return
		}
		olderThan = d
	}

	response, err := h.findStaleShipments.Execute(r.Context(), &application.FindStaleShipmentsQuery{OlderThan: olderThan})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// GetShipmentHistory returns the journal of a shipment, live or finished
func (h *ShipmentHandlers) GetShipmentHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Shipment ID is required", http.StatusBadRequest)
		return
	}

	response, err := h.getHistory.Execute(r.Context(), &application.GetShipmentHistoryQuery{CorrelationID: id})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

// ListFaults pages through refused events with ?offset= and ?limit=
func (h *ShipmentHandlers) ListFaults(w http.ResponseWriter, r *http.Request) {
	offset, err := queryInt(r, "offset")
	if err != nil {
		http.Error(w, "Invalid offset", http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	query := application.ListFaultsQuery{Offset: offset, Limit: limit}
	response, err := h.listFaults.Execute(r.Context(), &query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// RegisterRoutes registers shipment routes
func (h *ShipmentHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/faults", h.ListFaults)
	r.Route("/api/v1/shipments", func(r chi.Router) {
		r.Post("/", h.DropBox)
		r.Get("/", h.ListShipments)
		r.Get("/stale", h.FindStaleShipments)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetShipment)
			r.Get("/history", h.GetShipmentHistory)
		})
	})
}

func (h *ShipmentHandlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrShipmentNotFound), errors.Is(err, domain.ErrUnrouteableEvent):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnhandledTransition), errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPublishFailure), errors.Is(err, domain.ErrStoreFailure):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
