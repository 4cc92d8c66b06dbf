package handlers

import (
	"net/http"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// CourierHandler serves HTTP endpoints for courier presence.
type CourierHandler struct {
	uc     presenceUsecase
	logger logx.Logger
}

// NewCourierHandler wires a presenceUsecase into HTTP handlers.
func NewCourierHandler(logger logx.Logger, uc presenceUsecase) *CourierHandler {
	return &CourierHandler{uc: uc, logger: logger}
}

// Heartbeat handles PUT /couriers/{id}/location.
func (h *CourierHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	var req heartbeatRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	loc := domain.CourierLocation{
		CourierID: id,
		Position:  domain.Point{Lat: req.Lat, Lng: req.Lng},
		Available: req.Available,
	}
	if err := h.uc.Heartbeat(r.Context(), loc); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Offline handles DELETE /couriers/{id}/location.
func (h *CourierHandler) Offline(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.uc.Offline(r.Context(), id); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
