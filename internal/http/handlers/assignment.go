package handlers

import (
	"net/http"

	"service-dispatch/internal/logx"
)

// AssignmentHandler serves HTTP endpoints for courier assignments.
type AssignmentHandler struct {
	uc     assignmentUsecase
	logger logx.Logger
}

// NewAssignmentHandler wires an assignmentUsecase into HTTP handlers.
func NewAssignmentHandler(logger logx.Logger, uc assignmentUsecase) *AssignmentHandler {
	return &AssignmentHandler{uc: uc, logger: logger}
}

// Dispatch handles POST /orders/{id}/dispatch. Operators use it to force a
// dispatch round, optionally excluding couriers.
func (h *AssignmentHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	var req dispatchRequest
	if r.ContentLength > 0 {
		if ok := decodeJSON(h.logger, w, r, &req); !ok {
			return
		}
	}

	a, err := h.uc.Dispatch(r.Context(), id, req.Exclude)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, assignmentToResponse(a))
}

// Accept handles POST /assignments/{id}/accept.
func (h *AssignmentHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	var req assignmentActionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.CourierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return
	}

	a, err := h.uc.Accept(r.Context(), id, req.CourierID)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, assignmentToResponse(a))
}

// Reject handles POST /assignments/{id}/reject.
func (h *AssignmentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r, "id")
	if err != nil {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid id")
		return
	}

	var req assignmentActionRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}
	if req.CourierID == "" {
		writeError(h.logger, w, r, http.StatusBadRequest, "courier_id is required")
		return
	}

	if err := h.uc.Reject(r.Context(), id, req.CourierID, req.Reason); err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, map[string]string{"status": "rejected"})
}
