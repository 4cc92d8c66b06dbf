package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"service-dispatch/internal/apperr"
	"service-dispatch/internal/logx"
)

func reqID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return "-"
}

func writeJSON(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		logger.Error("json encode error",
			logx.String("req_id", reqID(r.Context())),
			logx.Err(err),
		)
	}
}

// ErrorResponse is the uniform error body. Allowed is populated only for
// rejected status transitions.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Allowed []string `json:"allowed,omitempty"`
}

func writeError(logger logx.Logger, w http.ResponseWriter, r *http.Request, status int, msg string) {
	logger.Warn("http error",
		logx.String("req_id", reqID(r.Context())),
		logx.Int("status", status),
		logx.String("msg", msg),
	)
	writeJSON(logger, w, r, status, ErrorResponse{Error: msg})
}

// writeAppError maps domain errors onto HTTP statuses. Unrecognized errors
// become a 500 without leaking the message to the client.
func writeAppError(logger logx.Logger, w http.ResponseWriter, r *http.Request, err error) {
	if ite, ok := apperr.IsInvalidTransition(err); ok {
		allowed := make([]string, 0, len(ite.Allowed))
		for _, s := range ite.Allowed {
			allowed = append(allowed, string(s))
		}
		logger.Warn("http error",
			logx.String("req_id", reqID(r.Context())),
			logx.Int("status", http.StatusConflict),
			logx.String("msg", ite.Error()),
		)
		writeJSON(logger, w, r, http.StatusConflict, ErrorResponse{
			Error:   ite.Error(),
			Allowed: allowed,
		})
		return
	}

	switch {
	case errors.Is(err, apperr.Invalid):
		writeError(logger, w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.NotFound):
		writeError(logger, w, r, http.StatusNotFound, "not found")
	case errors.Is(err, apperr.TerminalState):
		writeError(logger, w, r, http.StatusConflict, "order is in a terminal state")
	case errors.Is(err, apperr.NoAvailableCourier):
		writeError(logger, w, r, http.StatusConflict, "no available courier")
	case errors.Is(err, apperr.AssignmentExpiredOrTaken):
		writeError(logger, w, r, http.StatusConflict, "assignment expired or taken")
	case errors.Is(err, apperr.Conflict):
		writeError(logger, w, r, http.StatusConflict, err.Error())
	default:
		logger.Error("internal error",
			logx.String("req_id", reqID(r.Context())),
			logx.Err(err),
		)
		writeError(logger, w, r, http.StatusInternalServerError, "internal error")
	}
}

const (
	bodyLimit = 1 << 20
)

func decodeJSON[T any](logger logx.Logger, w http.ResponseWriter, r *http.Request, dst *T) bool {
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		writeError(logger, w, r, http.StatusBadRequest, "invalid json: trailing data")
		return false
	}
	return true
}

func idFromURL(r *http.Request, name string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, name))
	if id == "" {
		return "", errors.New("invalid id")
	}
	return id, nil
}
