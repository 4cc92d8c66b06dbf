package handlers

import (
	"net/http"
	"strconv"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

// LedgerHandler serves HTTP endpoints for balances and transactions.
type LedgerHandler struct {
	uc     ledgerUsecase
	logger logx.Logger
}

// NewLedgerHandler wires a ledgerUsecase into HTTP handlers.
func NewLedgerHandler(logger logx.Logger, uc ledgerUsecase) *LedgerHandler {
	return &LedgerHandler{uc: uc, logger: logger}
}

func ownerFromURL(r *http.Request) (domain.OwnerRef, bool) {
	kind, err1 := idFromURL(r, "kind")
	id, err2 := idFromURL(r, "id")
	if err1 != nil || err2 != nil {
		return domain.OwnerRef{}, false
	}
	owner := domain.OwnerRef{Kind: domain.OwnerKind(kind), ID: id}
	return owner, owner.Valid()
}

// Balance handles GET /balances/{kind}/{id}.
func (h *LedgerHandler) Balance(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid owner")
		return
	}

	b, err := h.uc.Balance(r.Context(), owner)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusOK, balanceToResponse(b))
}

// Transactions handles GET /balances/{kind}/{id}/transactions.
func (h *LedgerHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid owner")
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			writeError(h.logger, w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	list, err := h.uc.Transactions(r.Context(), owner, limit)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(list))
	for _, tx := range list {
		out = append(out, transactionToResponse(tx))
	}
	writeJSON(h.logger, w, r, http.StatusOK, out)
}

// Withdraw handles POST /balances/{kind}/{id}/withdraw.
func (h *LedgerHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromURL(r)
	if !ok {
		writeError(h.logger, w, r, http.StatusBadRequest, "invalid owner")
		return
	}

	var req withdrawRequest
	if ok := decodeJSON(h.logger, w, r, &req); !ok {
		return
	}

	tx, err := h.uc.Withdraw(r.Context(), owner, req.Amount, req.Currency)
	if err != nil {
		writeAppError(h.logger, w, r, err)
		return
	}
	writeJSON(h.logger, w, r, http.StatusCreated, transactionToResponse(*tx))
}
