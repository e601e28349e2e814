package handlers

import (
	"net/http"

	"github.com/diewo77/billflow/internal/httpx"
	"github.com/diewo77/billflow/internal/services"
)

type HealthHandler struct {
	svc *services.HealthService
}

func NewHealthHandler(svc *services.HealthService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

func (h *HealthHandler) Client(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	score, err := h.svc.ClientScore(r.Context(), acct, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, score)
}

func (h *HealthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	score, err := h.svc.RefreshClient(r.Context(), acct, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, score)
}

func (h *HealthHandler) RefreshAll(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.RefreshAll(r.Context(), acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

// Account scores the caller's whole invoice book.
func (h *HealthHandler) Account(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	score, err := h.svc.AccountScore(r.Context(), acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, score)
}
