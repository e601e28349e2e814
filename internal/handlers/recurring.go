package handlers

import (
	"net/http"

	"github.com/diewo77/billflow/internal/httpx"
	"github.com/diewo77/billflow/internal/models"
	"github.com/diewo77/billflow/internal/services"
)

type RecurringHandler struct {
	svc *services.RecurringService
}

func NewRecurringHandler(svc *services.RecurringService) *RecurringHandler {
	return &RecurringHandler{svc: svc}
}

func (h *RecurringHandler) List(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	list, err := h.svc.List(r.Context(), acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *RecurringHandler) Create(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	var in services.CreateRecurringInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		badRequest(w, err)
		return
	}
	tpl, err := h.svc.Create(r.Context(), acct, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tpl)
}

func (h *RecurringHandler) View(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	tpl, err := h.svc.Get(r.Context(), acct, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *RecurringHandler) History(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	hist, err := h.svc.History(r.Context(), acct, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, hist)
}

type stateRequest struct {
	State models.RecurringState `json:"state"`
}

// SetState moves the template to the requested state.
func (h *RecurringHandler) SetState(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	var req stateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	tpl, err := h.svc.Transition(r.Context(), acct, r.PathValue("id"), req.State, acct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tpl)
}

func (h *RecurringHandler) Generate(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.Generate(r.Context(), acct, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *RecurringHandler) Delete(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), acct, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
