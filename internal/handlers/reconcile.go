package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/diewo77/billflow/internal/httpx"
	"github.com/diewo77/billflow/internal/services"
)

type ReconcileHandler struct {
	svc *services.ReconciliationService
}

func NewReconcileHandler(svc *services.ReconciliationService) *ReconcileHandler {
	return &ReconcileHandler{svc: svc}
}

// Run reconciles the caller's pending transactions. A run cut short by its
// deadline still reports what it applied, with status 504.
func (h *ReconcileHandler) Run(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Run(r.Context(), acct)
	if err != nil {
		if res != nil && errors.Is(err, context.DeadlineExceeded) {
			httpx.JSON(w, http.StatusGatewayTimeout, res)
			return
		}
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
