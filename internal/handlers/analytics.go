package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/billflow/internal/httpx"
	"github.com/diewo77/billflow/internal/services"
)

type AnalyticsHandler struct {
	svc *services.AnalyticsService
	now func() time.Time
}

func NewAnalyticsHandler(svc *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc, now: func() time.Time { return time.Now().UTC() }}
}

func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	sum, err := h.svc.Summary(r.Context(), acct, h.now())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}
