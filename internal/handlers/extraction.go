package handlers

import (
	"net/http"

	"github.com/diewo77/billflow/internal/httpx"
	"github.com/diewo77/billflow/internal/services"
)

type ExtractionHandler struct {
	svc *services.ExtractionService
}

func NewExtractionHandler(svc *services.ExtractionService) *ExtractionHandler {
	return &ExtractionHandler{svc: svc}
}

type extractRequest struct {
	Content string `json:"content"`
}

// Extract reads structured fields from the text of an uploaded file.
func (h *ExtractionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	acct, ok := accountID(w, r)
	if !ok {
		return
	}
	var req extractRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	rec, err := h.svc.Process(r.Context(), acct, r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"extraction_id":  rec.ID,
		"extracted_data": rec.ExtractedFields,
	})
}
