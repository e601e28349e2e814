package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/diewo77/billflow/internal/apperr"
	"github.com/diewo77/billflow/internal/auth"
	"github.com/diewo77/billflow/internal/httpx"
)

// writeError maps a service error to a JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *apperr.ValidationError
		serr *apperr.InvalidStateError
	)
	switch {
	case errors.As(err, &verr):
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{
			"field":   verr.Field,
			"message": verr.Message,
		})
	case errors.Is(err, apperr.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.As(err, &serr):
		httpx.JSONError(w, http.StatusConflict, "invalid_state", serr.Error())
	case errors.Is(err, apperr.ErrConflict):
		httpx.JSONError(w, http.StatusConflict, "conflict", nil)
	case errors.Is(err, apperr.ErrLocked):
		httpx.JSONError(w, http.StatusConflict, "locked", nil)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.JSONError(w, http.StatusGatewayTimeout, "timeout", nil)
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// accountID returns the authenticated account. Routes are mounted behind
// RequireAuth, so a missing account is a wiring error.
func accountID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.AccountIDFromContext(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
	}
	return id, ok
}

func badRequest(w http.ResponseWriter, err error) {
	httpx.JSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
}
