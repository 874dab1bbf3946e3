package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/conduit/internal/common"
)

type errorBody struct {
	Errors map[string][]string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse maps a service error to a status and the RealWorld error
// body. Server faults get a generic body.
func errorResponse(err error) (int, map[string][]string) {
	var ve *common.ValidationError
	var ce *common.ConflictError

	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Fields
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, map[string][]string{"email or password": {"is invalid"}}
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, map[string][]string{"token": {"is missing or invalid"}}
	case errors.As(err, &ce):
		return http.StatusConflict, map[string][]string{ce.Field: {"has already been taken"}}
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, map[string][]string{"profile": {"not found"}}
	case errors.Is(err, common.ErrRateLimited):
		return http.StatusTooManyRequests, map[string][]string{"request": {"too many attempts, try again later"}}
	case errors.Is(err, common.ErrStateClosed):
		return http.StatusServiceUnavailable, map[string][]string{"server": {"is shutting down"}}
	default:
		return http.StatusInternalServerError, map[string][]string{"server": {"internal error"}}
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, fields := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Errors: fields})
}
