package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/lorekeeper/internal/ai"
	"github.com/starford/lorekeeper/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
	// Kind classifies AI provider failures so the UI can offer a retry.
	Kind string `json:"kind,omitempty"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

var aiStatus = map[ai.Kind]int{
	ai.KindUnauthorized:        http.StatusUnauthorized,
	ai.KindRateLimited:         http.StatusTooManyRequests,
	ai.KindInsufficientBalance: http.StatusPaymentRequired,
	ai.KindTimeout:             http.StatusGatewayTimeout,
	ai.KindProvider:            http.StatusBadGateway,
	ai.KindUnavailable:         http.StatusServiceUnavailable,
	ai.KindMalformed:           http.StatusUnprocessableEntity,
}

// writeError maps domain errors to status codes. Unexpected errors are
// logged and reported as internal.
func writeError(w http.ResponseWriter, op string, err error) {
	var aiErr *ai.Error
	switch {
	case errors.As(err, &aiErr):
		status, ok := aiStatus[aiErr.Kind]
		if !ok {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errResponse{Error: aiErr.Message, Kind: string(aiErr.Kind)})
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrNoSelection):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// decodeBody reads a JSON request body of at most 10 MiB into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	return true
}
