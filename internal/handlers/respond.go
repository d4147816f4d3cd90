// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/pkg/logger"
)

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, log *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, message string) {
	respondJSON(w, log, status, ErrorResponse{
		Error:     message,
		RequestID: logger.RequestIDFrom(r.Context()),
	})
}

// respondDomainError maps domain errors onto status codes. Server-side
// failures are logged and their details stay out of the response.
func respondDomainError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error, fallback string) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), fallback, slog.String("error", err.Error()))
		if status == http.StatusInternalServerError {
			respondError(w, r, log, status, fallback)
			return
		}
	}
	respondError(w, r, log, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownCollection), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrReadOnlyCollection),
		errors.Is(err, domain.ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStorageUnavailable),
		errors.Is(err, domain.ErrOffline),
		errors.Is(err, domain.ErrSyncInterrupted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object from the request body
func decodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errRequestTooLarge
		}
		return errInvalidBody
	}
	return nil
}

var (
	errInvalidBody     = errors.New("invalid request body")
	errRequestTooLarge = errors.New("request body too large")
)

func bodyErrorStatus(err error) int {
	if errors.Is(err, errRequestTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
