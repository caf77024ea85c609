package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aristath/tradejournal/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes the request body into dst and runs its validate tags.
// Both failures wrap domain.ErrInvalidInput.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.InvalidInputf("invalid request body: %v", err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return domain.InvalidInputf("field %s failed %s", fe.Field(), fe.Tag())
		}
		return domain.InvalidInputf("%v", err)
	}
	return nil
}

// Envelope wraps a response payload with request metadata.
func Envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, log zerolog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// WriteData writes data inside the standard envelope.
func WriteData(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	WriteJSON(w, log, status, Envelope(data))
}

// StatusFor maps a domain error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrAlreadyOnboarded),
		errors.Is(err, domain.ErrNotOnboarded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTransactionConflict):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// WriteError writes {"error": ...} with the status StatusFor picks.
// Internal errors are logged and their message is not exposed.
func WriteError(w http.ResponseWriter, log zerolog.Logger, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("Request failed")
		msg = http.StatusText(status)
	}
	WriteJSON(w, log, status, map[string]string{"error": msg})
}
