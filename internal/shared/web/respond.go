// Package web implements the uniform JSON response envelope used by every
// handler: {success, message?, data?, error?}.
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/storefront-backend/internal/shared/apperr"
)

// Envelope is the wire shape of every API response.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
}

// Respond writes a success envelope.
func Respond(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// RespondError maps a service error onto the envelope and a status code.
func RespondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var detail interface{}

	var vErr *apperr.ValidationError
	var stockErr *apperr.InsufficientStockError
	var transErr *apperr.InvalidTransitionError
	var provErr *apperr.ProviderError

	switch {
	case errors.As(err, &vErr):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidSignature):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrEmptyCart):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrDuplicateReference):
		status = http.StatusConflict
	case errors.As(err, &stockErr):
		status = http.StatusConflict
		detail = map[string]interface{}{
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		}
	case errors.As(err, &transErr):
		status = http.StatusConflict
		detail = map[string]string{
			"current_status": transErr.From,
			"target_status":  transErr.To,
		}
	case errors.As(err, &provErr):
		status = http.StatusBadGateway
	}

	write(w, status, Envelope{Success: false, Message: err.Error(), Error: detail})
}

// DecodeJSON reads a request body into dst, translating decode failures into
// a ValidationError.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
