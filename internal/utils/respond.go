// Package utils holds the JSON response helpers shared by every handler.
package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"biblioteca/internal/storage"
	"biblioteca/pkg/eventstore"
)

// Error kinds surfaced to API clients.
const (
	KindNotFound        = "not_found"
	KindValidation      = "validation"
	KindUnavailable     = "unavailable"
	KindAlreadyReturned = "already_returned"
	KindConflict        = "conflict"
	KindUnauthorized    = "unauthorized"
	KindBadRequest      = "bad_request"
	KindInternal        = "internal"
)

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// JSON writes a JSON response with the given status.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// JSONError writes a structured error payload.
func JSONError(w http.ResponseWriter, kind, message string, status int) {
	JSON(w, status, errorResponse{Error: errorBody{Kind: kind, Message: message}})
}

// WriteError maps a domain error onto its kind and HTTP status. Unknown
// errors become internal so they are never silently swallowed.
func WriteError(w http.ResponseWriter, err error) {
	var validationErr *storage.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		JSONError(w, KindNotFound, err.Error(), http.StatusNotFound)
	case errors.As(err, &validationErr):
		JSONError(w, KindValidation, validationErr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, storage.ErrUnavailable):
		JSONError(w, KindUnavailable, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrAlreadyReturned):
		JSONError(w, KindAlreadyReturned, err.Error(), http.StatusConflict)
	case errors.Is(err, storage.ErrConflict), errors.Is(err, eventstore.ErrConcurrencyConflict):
		JSONError(w, KindConflict, err.Error(), http.StatusConflict)
	default:
		JSONError(w, KindInternal, err.Error(), http.StatusInternalServerError)
	}
}
