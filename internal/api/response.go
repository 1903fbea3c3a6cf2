// Package api contains the HTTP surface of the notify gateway: meal fetch
// and consume endpoints, enrollment, and the shared response envelope.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pmg5408/grocery-meal-agent/internal/types"
)

// maxRequestBodySize caps request bodies at 64 KB; no endpoint accepts more
// than a small JSON object.
const maxRequestBodySize = 64 << 10

// errCodeInvalidJSON is local to the HTTP chassis; malformed bodies never
// reach domain code.
const errCodeInvalidJSON types.ErrorCode = "validation_invalid_json"

// envelope is the standard response wrapper.
type envelope struct {
	Data any `json:"data,omitempty"`
}

// errorEnvelope is the standard error wrapper.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// writeJSON writes data inside the standard envelope.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

// writeError maps err to an HTTP status via its AppError code. Wrapped
// internals are never exposed; generic errors become an opaque 500.
func writeError(w http.ResponseWriter, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(appErr.HTTPStatus())
		_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorDetail{
			Code:    string(appErr.Code),
			Message: appErr.Message,
			Details: appErr.Details,
		}})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: errorDetail{
		Code:    string(types.ErrCodeInternalUnexpected),
		Message: "an unexpected error occurred",
	}})
}

// decodeJSON reads the request body into dst with a size cap and strict
// field checking.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return types.NewAppError(errCodeInvalidJSON, "invalid JSON in request body", err)
	}
	return nil
}
