// Package httputil holds the JSON response helpers shared by all HTTP
// handlers: one place that knows how domain error codes map to statuses and
// wire error names.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "flightclaim/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into its HTTP response. Internal
// errors omit the description so storage and upstream details never leak to
// clients; every other code returns its message.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": wireName(code)}
	if code != dErrors.CodeInternal {
		if de, ok := err.(*dErrors.Error); ok {
			body["error_description"] = de.Message
		} else {
			body["error_description"] = err.Error()
		}
	}
	WriteJSON(w, statusFor(code), body)
}

// Decode reads the request body into a value of type T, answering a
// bad_request response itself on malformed JSON.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed request body"))
		return v, false
	}
	return v, true
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func wireName(code dErrors.Code) string {
	if code == dErrors.CodeInternal {
		return "internal_error"
	}
	return string(code)
}
