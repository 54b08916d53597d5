// Package httpx provides the uniform JSON response envelope used by every
// API endpoint.
package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response shape: fields are omitted when empty so
// payloads stay clean.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Errors  any    `json:"errors,omitempty"`
}

// JSON sends a raw JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Success sends a success envelope.
func Success(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error sends a failure envelope.
func Error(w http.ResponseWriter, status int, message string, errs any) {
	JSON(w, status, Envelope{Success: false, Message: message, Errors: errs})
}

// DecodeJSON decodes a JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(target)
}
