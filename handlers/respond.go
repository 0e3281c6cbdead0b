package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rxcheck/coverage-api/logging"
)

// envelope is the uniform success wrapper for API responses.
type envelope struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// errorBody describes a failed request.
type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success   bool      `json:"success"`
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// RespondWithJSON writes a success envelope around payload.
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	writeJSON(w, code, envelope{
		Success:   true,
		Data:      payload,
		Timestamp: time.Now(),
	})
}

// RespondWithError writes an error envelope with an optional details value.
func RespondWithError(w http.ResponseWriter, code int, msg string, details any) {
	writeJSON(w, code, errorEnvelope{
		Success: false,
		Error: errorBody{
			Message: msg,
			Details: details,
		},
		Timestamp: time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	w.Write(data)
}
