// Package response writes the JSON bodies shared by every handler. Success
// payloads go out as-is; failures use a single error envelope carrying a
// stable machine code and the request id for log correlation.
package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.ErrorContext(r.Context(), "encode response", "error", err, "path", r.URL.Path)
	}
}

func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	JSON(w, r, status, errorEnvelope{
		Success: false,
		Error: errorBody{
			Code:      code,
			Message:   message,
			Details:   details,
			RequestID: chimiddleware.GetReqID(r.Context()),
		},
	})
}
