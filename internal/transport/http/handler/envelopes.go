package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/otp-relay/internal/domain"
)

// Envelope is the generic JSON response wrapper.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Hint    string      `json:"hint,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{Success: false, Message: msg})
}

// httpError maps domain sentinel errors to status codes.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeJSON(w, http.StatusBadRequest, Envelope{Message: "invalid request", Error: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, Envelope{Message: "unauthorized", Error: err.Error()})
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, Envelope{Message: "User not subscribed to notifications", Error: err.Error()})
	case errors.Is(err, domain.ErrNotOnNetwork):
		writeJSON(w, http.StatusNotFound, Envelope{Message: "Number is not registered on WhatsApp", Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Envelope{Message: "not found", Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, Envelope{Message: "conflict", Error: err.Error()})
	case errors.Is(err, domain.ErrUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, Envelope{Message: "Client is not ready. Please wait or scan the QR code.", Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, Envelope{Message: "internal error", Error: err.Error()})
	}
}

// decodeJSON decodes the request body into v. A malformed body gets a 400 with
// a hint and false is returned.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "request body is empty")
		return false
	}
	writeJSON(w, http.StatusBadRequest, Envelope{
		Message: "Invalid JSON format in request body",
		Error:   err.Error(),
		Hint:    "Make sure you are sending valid JSON with double-quoted property names",
	})
	return false
}
