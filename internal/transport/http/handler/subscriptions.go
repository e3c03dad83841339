package handler

import (
	"context"
	"net/http"

	"github.com/otp-relay/internal/domain"
)

type statsSource interface {
	Stats(ctx context.Context) (*domain.SubscriptionStats, error)
}

type SubscriptionHandler struct {
	gate statsSource
}

func NewSubscriptionHandler(gate statsSource) *SubscriptionHandler {
	return &SubscriptionHandler{gate: gate}
}

func (h *SubscriptionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.gate.Stats(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: st})
}
