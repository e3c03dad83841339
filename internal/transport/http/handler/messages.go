package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otp-relay/internal/application/messaging"
	"github.com/otp-relay/internal/pkg/validate"
)

type sendMessageRequest struct {
	Number  string `json:"number" validate:"required,phoneish"`
	Message string `json:"message" validate:"required"`
}

// sendNotificationRequest accepts the recipient as phone or number.
type sendNotificationRequest struct {
	Phone   string `json:"phone" validate:"omitempty,phoneish"`
	Number  string `json:"number" validate:"omitempty,phoneish"`
	Message string `json:"message" validate:"required"`
}

// MessageHandler serves the send and subscription-check endpoints.
type MessageHandler struct {
	svc messaging.Service
}

func NewMessageHandler(svc messaging.Service) *MessageHandler { return &MessageHandler{svc: svc} }

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Message: "Missing number or message", Error: err.Error()})
		return
	}
	receipt, err := h.svc.SendMessage(r.Context(), req.Number, req.Message)
	if err != nil {
		slog.Warn("send message failed", "err", err)
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "Message sent successfully", Data: receipt})
}

func (h *MessageHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to := req.Phone
	if to == "" {
		to = req.Number
	}
	if to == "" {
		writeError(w, http.StatusBadRequest, "Missing phone or message")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, Envelope{Message: "Missing phone or message", Error: err.Error()})
		return
	}
	receipt, err := h.svc.SendNotification(r.Context(), to, req.Message)
	if err != nil {
		slog.Warn("send notification failed", "err", err)
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "Notification sent successfully", Data: receipt})
}

type subscriptionResponse struct {
	Success    bool   `json:"success"`
	Subscribed bool   `json:"subscribed"`
	Phone      string `json:"phone"`
}

func (h *MessageHandler) CheckSubscription(w http.ResponseWriter, r *http.Request) {
	canonical, subscribed, err := h.svc.CheckSubscription(r.Context(), chi.URLParam(r, "phone"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subscriptionResponse{Success: true, Subscribed: subscribed, Phone: canonical})
}
