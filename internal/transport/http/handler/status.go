package handler

import (
	"net/http"
	"time"

	"github.com/otp-relay/internal/application/session"
)

type snapshotSource interface {
	Snapshots() []session.Snapshot
}

type ChannelStatus struct {
	Status      string        `json:"status"` // Connected | Disconnected
	State       session.State `json:"state"`
	QRAvailable bool          `json:"qr_available"`
	Since       time.Time     `json:"since"`
}

// StatusHandler reports per-channel session state.
type StatusHandler struct {
	sessions snapshotSource
	started  time.Time
}

func NewStatusHandler(sessions snapshotSource, started time.Time) *StatusHandler {
	return &StatusHandler{sessions: sessions, started: started}
}

// Status responds with {success, uptime, <channel>: {...}} per configured channel.
func (h *StatusHandler) Status(w http.ResponseWriter, _ *http.Request) {
	body := map[string]interface{}{
		"success": true,
		"uptime":  time.Since(h.started).Seconds(),
	}
	for _, s := range h.sessions.Snapshots() {
		status := "Disconnected"
		if s.Ready() {
			status = "Connected"
		}
		body[s.Channel] = ChannelStatus{
			Status:      status,
			State:       s.State,
			QRAvailable: s.PairingToken != "",
			Since:       s.Since,
		}
	}
	writeJSON(w, http.StatusOK, body)
}
