package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/otp-relay/internal/application/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessions []session.Snapshot

func (f fakeSessions) Snapshots() []session.Snapshot { return f }

func TestStatus(t *testing.T) {
	sessions := fakeSessions{
		{Channel: "otp", State: session.Ready},
		{Channel: "notifications", State: session.AwaitingPairing, PairingToken: "2@abc"},
	}
	rec := httptest.NewRecorder()
	NewStatusHandler(sessions, time.Now().Add(-time.Minute)).Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.GreaterOrEqual(t, body["uptime"].(float64), 60.0)

	otp := body["otp"].(map[string]interface{})
	assert.Equal(t, "Connected", otp["status"])
	assert.Equal(t, false, otp["qr_available"])

	notif := body["notifications"].(map[string]interface{})
	assert.Equal(t, "Disconnected", notif["status"])
	assert.Equal(t, "awaiting_pairing", notif["state"])
	assert.Equal(t, true, notif["qr_available"])
}

func serveQR(sessions fakeSessions, path string) *httptest.ResponseRecorder {
	h := NewQRHandler(sessions)
	r := chi.NewRouter()
	r.Get("/qr", h.Index)
	r.Get("/qr/{channel}", h.Channel)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestQR_RendersImageWhenTokenPending(t *testing.T) {
	rec := serveQR(fakeSessions{{Channel: "otp", State: session.AwaitingPairing, PairingToken: "2@abc,def"}}, "/qr/otp")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data:image/png;base64,")
}

func TestQR_AlreadyConnected(t *testing.T) {
	rec := serveQR(fakeSessions{{Channel: "otp", State: session.Ready}}, "/qr/otp")
	assert.Contains(t, rec.Body.String(), "already connected")
	assert.NotContains(t, rec.Body.String(), "data:image/png")
}

func TestQR_WaitingPageRefreshes(t *testing.T) {
	rec := serveQR(fakeSessions{{Channel: "otp", State: session.Disconnected}}, "/qr/otp")
	assert.Contains(t, rec.Body.String(), "Waiting")
	assert.Contains(t, rec.Body.String(), `http-equiv="refresh"`)
}

func TestQR_UnknownChannel(t *testing.T) {
	rec := serveQR(fakeSessions{{Channel: "otp"}}, "/qr/sms")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQR_IndexSingleVsDashboard(t *testing.T) {
	single := serveQR(fakeSessions{{Channel: "otp", State: session.Ready}}, "/qr")
	assert.Contains(t, single.Body.String(), "already connected")

	multi := serveQR(fakeSessions{{Channel: "otp"}, {Channel: "notifications"}}, "/qr")
	assert.Contains(t, multi.Body.String(), `href="/qr/otp"`)
	assert.Contains(t, multi.Body.String(), `href="/qr/notifications"`)
}

func TestHealthPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/health-check/{action}", NewHealthHandler(nil).Ping)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health-check/reboot", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
