package handler

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HealthHandler serves the health-check and landing endpoints.
type HealthHandler struct {
	channels []string
}

func NewHealthHandler(channels []string) *HealthHandler { return &HealthHandler{channels: channels} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action == "ping" {
		writeJSON(w, http.StatusOK, Envelope{Success: true, Message: "pong"})
		return
	}
	writeError(w, http.StatusBadRequest, "unknown action")
}

var indexPage = template.Must(template.New("index").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>OTP relay</title></head>
<body style="text-align:center;padding:50px;font-family:sans-serif">
<h2>📱 WhatsApp OTP relay</h2>
<p>{{range .}}<a href="/qr/{{.}}" style="margin:10px">{{.}} QR</a>{{end}}</p>
<p><a href="/status">Check System Status</a></p>
</body></html>`))

func (h *HealthHandler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexPage.Execute(w, h.channels)
}
