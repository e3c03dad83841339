package handler

import (
	"encoding/base64"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otp-relay/internal/application/session"
	qrcode "github.com/skip2/go-qrcode"
)

// QRHandler renders pairing codes as scannable images.
type QRHandler struct {
	sessions snapshotSource
}

func NewQRHandler(sessions snapshotSource) *QRHandler { return &QRHandler{sessions: sessions} }

type qrView struct {
	Channel string
	Ready   bool
	Image   template.URL
	Refresh int
}

var qrPage = template.Must(template.New("qr").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>{{.Channel}} QR</title>
{{if .Refresh}}<meta http-equiv="refresh" content="{{.Refresh}}">{{end}}</head>
<body style="text-align:center;padding:50px;font-family:sans-serif">
{{if .Ready}}<h2>✅ {{.Channel}} client is already connected.</h2>
{{else if .Image}}<h2>📱 {{.Channel}} client QR</h2>
<img src="{{.Image}}" alt="pairing code" style="display:block;margin:20px auto;width:250px">
<p>Scan this QR code with WhatsApp (Linked devices)</p>
{{else}}<h2>⏳ Waiting for {{.Channel}} QR code...</h2>
{{end}}<p><a href="/status">Check Status</a></p>
</body></html>`))

var dashboardPage = template.Must(template.New("dashboard").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>WhatsApp sessions</title></head>
<body style="text-align:center;padding:50px;font-family:sans-serif">
<h2>📱 WhatsApp Bot Dashboard</h2>
<ul style="list-style:none;padding:0">{{range .}}
<li style="margin:10px"><a href="/qr/{{.Channel}}">{{.Channel}}</a> ({{.State}})</li>{{end}}
</ul>
<p><a href="/status">Check System Status</a></p>
</body></html>`))

// Index renders the only channel's page directly, or a dashboard for several.
func (h *QRHandler) Index(w http.ResponseWriter, r *http.Request) {
	snaps := h.sessions.Snapshots()
	if len(snaps) == 1 {
		h.render(w, snaps[0])
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = dashboardPage.Execute(w, snaps)
}

func (h *QRHandler) Channel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "channel")
	for _, s := range h.sessions.Snapshots() {
		if s.Channel == name {
			h.render(w, s)
			return
		}
	}
	writeError(w, http.StatusNotFound, "unknown channel")
}

func (h *QRHandler) render(w http.ResponseWriter, s session.Snapshot) {
	v := qrView{Channel: s.Channel, Ready: s.Ready()}
	switch {
	case v.Ready:
	case s.PairingToken != "":
		png, err := qrcode.Encode(s.PairingToken, qrcode.Medium, 256)
		if err != nil {
			slog.Error("qr encode failed", "channel", s.Channel, "err", err)
			writeError(w, http.StatusInternalServerError, "Error generating QR Code")
			return
		}
		v.Image = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
		// Pairing codes rotate; reload to pick up the next one.
		v.Refresh = 20
	default:
		v.Refresh = 3
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = qrPage.Execute(w, v)
}
