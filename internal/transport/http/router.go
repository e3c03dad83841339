package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otp-relay/internal/application/messaging"
	"github.com/otp-relay/internal/application/session"
	"github.com/otp-relay/internal/config"
	"github.com/otp-relay/internal/domain"
	"github.com/otp-relay/internal/transport/http/handler"
	appmiddleware "github.com/otp-relay/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Sessions is what the router needs from the session manager.
type Sessions interface {
	Snapshots() []session.Snapshot
}

// SubscriptionStats is what the router needs from the subscription gate.
type SubscriptionStats interface {
	Stats(ctx context.Context) (*domain.SubscriptionStats, error)
}

// Deps holds the application services behind the router.
type Deps struct {
	Sessions      Sessions
	Messaging     messaging.Service
	Subscriptions SubscriptionStats
	Started       time.Time
}

// NewRouter builds the control surface. ctx bounds background middleware work.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", appmiddleware.APIKeyHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 per client on the send routes.
	sendRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, cfg.TrustProxyHeaders)
	apiKey := appmiddleware.APIKey(cfg.APIKey)

	healthH := handler.NewHealthHandler(cfg.Channels)
	statusH := handler.NewStatusHandler(deps.Sessions, deps.Started)
	qrH := handler.NewQRHandler(deps.Sessions)
	msgH := handler.NewMessageHandler(deps.Messaging)
	subH := handler.NewSubscriptionHandler(deps.Subscriptions)

	// ── Public routes ────────────────────────────────────────────────────
	r.Get("/", healthH.Index)
	r.Get("/health-check/{action}", healthH.Ping)
	r.Get("/status", statusH.Status)
	r.Get("/qr", qrH.Index)
	r.Get("/qr/{channel}", qrH.Channel)

	// ── API-key routes ───────────────────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(apiKey)

		r.With(sendRL.Limit).Post("/send-message", msgH.SendMessage)
		r.With(sendRL.Limit).Post("/send", msgH.SendMessage)
		r.With(sendRL.Limit).Post("/send-notification", msgH.SendNotification)
		r.Get("/check-subscription/{phone}", msgH.CheckSubscription)
		r.Get("/subscriptions/stats", subH.Stats)
	})

	return r
}
