// Package alert delivers operator alerts to every configured sink.
package alert

import (
	"context"
	"log/slog"
	"time"
)

// Sink is one alert destination (SNS topic, e-mail).
type Sink interface {
	Alert(ctx context.Context, subject, body string) error
}

// Fanout sends each alert to all sinks. Delivery is best-effort: failures are
// logged and never returned.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
	log     *slog.Logger
}

func NewFanout(log *slog.Logger, sinks ...Sink) *Fanout {
	if log == nil {
		log = slog.Default()
	}
	return &Fanout{sinks: sinks, timeout: 10 * time.Second, log: log}
}

func (f *Fanout) Notify(ctx context.Context, subject, body string) {
	if f == nil {
		return
	}
	for _, s := range f.sinks {
		sctx, cancel := context.WithTimeout(ctx, f.timeout)
		if err := s.Alert(sctx, subject, body); err != nil {
			f.log.Warn("alert delivery failed", "subject", subject, "err", err)
		}
		cancel()
	}
}
