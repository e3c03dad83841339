// Package dispatch polls the store for undelivered OTPs and sends them over
// the OTP channel. Delivery is at-least-once; marking a record is the only
// guard against resending it.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/otp-relay/internal/application/session"
	"github.com/otp-relay/internal/domain"
	"github.com/otp-relay/internal/pkg/id"
	"github.com/otp-relay/internal/pkg/phone"
)

// Placeholder is replaced by the OTP value in the message template.
const Placeholder = "{OTP}"

const (
	attemptStatusError = "error"
	sideActionTimeout  = 5 * time.Second
)

type otpStore interface {
	ListPending(ctx context.Context) ([]domain.OTPRecord, error)
	MarkSent(ctx context.Context, phone, otp, status string, at time.Time) error
}

type sender interface {
	Snapshot() session.Snapshot
	ResolveRecipient(ctx context.Context, canonical string) (string, error)
	Send(ctx context.Context, to, text string) (*domain.DeliveryReceipt, error)
}

type attemptLog interface {
	Put(ctx context.Context, a *domain.OTPAttempt) error
}

type publisher interface {
	Publish(ctx context.Context, o domain.OTPOutcome) error
}

// CycleResult summarises one poll cycle.
type CycleResult struct {
	Skipped      bool // session not ready; nothing was read
	Scanned      int
	Sent         int
	NotOnNetwork int
	Failed       int // left unmarked for the next cycle
}

type Options struct {
	Interval    time.Duration
	ItemTimeout time.Duration
	Template    string
	Attempts    attemptLog // optional
	Events      publisher  // optional
	Logger      *slog.Logger
}

type Poller struct {
	store       otpStore
	session     sender
	phones      phone.Normalizer
	interval    time.Duration
	itemTimeout time.Duration
	template    string
	attempts    attemptLog
	events      publisher
	log         *slog.Logger
	now         func() time.Time
}

func NewPoller(store otpStore, s sender, phones phone.Normalizer, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.ItemTimeout <= 0 {
		opts.ItemTimeout = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		store:       store,
		session:     s,
		phones:      phones,
		interval:    opts.Interval,
		itemTimeout: opts.ItemTimeout,
		template:    opts.Template,
		attempts:    opts.Attempts,
		events:      opts.Events,
		log:         log.With("component", "dispatch"),
		now:         time.Now,
	}
}

// Run polls once immediately and then every interval until ctx is done.
// Cycles never overlap.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("otp poller started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		p.RunOnce(ctx)
		select {
		case <-ctx.Done():
			p.log.Info("otp poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one scan cycle. A session that is not Ready makes it a no-op.
func (p *Poller) RunOnce(ctx context.Context) CycleResult {
	var res CycleResult
	if !p.session.Snapshot().Ready() {
		res.Skipped = true
		return res
	}
	records, err := p.store.ListPending(ctx)
	if err != nil {
		p.log.Error("list pending otp failed", "err", err)
		return res
	}
	res.Scanned = len(records)
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		if !rec.Pending() {
			continue
		}
		switch p.dispatch(ctx, rec) {
		case domain.OTPStatusSent:
			res.Sent++
		case domain.OTPStatusFailedNotOnNetwork:
			res.NotOnNetwork++
		default:
			res.Failed++
		}
	}
	if res.Scanned > 0 {
		p.log.Info("otp cycle done", "scanned", res.Scanned, "sent", res.Sent,
			"not_on_network", res.NotOnNetwork, "failed", res.Failed)
	}
	return res
}

// dispatch handles one record and returns the status it was marked with, or
// attemptStatusError when it was left for retry.
func (p *Poller) dispatch(ctx context.Context, rec domain.OTPRecord) string {
	ctx, cancel := context.WithTimeout(ctx, p.itemTimeout)
	defer cancel()

	otp := *rec.OTP
	canonical := p.phones.Normalize(rec.Phone)
	attempt := &domain.OTPAttempt{
		Channel:   p.session.Snapshot().Channel,
		Phone:     rec.Phone,
		Canonical: canonical,
	}
	log := p.log.With("phone", canonical)

	if !p.phones.Valid(canonical) {
		log.Warn("invalid phone on otp record")
		return p.mark(ctx, rec, attempt, domain.OTPStatusFailedNotOnNetwork, "invalid phone")
	}

	to, err := p.session.ResolveRecipient(ctx, canonical)
	if errors.Is(err, domain.ErrNotOnNetwork) {
		log.Info("recipient not on network")
		return p.mark(ctx, rec, attempt, domain.OTPStatusFailedNotOnNetwork, err.Error())
	}
	if err != nil {
		log.Warn("resolve recipient failed", "err", err)
		return p.fail(ctx, attempt, err)
	}

	receipt, err := p.session.Send(ctx, to, strings.ReplaceAll(p.template, Placeholder, otp))
	if err != nil {
		log.Warn("otp send failed", "err", err)
		return p.fail(ctx, attempt, err)
	}
	attempt.MessageID = receipt.MessageID
	log.Info("otp sent", "message_id", receipt.MessageID)
	return p.mark(ctx, rec, attempt, domain.OTPStatusSent, "")
}

func (p *Poller) mark(ctx context.Context, rec domain.OTPRecord, attempt *domain.OTPAttempt, status, reason string) string {
	at := p.now().UTC()
	attempt.Status = status
	attempt.Error = reason
	defer p.record(ctx, attempt, at)

	// The outcome is already decided here; a shutdown or item deadline must
	// not drop the write-back and cause a resend.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideActionTimeout)
	defer cancel()
	err := p.store.MarkSent(markCtx, rec.Phone, *rec.OTP, status, at)
	switch {
	case errors.Is(err, domain.ErrConflict):
		// Re-issued or marked elsewhere since the scan; a new OTP gets its own cycle.
		p.log.Info("otp record changed before marking", "phone", attempt.Canonical)
		return status
	case err != nil:
		p.log.Error("mark otp failed; record will be retried", "phone", attempt.Canonical, "status", status, "err", err)
		attempt.Status = attemptStatusError
		attempt.Error = joinReason(reason, "mark: "+err.Error())
		return attemptStatusError
	}
	p.publish(ctx, domain.OTPOutcome{
		Phone:     rec.Phone,
		Canonical: attempt.Canonical,
		Status:    status,
		MessageID: attempt.MessageID,
		At:        at,
	})
	return status
}

func (p *Poller) fail(ctx context.Context, attempt *domain.OTPAttempt, cause error) string {
	attempt.Status = attemptStatusError
	attempt.Error = cause.Error()
	p.record(ctx, attempt, p.now().UTC())
	return attemptStatusError
}

// record and publish are best-effort side actions.
func (p *Poller) record(ctx context.Context, attempt *domain.OTPAttempt, at time.Time) {
	if p.attempts == nil {
		return
	}
	attempt.AttemptID = id.At(at)
	attempt.CreatedAt = at
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideActionTimeout)
	defer cancel()
	if err := p.attempts.Put(ctx, attempt); err != nil {
		p.log.Warn("otp attempt log failed", "phone", attempt.Canonical, "err", err)
	}
}

func (p *Poller) publish(ctx context.Context, o domain.OTPOutcome) {
	if p.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideActionTimeout)
	defer cancel()
	if err := p.events.Publish(ctx, o); err != nil {
		p.log.Warn("otp outcome publish failed", "phone", o.Canonical, "err", err)
	}
}

func joinReason(reason, extra string) string {
	if reason == "" {
		return extra
	}
	return reason + "; " + extra
}
