package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/sigbook/pkg/crypto"
	"github.com/uhyunpark/sigbook/pkg/order"
	"github.com/uhyunpark/sigbook/pkg/storage"
)

// Pipeline turns one raw submission into exactly one stored record:
// an Order when the signature verifies, a LogEntry otherwise.
type Pipeline struct {
	store    storage.Store
	registry crypto.Registry
	journal  storage.Journal
	metrics  *Metrics
	logger   *zap.SugaredLogger

	// onOrder runs after an order is committed
	onOrder func(order.Order)
}

type Option func(*Pipeline)

// WithRegistry replaces the default verifier registry
func WithRegistry(r crypto.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

func WithJournal(j storage.Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithOrderHook registers fn to receive every accepted order
func WithOrderHook(fn func(order.Order)) Option {
	return func(p *Pipeline) { p.onOrder = fn }
}

func New(store storage.Store, logger *zap.SugaredLogger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		registry: crypto.DefaultRegistry(),
		journal:  storage.NewNopJournal(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics == nil {
		p.metrics = NewMetrics(nil)
	}
	return p
}

// Submit validates, verifies and records raw. It reports whether an order was created.
// The error is non-nil only when the store fails; the boolean is then meaningless.
func (p *Pipeline) Submit(ctx context.Context, raw []byte) (bool, error) {
	sub, err := order.ParseSubmission(raw)
	if err != nil {
		return false, p.reject(ctx, OutcomeStructural, order.AuditMessage(raw), "", err)
	}

	message, err := sub.Message()
	if err != nil {
		return false, p.reject(ctx, OutcomeStructural, order.AuditMessage(raw), sub.Payload.PlatformName, err)
	}

	platform := sub.Payload.Platform
	if _, ok := p.registry[platform]; !ok {
		return false, p.reject(ctx, OutcomeUnsupported, message, sub.Payload.PlatformName, nil)
	}

	start := time.Now()
	verified := p.registry.Verify(platform, message, sub.Signature, sub.Payload.SenderPK)
	p.metrics.verifyLatency.WithLabelValues(platform.String()).Observe(time.Since(start).Seconds())
	if !verified {
		return false, p.reject(ctx, OutcomeVerification, message, sub.Payload.PlatformName, nil)
	}

	o := order.NewOrder(sub)
	id, err := p.store.CreateOrder(ctx, o)
	if err != nil {
		p.metrics.storeErrors.Inc()
		return false, fmt.Errorf("failed to save order: %w", err)
	}
	p.metrics.submissions.WithLabelValues(OutcomeAccepted).Inc()

	p.logger.Infow("order_accepted",
		"id", id,
		"platform", platform.String(),
		"sender", o.SenderPK,
		"buy", o.BuyCurrency,
		"sell", o.SellCurrency,
	)
	p.appendJournal("order_accepted", map[string]any{
		"id":       id,
		"platform": platform.String(),
		"sender":   o.SenderPK,
	})

	if p.onOrder != nil {
		p.onOrder(*o)
	}
	return true, nil
}

// reject stores message as a LogEntry. The reason goes to the logger only.
func (p *Pipeline) reject(ctx context.Context, outcome, message, platform string, cause error) error {
	id, err := p.store.CreateLog(ctx, message)
	if err != nil {
		p.metrics.storeErrors.Inc()
		return fmt.Errorf("failed to save log entry: %w", err)
	}
	p.metrics.submissions.WithLabelValues(outcome).Inc()

	fields := []any{"log_id", id, "reason", outcome}
	if platform != "" {
		fields = append(fields, "platform", platform)
	}
	if cause != nil {
		fields = append(fields, "error", cause.Error())
	}
	p.logger.Infow("submission_rejected", fields...)
	p.appendJournal("submission_rejected", map[string]any{
		"log_id": id,
		"reason": outcome,
	})
	return nil
}

func (p *Pipeline) appendJournal(event string, data map[string]any) {
	if err := p.journal.Append(event, data); err != nil {
		p.logger.Warnw("journal_append_failed", "event", event, "error", err)
	}
}
