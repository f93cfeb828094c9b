// Package dispatch fans a ready notification out to the configured
// channels with per-channel dedup: check the seen store, deliver, commit
// the key only on confirmed success. Channels are independent; partial
// success is a valid end state and shows up in the summary counts.
package dispatch

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/brandwacht/warnmelder/internal/channel"
	"github.com/brandwacht/warnmelder/internal/domain"
	"github.com/brandwacht/warnmelder/internal/observability"
)

// SeenStore is the durable delivered-key set the dispatcher checks and
// commits against.
type SeenStore interface {
	Seen(k domain.Key) bool
	Commit(k domain.Key) error
}

// Summary counts the outcomes of one or more Dispatch calls.
type Summary struct {
	Sent    int
	Failed  int
	Skipped int
}

// Add accumulates another summary into this one.
func (s *Summary) Add(o Summary) {
	s.Sent += o.Sent
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// Dispatcher delivers notifications across channels sequentially, rate
// limited so a burst of eligible records does not hammer the targets.
type Dispatcher struct {
	seen     SeenStore
	channels []channel.Channel
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Dispatcher. The limiter may be nil to disable rate
// limiting; metrics may be nil.
func New(seen SeenStore, channels []channel.Channel, limiter *rate.Limiter, logger *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		seen:     seen,
		channels: channels,
		limiter:  limiter,
		logger:   logger,
		metrics:  metrics,
	}
}

// Dispatch delivers the notification to every channel it has not yet been
// delivered to. A delivery failure on one channel is counted and does not
// stop the others; the key is committed per channel only after confirmed
// success, so a failed channel stays eligible on the next run.
func (d *Dispatcher) Dispatch(ctx context.Context, n domain.Notification) Summary {
	var sum Summary
	for _, ch := range d.channels {
		key := domain.Key{Identity: n.Identity, Channel: ch.Name()}
		if d.seen.Seen(key) {
			sum.Skipped++
			if d.metrics != nil {
				d.metrics.DeliveriesSkipped.WithLabelValues(ch.Name()).Inc()
			}
			d.logger.Debug("already delivered, skipping", "channel", ch.Name(), "identity", n.Identity)
			continue
		}

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				sum.Failed++
				continue
			}
		}

		if err := ch.Send(ctx, n); err != nil {
			sum.Failed++
			if d.metrics != nil {
				d.metrics.DeliveriesFailed.WithLabelValues(ch.Name()).Inc()
			}
			d.logger.Warn("delivery failed", "channel", ch.Name(), "identity", n.Identity, "error", err)
			continue
		}

		if err := d.seen.Commit(key); err != nil {
			// Delivered but not recorded: the next run may redeliver.
			// That trade is preferred over recording an undelivered key.
			d.logger.Error("seen-store commit failed after delivery", "channel", ch.Name(), "identity", n.Identity, "error", err)
		}
		sum.Sent++
		if d.metrics != nil {
			d.metrics.NotificationsSent.WithLabelValues(ch.Name()).Inc()
		}
		d.logger.Info("delivered", "channel", ch.Name(), "identity", n.Identity)
	}
	return sum
}
