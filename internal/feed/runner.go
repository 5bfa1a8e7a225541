package feed

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Calcifer1001/heist/internal/contract"
	"github.com/Calcifer1001/heist/internal/observability"
)

// Runner drains feed messages and applies them to the ledger on behalf
// of the owner. Malformed messages are acked and counted rather than
// redelivered; redelivery cannot make a bad payload parse.
type Runner struct {
	ledger  *contract.Ledger
	msgChan <-chan RawMessage
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewRunner(ledger *contract.Ledger, msgChan <-chan RawMessage, metrics *observability.Metrics, log zerolog.Logger) *Runner {
	return &Runner{
		ledger:  ledger,
		msgChan: msgChan,
		metrics: metrics,
		log:     log,
	}
}

// Run blocks until ctx is cancelled or the message channel closes.
func (r *Runner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-r.msgChan:
			if !ok {
				return nil
			}
			r.handle(msg)
		}
	}
}

func (r *Runner) handle(msg RawMessage) {
	owner := r.ledger.Owner()

	switch {
	case IsPriceSubject(msg.Subject):
		update, err := ParsePriceUpdate(msg.Data)
		if err != nil {
			r.drop(msg, "parse", err)
			return
		}
		if err := r.ledger.SetPrice(owner, update.Asset, update.Price); err != nil {
			r.drop(msg, "apply", err)
			return
		}

	case IsEpochSubject(msg.Subject):
		if _, err := ParseEpochAdvance(msg.Data); err != nil {
			r.drop(msg, "parse", err)
			return
		}
		if _, err := r.ledger.AdvanceSyntheticPrice(owner); err != nil {
			r.drop(msg, "apply", err)
			return
		}

	default:
		r.drop(msg, "unknown_subject", nil)
		return
	}

	msg.AckFunc()
	if r.metrics != nil {
		r.metrics.FeedMessages.WithLabelValues(msg.Subject).Inc()
		r.metrics.FeedToApply.Observe(time.Since(msg.Received).Seconds())
	}
}

// drop acks a message the ledger will never accept and records why
func (r *Runner) drop(msg RawMessage, reason string, err error) {
	msg.AckFunc()
	if r.metrics != nil {
		r.metrics.FeedErrors.WithLabelValues(reason).Inc()
	}
	r.log.Warn().
		Err(err).
		Str("subject", msg.Subject).
		Str("reason", reason).
		Msg("feed message dropped")
}
