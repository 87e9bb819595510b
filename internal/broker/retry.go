package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/todoai/eventflow/internal/platform/logger"
)

// Default redelivery bounds.
const (
	DefaultRetryBase = 200 * time.Millisecond
	DefaultRetryMax  = 10 * time.Second
)

// RetryPolicy bounds the backoff between redelivery attempts.
type RetryPolicy struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Base: DefaultRetryBase, Max: DefaultRetryMax}
}

func (p RetryPolicy) backoff() retry.Backoff {
	base, ceiling := p.Base, p.Max
	if base <= 0 {
		base = DefaultRetryBase
	}
	if ceiling < base {
		ceiling = base
	}
	return retry.WithCappedDuration(ceiling, retry.NewExponential(base))
}

// Deliver runs handler until it succeeds, fails permanently or ctx ends.
// The returned error is nil on success, wraps ErrPermanent for permanent
// failures, and is the context error when delivery was abandoned.
func Deliver(ctx context.Context, policy RetryPolicy, msg Message, handler Handler) error {
	log := logger.FromContextOrDefault(ctx, slog.Default())
	attempt := 0

	return retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempt++
		err := handler(ctx, msg)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			log.Warn("dropping message after permanent failure",
				slog.String("topic", msg.Topic),
				slog.String("message_id", msg.ID),
				slog.String("error", err.Error()))
			return err
		}

		log.Warn("message handler failed, will retry",
			slog.String("topic", msg.Topic),
			slog.String("message_id", msg.ID),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return retry.RetryableError(err)
	})
}
