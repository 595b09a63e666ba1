package graph

import (
	"context"

	"github.com/threadsclone/backend/internal/app/runtime"
	"github.com/threadsclone/backend/internal/logging"
	"github.com/threadsclone/backend/internal/pubsub"
)

// Stream adapts a registry subscription to the channel a subscription
// resolver returns. convert decodes each event and may drop it by returning
// false. The subscription is cancelled when ctx ends or the registry closes
// it; the returned channel is closed in both cases.
func Stream[T any](ctx context.Context, logger *logging.Logger, sub *pubsub.Subscription, convert func(context.Context, pubsub.Event) (T, bool)) <-chan T {
	out := make(chan T)
	runtime.Go(logger, "subscription-"+sub.ID(), func() {
		defer close(out)
		defer sub.Cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.Events():
				if !ok {
					return
				}
				v, keep := convert(ctx, ev)
				if !keep {
					continue
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	})
	return out
}

// Decode returns a convert function that unmarshals the payload into T and
// wraps it with wrap. Undecodable payloads are logged and skipped.
func Decode[T any, R any](logger *logging.Logger, wrap func(context.Context, T) (R, bool)) func(context.Context, pubsub.Event) (R, bool) {
	return func(ctx context.Context, ev pubsub.Event) (R, bool) {
		var v T
		if err := ev.Decode(&v); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("Dropping undecodable event")
			var zero R
			return zero, false
		}
		return wrap(ctx, v)
	}
}
