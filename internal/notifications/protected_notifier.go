package notifications

import (
	"context"
	"time"

	"github.com/geocoder89/requesthub/internal/clients"
)

var ErrCircuitOpen = clients.ErrCircuitOpen

// ProtectedNotifier shields the worker from a flapping provider: per-send
// timeout plus the shared circuit breaker.
type ProtectedNotifier struct {
	inner   Notifier
	breaker *clients.Breaker
}

func NewProtectedNotifier(inner Notifier, cfg clients.BreakerConfig) *ProtectedNotifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}

	return &ProtectedNotifier{
		inner:   inner,
		breaker: clients.NewBreaker(cfg),
	}
}

func (n *ProtectedNotifier) SendRequestStatus(ctx context.Context, input SendRequestStatusInput) error {
	return n.breaker.Do(ctx, func(cctx context.Context) error {
		return n.inner.SendRequestStatus(cctx, input)
	}, nil)
}
