package clients

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker open")

type BreakerConfig struct {
	Timeout          time.Duration // hard timeout per call
	FailureThreshold int           // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls int           // allow N trial calls in half-open
}

// Breaker guards an outbound port call. Business errors (not found,
// conflict) do not count as failures; only transport-level ones do.
type Breaker struct {
	cfg BreakerConfig
	mu  sync.Mutex

	state string // "closed" | "open" | "half_open"

	consecutiveFailures int
	openedAt            time.Time
	halfOpenInFlight    int
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	//defaults
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 15 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	return &Breaker{
		cfg:   cfg,
		state: "closed",
	}
}

// Do runs fn under the breaker. isFailure decides whether the returned error
// should trip the circuit.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error, isFailure func(error) bool) error {
	// fail-fast gate
	if !b.allowRequest() {
		return ErrCircuitOpen
	}

	// enforce timeout
	callCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	err := fn(callCtx)

	failed := err != nil
	if failed && isFailure != nil {
		failed = isFailure(err)
	}

	b.afterRequest(failed)

	return err
}

func (b *Breaker) allowRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case "closed":
		return true
	case "open":
		// cooldown has passed? move to half open
		if time.Since(b.openedAt) >= b.cfg.Cooldown {
			b.state = "half_open"
			b.halfOpenInFlight = 0
			return true
		}
		return false
	case "half_open":
		if b.halfOpenInFlight >= b.cfg.HalfOpenMaxCalls {
			return false
		}
		b.halfOpenInFlight++
		return true

	default:
		// safe fallback
		return true
	}
}

func (b *Breaker) afterRequest(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// half-open call just finished
	if b.state == "half_open" && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if !failed {
		// success => close circuit and reset counters
		b.consecutiveFailures = 0
		b.state = "closed"
		return
	}

	// failure
	b.consecutiveFailures++

	// if half-open failed, reopen immediately
	if b.state == "half_open" {
		b.state = "open"
		b.openedAt = time.Now()
		return
	}

	// if failures reached threshold, open circuit
	if b.consecutiveFailures >= b.cfg.FailureThreshold {
		b.state = "open"
		b.openedAt = time.Now()
	}
}
