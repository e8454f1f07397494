package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the model while it is cooling down.
var ErrCircuitOpen = errors.New("model circuit open")

type state int

const (
	closed state = iota
	open
	halfOpen
)

// Breaker stops calling a failing model for a while so chat replies fall back
// to local answers immediately instead of waiting out the timeout each time.
// After openFor, a single probe call decides whether to close again.
type Breaker struct {
	next Completer

	mu               sync.Mutex
	st               state
	consecutiveFails int
	failThreshold    int
	openFor          time.Duration
	nextTryAt        time.Time
	probeInFlight    bool
	now              func() time.Time
}

func NewBreaker(next Completer, threshold int, openFor time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{next: next, failThreshold: threshold, openFor: openFor, now: time.Now}
}

func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

func (b *Breaker) Complete(ctx context.Context, system, user string) (string, error) {
	if !b.tryAcquire() {
		return "", ErrCircuitOpen
	}
	out, err := b.next.Complete(ctx, system, user)
	// a caller giving up is not a model failure
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		b.release()
		return out, err
	}
	if err != nil || out == "" {
		b.onFailure()
		return out, err
	}
	b.onSuccess()
	return out, nil
}

func (b *Breaker) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case open:
		if b.now().After(b.nextTryAt) && !b.probeInFlight {
			b.st = halfOpen
			b.probeInFlight = true
			return true
		}
		return false
	case halfOpen:
		if !b.probeInFlight {
			b.probeInFlight = true
			return true
		}
		return false
	default:
		return true
	}
}

func (b *Breaker) release() {
	b.mu.Lock()
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	b.consecutiveFails = 0
	b.st = closed
	b.probeInFlight = false
	b.mu.Unlock()
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st == halfOpen {
		b.st = open
		b.nextTryAt = b.now().Add(b.openFor)
		b.probeInFlight = false
		return
	}

	b.consecutiveFails++
	if b.consecutiveFails >= b.failThreshold {
		b.st = open
		b.nextTryAt = b.now().Add(b.openFor)
	}
}
