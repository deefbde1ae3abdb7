package scrape

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// JitterPacer sleeps a randomized duration between consecutive remote
// requests. It is a courtesy delay against the remote interface, not a
// correctness requirement; cancellation cuts the wait short.
type JitterPacer struct {
	min time.Duration
	max time.Duration
}

// NewJitterPacer builds a pacer waiting between min and max per call.
func NewJitterPacer(min, max time.Duration) *JitterPacer {
	if max < min {
		max = min
	}
	return &JitterPacer{min: min, max: max}
}

// Wait blocks for the randomized delay or until ctx is done.
func (p *JitterPacer) Wait(ctx context.Context) {
	delay := p.min + randomJitter(p.max-p.min)
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// NopPacer waits for nothing; used by tests.
type NopPacer struct{}

// Wait returns immediately.
func (NopPacer) Wait(context.Context) {}
