package upstream

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between the starts of consecutive calls
// to an upstream service. Scryfall asks clients to leave 50–100ms between
// requests; the Pacer makes that spacing explicit instead of sprinkling
// sleeps after each call.
//
// The zero value is not usable; create instances with [NewPacer]. All methods
// are safe for concurrent use: when two goroutines race, each reserves its
// own start slot under the lock so the spacing guarantee holds for both.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time

	// sleep is swappable in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error

	// now is swappable in tests for deterministic scheduling.
	now func() time.Time
}

// NewPacer returns a Pacer that spaces call starts at least interval apart.
// A zero or negative interval yields a Pacer whose Wait never blocks.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		sleep:    sleepCtx,
		now:      time.Now,
	}
}

// Interval returns the configured minimum spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the caller may start its request, then records the
// reserved start time. It returns early with ctx.Err() if ctx is cancelled
// while waiting; in that case no slot is consumed beyond the one already
// reserved.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := p.now()
	start := p.next
	if start.Before(now) {
		start = now
	}
	p.next = start.Add(p.interval)
	p.mu.Unlock()

	if d := start.Sub(now); d > 0 {
		return p.sleep(ctx, d)
	}
	return ctx.Err()
}

// sleepCtx sleeps for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
