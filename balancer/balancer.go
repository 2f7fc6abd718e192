package balancer

import (
	"context"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/iris/pool"
)

const (
	defaultInterval      = 100 * time.Millisecond
	defaultHighWatermark = 2.0
	defaultLowWatermark  = 0.25
)

// Balancer periodically samples a pool.Pool's pending task count and adjusts
// its thread limit to match observed load, within fixed bounds. Each
// adjustment is gated by a rate limiter so the limit doesn't thrash in
// response to bursty or noisy load.
type Balancer struct {
	p   *pool.Pool
	lim *catrate.Limiter

	interval      time.Duration
	min, max      int
	highWatermark float64
	lowWatermark  float64

	limit int
}

// New constructs a Balancer for p. The limiter gates how often Up/Down may
// actually change p's limit; pass nil to allow every sampled adjustment
// through unconditionally.
func New(p *pool.Pool, lim *catrate.Limiter, opts ...Option) *Balancer {
	b := &Balancer{
		p:             p,
		lim:           lim,
		interval:      defaultInterval,
		min:           1,
		max:           p.ThreadCount(),
		highWatermark: defaultHighWatermark,
		lowWatermark:  defaultLowWatermark,
		limit:         p.ThreadCount(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run samples the pool's pending count every interval, calling Up or Down
// as the watermarks dictate, until ctx is done.
func (b *Balancer) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.sample()
		case <-ctx.Done():
			return
		}
	}
}

func (b *Balancer) sample() {
	pending := b.p.PendingCount()
	limit := float64(b.limit)
	switch {
	case pending > int64(limit*b.highWatermark):
		b.Up()
	case pending < int64(limit*b.lowWatermark):
		b.Down()
	}
}

// Up attempts to raise the pool's limit by one, subject to the rate
// limiter and the configured maximum. Returns whether the limit changed.
func (b *Balancer) Up() bool {
	if b.limit >= b.max {
		return false
	}
	if !b.allow() {
		return false
	}
	b.limit++
	b.p.Limit(b.p.ThreadCount() - b.limit)
	return true
}

// Down attempts to lower the pool's limit by one, subject to the rate
// limiter and the configured minimum. Returns whether the limit changed.
func (b *Balancer) Down() bool {
	if b.limit <= b.min {
		return false
	}
	if !b.allow() {
		return false
	}
	b.limit--
	b.p.Limit(b.p.ThreadCount() - b.limit)
	return true
}

func (b *Balancer) allow() bool {
	if b.lim == nil {
		return true
	}
	_, ok := b.lim.Allow(b.p)
	return ok
}

// Limit returns the balancer's current view of the pool's thread limit. The
// pool itself is throttled by the difference: Up and Down call pool.Limit
// with the thread count minus this value (clamped there to at least 0).
func (b *Balancer) Limit() int {
	return b.limit
}
