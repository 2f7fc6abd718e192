package pool

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithDuplicateCount sets the number of duplicate lock-free stacks kept per
// priority band, trading memory for reduced producer contention. Default 4.
func WithDuplicateCount(n int) Option {
	return func(p *Pool) {
		if n >= 1 {
			p.duplicateCount = n
		}
	}
}

// WithInitialLimit sets the pool's starting throttle (see Limit).
// Default 0 (no throttling).
func WithInitialLimit(n int) Option {
	return func(p *Pool) {
		p.initialLimit = n
		p.hasInitialLimit = true
	}
}
