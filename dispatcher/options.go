package dispatcher

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithShardCount sets the number of slab shards used for Routine
// allocation. Default 4.
func WithShardCount(n int) Option {
	return func(d *Dispatcher) {
		if n >= 1 {
			d.shardCount = n
		}
	}
}
