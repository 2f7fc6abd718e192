// Package balancer adapts a pool.Pool's thread limit to observed load: it
// samples pending task count on an interval, and nudges the limit up when
// the pool is consistently saturated or down when it is consistently idle.
// Adjustments themselves are rate-limited by a github.com/joeycumines/
// go-catrate limiter, so a noisy load signal can't thrash the pool's limit
// every tick.
package balancer
