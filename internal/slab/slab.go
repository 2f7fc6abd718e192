// Package slab provides a sharded object pool: N independent sync.Pool
// instances addressed by shard index, so that concurrent allocators (one
// per pool worker) avoid contending on a single pool's internal locking.
//
// Grounded on the chunkPool sync.Pool pattern used to recycle task queue
// nodes, generalized from a single shared pool to a sharded one, matching
// the original source's round-robin sub-allocator array.
package slab

import "sync"

// Pool is a sharded sync.Pool of *T values.
type Pool[T any] struct {
	shards []sync.Pool
}

// New constructs a Pool with the given shard count (minimum 1), each shard
// lazily allocating via newFn.
func New[T any](shardCount int, newFn func() *T) *Pool[T] {
	if shardCount < 1 {
		shardCount = 1
	}
	p := &Pool[T]{shards: make([]sync.Pool, shardCount)}
	for i := range p.shards {
		p.shards[i].New = func() any { return newFn() }
	}
	return p
}

// Get retrieves a value from the shard addressed by shard (reduced modulo
// the shard count), allocating a fresh one if the shard is empty.
func (p *Pool[T]) Get(shard int) *T {
	return p.shards[p.shardIndex(shard)].Get().(*T)
}

// Put returns v to the shard addressed by shard.
func (p *Pool[T]) Put(shard int, v *T) {
	p.shards[p.shardIndex(shard)].Put(v)
}

func (p *Pool[T]) shardIndex(shard int) int {
	n := len(p.shards)
	shard %= n
	if shard < 0 {
		shard += n
	}
	return shard
}
