// Package gls implements goroutine-local storage, standing in for the
// original source's thread_local state (the "current warp" and "current
// worker index" slots). Go exposes no public goroutine-identity API, so
// this package uses the same technique as the wild goroutineid-style
// packages: parse the numeric id out of the current goroutine's runtime
// stack trace. It is slower than a real TLS slot, but it is exact and
// race-free, and it keeps pool/warp's public API free of a thread-context
// parameter on every call, matching the source's "expose as accessor
// functions" instruction.
package gls

import (
	"runtime"
	"strconv"
	"sync"
)

// id returns the numeric id of the calling goroutine, parsed from the
// "goroutine N [running]:" header line runtime.Stack always produces.
func id() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// buf[:n] looks like "goroutine 123 [running]:\n..."
	const prefix = "goroutine "
	b := buf[:n]
	if len(b) <= len(prefix) || string(b[:len(prefix)]) != prefix {
		return -1
	}
	b = b[len(prefix):]
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	v, err := strconv.ParseInt(string(b[:i]), 10, 64)
	if err != nil {
		return -1
	}
	return v
}

// Store[T] is a map from goroutine id to a value of type T, giving each
// goroutine its own independent slot.
type Store[T any] struct {
	mu sync.RWMutex
	m  map[int64]T
}

// NewStore constructs an empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{m: make(map[int64]T)}
}

// Get returns the value set for the calling goroutine, and whether one was
// set at all.
func (s *Store[T]) Get() (v T, ok bool) {
	gid := id()
	s.mu.RLock()
	v, ok = s.m[gid]
	s.mu.RUnlock()
	return
}

// Set stores v for the calling goroutine.
func (s *Store[T]) Set(v T) {
	gid := id()
	s.mu.Lock()
	s.m[gid] = v
	s.mu.Unlock()
}

// Clear removes any value set for the calling goroutine. Call this when a
// worker goroutine is about to exit, or when a scoped value goes out of
// scope, to avoid leaking map entries for goroutines that have exited.
func (s *Store[T]) Clear() {
	gid := id()
	s.mu.Lock()
	delete(s.m, gid)
	s.mu.Unlock()
}
