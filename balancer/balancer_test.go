package balancer

import (
	"context"
	"testing"
	"time"

	catrate "github.com/joeycumines/go-catrate"
	"github.com/joeycumines/iris/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancer_Up_IncreasesLimitUnderLoad(t *testing.T) {
	p := pool.NewPool(4)
	p.Start()
	defer p.Terminate()

	b := New(p, nil, WithBounds(1, 8))
	require.Equal(t, 4, b.Limit())

	assert.True(t, b.Up())
	assert.Equal(t, 5, b.Limit())
}

func TestBalancer_Up_RespectsMax(t *testing.T) {
	p := pool.NewPool(2)
	p.Start()
	defer p.Terminate()

	b := New(p, nil, WithBounds(1, 2))
	assert.False(t, b.Up())
	assert.Equal(t, 2, b.Limit())
}

func TestBalancer_Down_RespectsMin(t *testing.T) {
	p := pool.NewPool(2)
	p.Start()
	defer p.Terminate()

	b := New(p, nil, WithBounds(2, 4))
	assert.False(t, b.Down())
	assert.Equal(t, 2, b.Limit())
}

func TestBalancer_RateLimiter_GatesAdjustments(t *testing.T) {
	p := pool.NewPool(4)
	p.Start()
	defer p.Terminate()

	lim := catrate.NewLimiter(map[time.Duration]int{time.Minute: 1})
	b := New(p, lim, WithBounds(1, 8))

	assert.True(t, b.Up())
	assert.False(t, b.Up(), "second Up within the same window should be rate-limited")
	assert.Equal(t, 5, b.Limit())
}

func TestBalancer_Run_StopsOnContextCancel(t *testing.T) {
	p := pool.NewPool(2)
	p.Start()
	defer p.Terminate()

	b := New(p, nil, WithInterval(5*time.Millisecond), WithBounds(1, 8))
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
