package async

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/iris/pool"
	"github.com/joeycumines/iris/warp"
	"github.com/stretchr/testify/assert"
)

// TestCoroutine_SwitchEnforcesReaderWriterExclusion runs a pool of
// coroutines that each alternate between a shared read Warp and a shared
// write Warp, switching between them with Coro.Switch. Because each Warp
// serializes its own work, no two coroutines should ever be observed
// executing on the same Warp concurrently, regardless of how many
// goroutines the underlying pool schedules them on.
func TestCoroutine_SwitchEnforcesReaderWriterExclusion(t *testing.T) {
	const coroutines = 20
	const cycles = 4

	p := pool.NewPool(8)
	p.Start()
	defer p.Terminate()

	readWarp := warp.NewWarp(p)
	writeWarp := warp.NewWarp(p)

	var readActive, writeActive atomic.Int32
	var readOverlap, writeOverlap atomic.Bool
	var wg sync.WaitGroup

	for i := 0; i < coroutines; i++ {
		wg.Add(1)
		done := make(chan struct{})
		go func() {
			<-done
			wg.Done()
		}()
		Go(readWarp, func(c *Coro) {
			defer close(done)
			for cycle := 0; cycle < cycles; cycle++ {
				c.Switch(readWarp)
				if readActive.Add(1) > 1 {
					readOverlap.Store(true)
				}
				time.Sleep(time.Millisecond)
				readActive.Add(-1)

				c.Switch(writeWarp)
				if writeActive.Add(1) > 1 {
					writeOverlap.Store(true)
				}
				time.Sleep(time.Millisecond)
				writeActive.Add(-1)
			}
		})
	}
	wg.Wait()

	assert.False(t, readOverlap.Load(), "two coroutines ran on readWarp concurrently")
	assert.False(t, writeOverlap.Load(), "two coroutines ran on writeWarp concurrently")
}

func TestCoroutine_SelectResumesOnFirstAvailableWarp(t *testing.T) {
	p := pool.NewPool(4)
	p.Start()
	defer p.Terminate()

	a := warp.NewWarp(p)
	b := warp.NewWarp(p)

	resumed := make(chan *warp.Warp, 1)
	Go(nil, func(c *Coro) {
		w := c.Select(a, b)
		resumed <- w
	})

	got := <-resumed
	assert.True(t, got == a || got == b)
}
