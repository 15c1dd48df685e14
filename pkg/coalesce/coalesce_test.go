package coalesce

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKickRunsWorker(t *testing.T) {
	var g Group[string]
	done := make(chan struct{})

	started := g.Kick("a", func() { close(done) })
	assert.True(t, started)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not run")
	}
	g.Wait()
	assert.False(t, g.InFlight("a"))
	assert.Zero(t, g.Len())
}

func TestKickCoalescesWhileInFlight(t *testing.T) {
	var g Group[string]
	release := make(chan struct{})
	var runs atomic.Int32

	fn := func() {
		if runs.Add(1) == 1 {
			<-release
		}
	}

	require.True(t, g.Kick("a", fn))
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	// Redundant kicks while the first pass is blocked fold into one extra pass.
	for i := 0; i < 10; i++ {
		assert.False(t, g.Kick("a", fn))
	}
	assert.True(t, g.InFlight("a"))

	close(release)
	g.Wait()

	assert.Equal(t, int32(2), runs.Load())
	assert.False(t, g.InFlight("a"))
}

func TestKeysAreIndependent(t *testing.T) {
	var g Group[int]
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	for _, k := range []int{1, 2} {
		require.True(t, g.Kick(k, func() {
			wg.Done()
			<-release
		}))
	}

	// Both workers reach the barrier, so they ran concurrently.
	wg.Wait()
	assert.Equal(t, 2, g.Len())
	close(release)
	g.Wait()
	assert.Zero(t, g.Len())
}

func TestNeverTwoWorkersForOneKey(t *testing.T) {
	var g Group[string]
	var active, maxActive atomic.Int32

	fn := func() {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(50 * time.Microsecond)
		active.Add(-1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				g.Kick("k", fn)
			}
		}()
	}
	wg.Wait()
	g.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestNoLostWakeup(t *testing.T) {
	// A producer that appends and kicks after the worker's last look at the
	// buffer must still see its item consumed.
	var g Group[string]
	var mu sync.Mutex
	var buf []int
	consumed := 0

	drain := func() {
		for {
			mu.Lock()
			if len(buf) == 0 {
				mu.Unlock()
				return
			}
			buf = buf[1:]
			consumed++
			mu.Unlock()
		}
	}

	var wg sync.WaitGroup
	const producers, perProducer = 8, 1000
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				mu.Lock()
				buf = append(buf, i)
				mu.Unlock()
				g.Kick("k", drain)
			}
		}()
	}
	wg.Wait()
	g.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, buf)
	assert.Equal(t, producers*perProducer, consumed)
}

func TestPanicReleasesKey(t *testing.T) {
	var g Group[string]
	g.Kick("p", func() { panic("boom") })
	g.Wait()
	assert.False(t, g.InFlight("p"))

	ran := make(chan struct{})
	assert.True(t, g.Kick("p", func() { close(ran) }))
	<-ran
	g.Wait()
}
