package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()

	for i := 0; i < 200; i++ {
		assert.Equal(t, i+1, q.Push(New(KindMessage, i)))
	}
	assert.Equal(t, 200, q.Len())

	for i := 0; i < 200; i++ {
		e, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, e.Payload)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.Zero(t, q.Len())
}

func TestQueueInterleavedPushPop(t *testing.T) {
	q := NewQueue()
	next := 0
	want := 0

	// Keep a small backlog while pushing far past the compaction threshold.
	for round := 0; round < 500; round++ {
		q.Push(New(KindMessage, next))
		next++
		q.Push(New(KindMessage, next))
		next++

		e, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, want, e.Payload)
		want++
	}

	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		require.Equal(t, want, e.Payload)
		want++
	}
	assert.Equal(t, next, want)
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers = 8
	const perProducer = 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(New(KindMessage, [2]int{p, i}))
			}
		}(p)
	}
	wg.Wait()

	// Every producer's events come out in the order that producer pushed them.
	last := make(map[int]int)
	for p := 0; p < producers; p++ {
		last[p] = -1
	}
	count := 0
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		v := e.Payload.([2]int)
		require.Greater(t, v[1], last[v[0]])
		last[v[0]] = v[1]
		count++
	}
	assert.Equal(t, producers*perProducer, count)
}

func TestKindSet(t *testing.T) {
	s := NewKindSet("message", " ", "alert ", "")
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has(KindMessage))
	assert.True(t, s.Has("alert"))
	assert.False(t, s.Has(KindProjectStart))
}

func TestIsLifecycle(t *testing.T) {
	assert.True(t, IsLifecycle(KindProjectStart))
	assert.True(t, IsLifecycle(KindRuntimeStep))
	assert.False(t, IsLifecycle(KindMessage))
	assert.False(t, IsLifecycle("custom"))
}

func TestQueueCompactionKeepsOrder(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 100; i++ {
		q.Push(New(KindMessage, i))
	}
	for i := 0; i < 80; i++ {
		e, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, e.Payload)
	}
	assert.Equal(t, 20, q.Len())

	q.Push(New(KindMessage, 100))
	for i := 80; i <= 100; i++ {
		e, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, e.Payload)
	}
	assert.Zero(t, q.Len())
}
