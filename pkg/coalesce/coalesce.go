// Package coalesce runs at most one worker per key and folds redundant wake-ups
// into the worker that is already running.
//
// A worker is expected to drain some buffer until it observes it empty. A Kick
// that arrives while the worker for that key is in flight does not start a
// second worker; it marks the key dirty instead, and the running worker makes
// one more pass before it exits. That closes the window between "worker saw
// an empty buffer" and "worker released the key" in which a producer could
// otherwise append an event nobody drains.
package coalesce

import (
	"fmt"
	"sync"

	"github.com/cuemby/scbackend/pkg/log"
)

type flight struct {
	dirty bool
}

// Group tracks in-flight workers by key. The zero value is ready to use.
type Group[K comparable] struct {
	mu      sync.Mutex
	flights map[K]*flight
	idle    *sync.Cond
}

// Kick asks for fn to run for key. If no worker for key is in flight, a new
// goroutine runs fn and Kick returns true. Otherwise the running worker is told
// to run fn again once the current pass returns, and Kick returns false.
// Kick never blocks on fn.
func (g *Group[K]) Kick(key K, fn func()) bool {
	g.mu.Lock()
	if f, ok := g.flights[key]; ok {
		f.dirty = true
		g.mu.Unlock()
		return false
	}
	if g.flights == nil {
		g.flights = make(map[K]*flight)
	}
	f := &flight{}
	g.flights[key] = f
	g.mu.Unlock()

	go g.run(key, f, fn)
	return true
}

func (g *Group[K]) run(key K, f *flight, fn func()) {
	for {
		g.call(key, fn)

		g.mu.Lock()
		if !f.dirty {
			delete(g.flights, key)
			if len(g.flights) == 0 && g.idle != nil {
				g.idle.Broadcast()
			}
			g.mu.Unlock()
			return
		}
		f.dirty = false
		g.mu.Unlock()
	}
}

func (g *Group[K]) call(key K, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Logger.Error().
				Str("component", "coalesce").
				Str("key", fmt.Sprint(key)).
				Interface("panic", r).
				Msg("worker panicked")
		}
	}()
	fn()
}

// InFlight reports whether a worker for key is currently running.
func (g *Group[K]) InFlight(key K) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.flights[key]
	return ok
}

// Len returns the number of keys with a worker in flight.
func (g *Group[K]) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.flights)
}

// Wait blocks until no worker is in flight, including workers started while
// waiting.
func (g *Group[K]) Wait() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idle == nil {
		g.idle = sync.NewCond(&g.mu)
	}
	for len(g.flights) > 0 {
		g.idle.Wait()
	}
}
