package engine

import (
	"context"
	"errors"

	"github.com/cuemby/scbackend/pkg/events"
)

var (
	// ErrNotLoaded is returned by Start when no payload was loaded.
	ErrNotLoaded = errors.New("engine: no payload loaded")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("engine: already started")
	// ErrStopped is returned by operations on a stopped engine.
	ErrStopped = errors.New("engine: stopped")
)

// Engine executes one project payload and reports what it does as events.
//
// Events returns the emission channel. It is closed once Stop has returned,
// so a consumer can range over it.
type Engine interface {
	Load(ctx context.Context, payload []byte) error
	Start() error
	Stop() error
	Events() <-chan events.Event
}

// Sink is implemented by engines that accept externally triggered events.
// Deliver must not block.
type Sink interface {
	Deliver(ev events.Event)
}

// Factory allocates a fresh, unloaded engine.
type Factory func() (Engine, error)
