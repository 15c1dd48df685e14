/*
Package registry owns the running project instances and relays their events.

Every instance has its own FIFO buffer. The registry drains each buffer with
at most one worker in flight, copies events whose kind is in the republish
set onto a central buffer, and runs local listeners. The central buffer is
drained the same way into a Publisher, normally the broadcaster.

# Architecture

	┌─────────────────────────── REGISTRY ────────────────────────────┐
	│                                                                   │
	│  engine.Events() ──pump──┐        TriggerExternal(id, ev)         │
	│                          ▼                 │                      │
	│                  ┌───────────────┐         │  Sink.Deliver(ev)    │
	│                  │ Instance      │◄────────┘──────────► engine     │
	│                  │ buffer (FIFO) │                                │
	│                  └───────┬───────┘                                │
	│                 notify   │ coalesce.Group[*Instance]             │
	│                          ▼                                        │
	│                    drainInstance                                  │
	│               ┌──────────┴───────────┐                            │
	│      kind in republish set      listeners[kind]                   │
	│               ▼                  (in order, recovered)            │
	│        ┌──────────────┐                                           │
	│        │ central FIFO │                                           │
	│        └──────┬───────┘                                           │
	│ notifyCentral │ coalesce.Group[string]                            │
	│               ▼                                                   │
	│          Publisher.Publish(ev) ──► broadcast                       │
	└───────────────────────────────────────────────────────────────────┘

# Instance lifecycle

	absent ──AddInstance──► created ──engine up──► running
	                           │                      │
	                           └──init/load failed──► degraded
	                                                  │
	             RemoveInstance / Close (any state) ──► closed

Startup happens on its own goroutine, so AddInstance returns immediately.
If the engine could not be created at all, triggers on the degraded instance
are logged and dropped. If it was created but failed to load or start, the
instance still buffers and relays triggered events, and nothing is delivered
to the engine. A closed instance is never reused: adding the same id again
builds a fresh Instance with a new run id.

# Ordering

Events from one instance reach listeners and the central buffer in the order
they entered its buffer, and the central buffer preserves the order events
were republished. There is no ordering between instances.

# Usage

	reg := registry.New(registry.Config{
		Republish: events.NewKindSet("message"),
		Factory:   engine.ScriptFactory(engine.ScriptOptions{}),
		Source:    storage.Source{Store: store},
		Publisher: broadcaster,
	})
	defer reg.Close()

	reg.AddListener(events.KindProjectStop, func(id string, ev events.Event) {
		log.Logger.Info().Str("instance_id", id).Msg("project stopped")
	})

	if err := reg.AddInstance("demo"); err != nil && !errors.Is(err, registry.ErrInstanceExists) {
		return err
	}
	err := reg.TriggerExternal("demo", events.New("message", map[string]any{"text": "hi"}))
*/
package registry
