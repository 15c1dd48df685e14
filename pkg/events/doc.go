/*
Package events defines the event value that flows through the scbackend relay
and the FIFO buffer every stage of the relay is built on.

# Event Flow

	engine ──emit──► Instance buffer ──drain──► central buffer ──drain──► subscribers
	                 (events.Queue)             (events.Queue)

An Event is a (kind, payload) pair. It carries no identity of its own; its
position in a Queue is what orders it. Kinds are free-form strings. A few are
predefined:

  - message: the externally visible notification kind, republished to
    subscribers by default
  - PROJECT_LOADED, PROJECT_START, PROJECT_STOP, RUNTIME_STEP: lifecycle kinds
    emitted by engines or injected by the run/stop API routes

# Queue

Queue is unbounded and never blocks a producer. Consumers Pop from the head
until it reports empty. Many goroutines may Push concurrently; the relay
ensures that only one goroutine drains a given queue at a time (see package
coalesce), which is what keeps per-producer order intact end to end.

# KindSet

KindSet is the configured set of kinds the registry republishes to
subscribers. All other kinds still reach local listeners.
*/
package events
