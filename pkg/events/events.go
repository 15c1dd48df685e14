package events

import "strings"

// Kind names the type of an event. Kinds are free-form strings chosen by the
// engine or the caller of a trigger.
type Kind string

const (
	// KindMessage is the externally visible notification kind. It is the
	// default (and only default) member of the republish set.
	KindMessage Kind = "message"

	// Lifecycle kinds emitted by engines and by the run/stop API routes.
	KindProjectLoaded Kind = "PROJECT_LOADED"
	KindProjectStart  Kind = "PROJECT_START"
	KindProjectStop   Kind = "PROJECT_STOP"
	KindRuntimeStep   Kind = "RUNTIME_STEP"
)

var lifecycleKinds = map[Kind]bool{
	KindProjectLoaded: true,
	KindProjectStart:  true,
	KindProjectStop:   true,
	KindRuntimeStep:   true,
}

// IsLifecycle reports whether k is one of the engine lifecycle kinds.
func IsLifecycle(k Kind) bool {
	return lifecycleKinds[k]
}

// Event is a single (kind, payload) pair flowing through the relay. It has no
// identity beyond its position in a buffer and must not be mutated once
// created.
type Event struct {
	Kind    Kind
	Payload any
}

// New creates an event.
func New(kind Kind, payload any) Event {
	return Event{Kind: kind, Payload: payload}
}

// KindSet is an immutable set of event kinds.
type KindSet map[Kind]struct{}

// NewKindSet builds a set from kind names, ignoring blanks.
func NewKindSet(kinds ...string) KindSet {
	s := make(KindSet, len(kinds))
	for _, k := range kinds {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		s[Kind(k)] = struct{}{}
	}
	return s
}

// Has reports whether k is in the set.
func (s KindSet) Has(k Kind) bool {
	_, ok := s[k]
	return ok
}

// Len returns the number of kinds in the set.
func (s KindSet) Len() int {
	return len(s)
}
