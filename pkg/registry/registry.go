package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cuemby/scbackend/pkg/coalesce"
	"github.com/cuemby/scbackend/pkg/engine"
	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrInstanceNotFound is returned when no instance has the requested id.
	ErrInstanceNotFound = errors.New("instance not found")
	// ErrInstanceExists is returned when adding an id that is already registered.
	ErrInstanceExists = errors.New("instance already exists")
)

const centralKey = "central"

// PayloadSource resolves an instance id to the payload its engine runs.
type PayloadSource interface {
	Payload(ctx context.Context, id string) ([]byte, error)
}

// Publisher receives every event leaving the central buffer.
type Publisher interface {
	Publish(ev events.Event)
}

// Listener is invoked for every drained event of the kind it was registered
// for, with the id of the instance that produced it.
type Listener func(instanceID string, ev events.Event)

// Config wires a Registry to its collaborators.
type Config struct {
	// Republish lists the kinds copied onto the central buffer. Defaults to
	// {"message"} when empty.
	Republish events.KindSet
	Factory   engine.Factory
	Source    PayloadSource
	Publisher Publisher
}

// Registry owns the running instances, the central buffer and the local
// listeners. Create one with New and share it by reference.
type Registry struct {
	republish events.KindSet
	factory   engine.Factory
	source    PayloadSource
	publisher Publisher
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	instances map[string]*Instance
	starts    sync.WaitGroup

	listenersMu sync.RWMutex
	listeners   map[events.Kind][]Listener

	central       *events.Queue
	instanceDrain coalesce.Group[*Instance]
	centralDrain  coalesce.Group[string]
}

// New creates a registry.
func New(cfg Config) *Registry {
	republish := cfg.Republish
	if republish.Len() == 0 {
		republish = events.NewKindSet(string(events.KindMessage))
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Registry{
		republish: republish,
		factory:   cfg.Factory,
		source:    cfg.Source,
		publisher: cfg.Publisher,
		logger:    log.WithComponent("registry"),
		ctx:       ctx,
		cancel:    cancel,
		instances: make(map[string]*Instance),
		listeners: make(map[events.Kind][]Listener),
		central:   events.NewQueue(),
	}
}

// AddInstance registers a new instance for id and starts its engine in the
// background. Adding an id that is already registered changes nothing and
// returns ErrInstanceExists.
func (r *Registry) AddInstance(id string) error {
	r.mu.Lock()
	if _, exists := r.instances[id]; exists {
		r.mu.Unlock()
		r.logger.Warn().Str("instance_id", id).Msg("Instance already exists")
		return fmt.Errorf("add %s: %w", id, ErrInstanceExists)
	}
	inst := newInstance(r.ctx, id, r.notify)
	r.instances[id] = inst
	r.starts.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.starts.Done()
		inst.start(r.factory, r.source)
	}()

	r.logger.Info().Str("instance_id", id).Msg("Instance added")
	return nil
}

// RemoveInstance closes and forgets the instance for id. Removing an unknown
// id changes nothing and returns ErrInstanceNotFound.
func (r *Registry) RemoveInstance(id string) error {
	r.mu.Lock()
	inst, ok := r.instances[id]
	if ok {
		delete(r.instances, id)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn().Str("instance_id", id).Msg("No instance found")
		return fmt.Errorf("remove %s: %w", id, ErrInstanceNotFound)
	}

	inst.Close()
	r.logger.Info().Str("instance_id", id).Msg("Instance removed")
	return nil
}

// TriggerExternal injects ev into the instance for id.
func (r *Registry) TriggerExternal(id string, ev events.Event) error {
	inst, ok := r.lookup(id)
	if !ok {
		r.logger.Warn().Str("instance_id", id).Str("kind", string(ev.Kind)).Msg("Trigger for unknown instance")
		return fmt.Errorf("trigger %s: %w", id, ErrInstanceNotFound)
	}

	metrics.EventsTotal.WithLabelValues(metrics.StageTriggered).Inc()
	inst.Trigger(ev)
	r.logger.Debug().Str("instance_id", id).Str("kind", string(ev.Kind)).Msg("Event triggered")
	return nil
}

// AddListener registers cb for kind. Listeners for a kind run in
// registration order, synchronously inside the instance drain.
func (r *Registry) AddListener(kind events.Kind, cb Listener) {
	r.listenersMu.Lock()
	r.listeners[kind] = append(r.listeners[kind], cb)
	r.listenersMu.Unlock()

	r.logger.Debug().Str("kind", string(kind)).Msg("Listener added")
}

// List returns a snapshot of every instance, sorted by id.
func (r *Registry) List() []types.InstanceInfo {
	r.mu.RLock()
	out := make([]types.InstanceInfo, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst.Info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Get returns a snapshot of the instance for id.
func (r *Registry) Get(id string) (types.InstanceInfo, error) {
	inst, ok := r.lookup(id)
	if !ok {
		return types.InstanceInfo{}, fmt.Errorf("get %s: %w", id, ErrInstanceNotFound)
	}
	return inst.Info(), nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.lookup(id)
	return ok
}

// Count returns the number of registered instances.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Close removes every instance and waits for in-flight startups, pumps and
// drains to finish.
func (r *Registry) Close() {
	r.cancel()

	r.mu.Lock()
	insts := make([]*Instance, 0, len(r.instances))
	for id, inst := range r.instances {
		insts = append(insts, inst)
		delete(r.instances, id)
	}
	r.mu.Unlock()

	for _, inst := range insts {
		inst.Close()
	}
	r.starts.Wait()
	for _, inst := range insts {
		inst.wait()
	}
	r.Wait()
	r.logger.Info().Int("instances", len(insts)).Msg("Registry closed")
}

// Wait blocks until no drain is in flight. Drains started by events that
// arrive while waiting are waited for too.
func (r *Registry) Wait() {
	for {
		r.instanceDrain.Wait()
		r.centralDrain.Wait()
		if r.instanceDrain.Len() == 0 && r.centralDrain.Len() == 0 {
			return
		}
	}
}

func (r *Registry) lookup(id string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// notify requests a drain of inst's buffer. The drain is keyed by the
// instance itself so a re-added id never shares a drain with its
// predecessor.
func (r *Registry) notify(inst *Instance) {
	if r.instanceDrain.Kick(inst, func() { r.drainInstance(inst) }) {
		metrics.DrainsTotal.WithLabelValues(metrics.BufferInstance).Inc()
	} else {
		metrics.DrainCoalescedTotal.WithLabelValues(metrics.BufferInstance).Inc()
	}
}

func (r *Registry) drainInstance(inst *Instance) {
	for {
		ev, ok := inst.queue.Pop()
		if !ok {
			return
		}
		r.route(inst.id, ev)
	}
}

func (r *Registry) route(id string, ev events.Event) {
	republished := r.republish.Has(ev.Kind)
	if republished {
		r.central.Push(ev)
		metrics.EventsTotal.WithLabelValues(metrics.StageRepublished).Inc()
		r.notifyCentral()
	}

	r.listenersMu.RLock()
	listeners := r.listeners[ev.Kind]
	r.listenersMu.RUnlock()

	switch {
	case len(listeners) > 0:
		r.invoke(id, ev, listeners)
	case republished:
	case events.IsLifecycle(ev.Kind):
		r.logger.Debug().Str("instance_id", id).Str("kind", string(ev.Kind)).Msg("Lifecycle event")
	default:
		r.logger.Warn().Str("instance_id", id).Str("kind", string(ev.Kind)).Msg("Unknown event kind")
	}
}

func (r *Registry) invoke(id string, ev events.Event, listeners []Listener) {
	for n, cb := range listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					metrics.ListenerPanicsTotal.Inc()
					r.logger.Error().
						Str("instance_id", id).
						Str("kind", string(ev.Kind)).
						Int("listener", n).
						Interface("panic", p).
						Msg("Listener panicked")
				}
			}()
			cb(id, ev)
		}()
	}
}

// notifyCentral requests a drain of the central buffer.
func (r *Registry) notifyCentral() {
	if r.centralDrain.Kick(centralKey, r.drainCentral) {
		metrics.DrainsTotal.WithLabelValues(metrics.BufferCentral).Inc()
	} else {
		metrics.DrainCoalescedTotal.WithLabelValues(metrics.BufferCentral).Inc()
	}
}

func (r *Registry) drainCentral() {
	for {
		ev, ok := r.central.Pop()
		if !ok {
			return
		}
		metrics.EventsTotal.WithLabelValues(metrics.StagePublished).Inc()
		if r.publisher == nil {
			r.logger.Debug().Str("kind", string(ev.Kind)).Msg("No publisher, event discarded")
			continue
		}
		r.publisher.Publish(ev)
	}
}
