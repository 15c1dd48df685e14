package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/scbackend/pkg/engine"
	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Instance is one running copy of a project. Its buffer is fed by the engine's
// emission channel and by triggers, and drained by the registry.
type Instance struct {
	id        string
	runID     string
	createdAt time.Time
	queue     *events.Queue
	notify    func(*Instance)
	logger    zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	ready  chan struct{}
	pumps  sync.WaitGroup

	mu     sync.Mutex
	engine engine.Engine
	state  types.InstanceState
	err    error
	// noEngine is set when the engine could not be allocated at all.
	// Triggers are then dropped instead of buffered.
	noEngine bool
}

func newInstance(parent context.Context, id string, notify func(*Instance)) *Instance {
	ctx, cancel := context.WithCancel(parent)
	runID := uuid.New().String()
	return &Instance{
		id:        id,
		runID:     runID,
		createdAt: time.Now(),
		queue:     events.NewQueue(),
		notify:    notify,
		logger:    log.WithInstanceID(id).With().Str("component", "registry").Str("run_id", runID).Logger(),
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
		state:     types.InstanceStateCreated,
	}
}

// start allocates, loads and starts the engine. It runs on its own goroutine;
// every failure leaves the instance degraded.
func (i *Instance) start(factory engine.Factory, source PayloadSource) {
	defer close(i.ready)

	timer := metrics.NewTimer()
	eng, err := i.bootEngine(factory, source)
	if err != nil {
		i.logger.Error().Err(err).Msg("Engine failed to start, instance degraded")
		i.mu.Lock()
		if i.state == types.InstanceStateCreated {
			i.state = types.InstanceStateDegraded
		}
		i.err = err
		i.mu.Unlock()
		return
	}
	timer.ObserveDuration(metrics.EngineStartDuration)

	i.mu.Lock()
	if i.state == types.InstanceStateClosed {
		i.mu.Unlock()
		i.logger.Debug().Msg("Instance closed during startup, stopping engine")
		i.stopEngine(eng)
		return
	}
	i.engine = eng
	i.state = types.InstanceStateRunning
	i.mu.Unlock()

	i.logger.Info().Dur("took", timer.Duration()).Msg("Instance running")
}

func (i *Instance) bootEngine(factory engine.Factory, source PayloadSource) (engine.Engine, error) {
	if factory == nil {
		i.markNoEngine()
		return nil, fmt.Errorf("no engine factory configured")
	}
	eng, err := factory()
	if err != nil {
		i.markNoEngine()
		return nil, fmt.Errorf("init engine: %w", err)
	}
	if source == nil {
		i.stopEngine(eng)
		return nil, fmt.Errorf("no payload source configured")
	}

	payload, err := source.Payload(i.ctx, i.id)
	if err != nil {
		i.stopEngine(eng)
		return nil, err
	}
	if err := eng.Load(i.ctx, payload); err != nil {
		i.stopEngine(eng)
		return nil, fmt.Errorf("load payload: %w", err)
	}

	i.pumps.Add(1)
	go i.pump(eng)

	if err := eng.Start(); err != nil {
		i.stopEngine(eng)
		return nil, fmt.Errorf("start engine: %w", err)
	}
	return eng, nil
}

// pump moves emitted events into the buffer until the engine closes its
// channel.
func (i *Instance) pump(eng engine.Engine) {
	defer i.pumps.Done()
	for ev := range eng.Events() {
		metrics.EventsTotal.WithLabelValues(metrics.StageEmitted).Inc()
		i.queue.Push(ev)
		i.notify(i)
	}
}

func (i *Instance) markNoEngine() {
	i.mu.Lock()
	i.noEngine = true
	i.mu.Unlock()
}

func (i *Instance) stopEngine(eng engine.Engine) {
	if err := eng.Stop(); err != nil {
		i.logger.Error().Err(err).Msg("Failed to stop engine")
	}
}

// Trigger appends ev to the buffer, forwards it to the engine if the engine
// accepts deliveries, and requests a drain. It never blocks on the engine and
// never fails. An instance whose engine could not be allocated drops ev.
func (i *Instance) Trigger(ev events.Event) {
	i.mu.Lock()
	eng := i.engine
	noEngine := i.noEngine
	i.mu.Unlock()

	if noEngine {
		i.logger.Error().Str("kind", string(ev.Kind)).Msg("Engine was never created, trigger dropped")
		return
	}
	i.queue.Push(ev)

	switch sink, ok := eng.(engine.Sink); {
	case eng == nil:
		i.logger.Debug().Str("kind", string(ev.Kind)).Msg("No engine, trigger buffered only")
	case ok:
		sink.Deliver(ev)
	}

	i.notify(i)
}

// Close requests the engine to stop. Events still buffered stay drainable.
// Close is idempotent.
func (i *Instance) Close() {
	i.mu.Lock()
	if i.state == types.InstanceStateClosed {
		i.mu.Unlock()
		return
	}
	i.state = types.InstanceStateClosed
	eng := i.engine
	i.engine = nil
	i.mu.Unlock()

	i.cancel()
	if eng == nil {
		i.logger.Warn().Msg("No engine to stop")
		return
	}
	i.stopEngine(eng)
	i.logger.Info().Msg("Engine stopped")
}

// Ready is closed once startup finished, successfully or not.
func (i *Instance) Ready() <-chan struct{} {
	return i.ready
}

// wait blocks until startup finished and the engine's emission channel has
// been fully pumped. The latter only happens after Close.
func (i *Instance) wait() {
	<-i.ready
	i.pumps.Wait()
}

// ID returns the instance id.
func (i *Instance) ID() string {
	return i.id
}

// Info returns a snapshot of the instance.
func (i *Instance) Info() types.InstanceInfo {
	i.mu.Lock()
	defer i.mu.Unlock()

	info := types.InstanceInfo{
		ID:          i.id,
		RunID:       i.runID,
		State:       i.state,
		Initialized: i.engine != nil,
		Buffered:    i.queue.Len(),
		CreatedAt:   i.createdAt,
	}
	if i.err != nil {
		info.Error = i.err.Error()
	}
	return info
}
