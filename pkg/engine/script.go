package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/metrics"
	"github.com/rs/zerolog"
)

const defaultEmitBuffer = 256

// Program is the payload format the script engine runs.
type Program struct {
	Targets []json.RawMessage `json:"targets"`
	Rules   []Rule            `json:"rules"`
}

// Rule emits an event whenever a delivered event of kind On arrives. On "*"
// matches every kind. Without Data the delivered payload is echoed.
type Rule struct {
	On   string          `json:"on"`
	Emit string          `json:"emit"`
	Data json.RawMessage `json:"data,omitempty"`
}

type compiledRule struct {
	on      events.Kind
	emit    events.Kind
	data    any
	hasData bool
}

// ScriptOptions configures ScriptEngine.
type ScriptOptions struct {
	// StepInterval enables periodic RUNTIME_STEP events when positive.
	StepInterval time.Duration
	// Buffer is the capacity of the emission channel.
	Buffer int
}

// ScriptEngine is a small rule-driven engine. It announces its lifecycle,
// optionally ticks, and answers delivered events according to its rules.
type ScriptEngine struct {
	opts   ScriptOptions
	out    chan events.Event
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger zerolog.Logger

	mu      sync.Mutex
	rules   []compiledRule
	targets int
	loaded  bool
	started bool
	stopped bool
}

// NewScriptEngine creates an unloaded script engine.
func NewScriptEngine(opts ScriptOptions) *ScriptEngine {
	if opts.Buffer <= 0 {
		opts.Buffer = defaultEmitBuffer
	}
	return &ScriptEngine{
		opts:   opts,
		out:    make(chan events.Event, opts.Buffer),
		stopCh: make(chan struct{}),
		logger: log.WithComponent("engine"),
	}
}

// ScriptFactory returns a Factory producing script engines.
func ScriptFactory(opts ScriptOptions) Factory {
	return func() (Engine, error) {
		return NewScriptEngine(opts), nil
	}
}

// Load parses and compiles payload. It may be called again before Start to
// replace the program.
func (e *ScriptEngine) Load(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var prog Program
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&prog); err != nil {
		return fmt.Errorf("parse program: %w", err)
	}

	rules := make([]compiledRule, 0, len(prog.Rules))
	for i, r := range prog.Rules {
		if r.On == "" || r.Emit == "" {
			return fmt.Errorf("rule %d: on and emit are required", i)
		}
		cr := compiledRule{on: events.Kind(r.On), emit: events.Kind(r.Emit)}
		if len(r.Data) > 0 {
			if err := json.Unmarshal(r.Data, &cr.data); err != nil {
				return fmt.Errorf("rule %d data: %w", i, err)
			}
			cr.hasData = true
		}
		rules = append(rules, cr)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return ErrStopped
	}
	if e.started {
		return ErrAlreadyStarted
	}
	e.rules = rules
	e.targets = len(prog.Targets)
	e.loaded = true
	e.emitLocked(events.New(events.KindProjectLoaded, map[string]any{
		"targets": e.targets,
		"rules":   len(rules),
	}))
	return nil
}

// Start begins execution.
func (e *ScriptEngine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.stopped:
		return ErrStopped
	case e.started:
		return ErrAlreadyStarted
	case !e.loaded:
		return ErrNotLoaded
	}
	e.started = true
	e.emitLocked(events.New(events.KindProjectStart, map[string]any{"targets": e.targets}))

	if e.opts.StepInterval > 0 {
		e.wg.Add(1)
		go e.stepLoop()
	}
	return nil
}

func (e *ScriptEngine) stepLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.opts.StepInterval)
	defer ticker.Stop()

	step := 0
	for {
		select {
		case <-ticker.C:
			step++
			e.emit(events.New(events.KindRuntimeStep, map[string]any{"step": step}))
		case <-e.stopCh:
			return
		}
	}
}

// Deliver runs every rule matching ev. Events delivered before Start or after
// Stop are ignored.
func (e *ScriptEngine) Deliver(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.stopped {
		e.logger.Debug().Str("kind", string(ev.Kind)).Msg("Engine not running, ignoring delivered event")
		return
	}
	for _, r := range e.rules {
		if r.on != ev.Kind && r.on != "*" {
			continue
		}
		payload := ev.Payload
		if r.hasData {
			payload = r.data
		}
		e.emitLocked(events.New(r.emit, payload))
	}
}

// Stop halts execution, emits PROJECT_STOP and closes the emission channel.
// It is safe to call more than once.
func (e *ScriptEngine) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.stopCh)
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitLocked(events.New(events.KindProjectStop, nil))
	close(e.out)
	return nil
}

// Events returns the emission channel.
func (e *ScriptEngine) Events() <-chan events.Event {
	return e.out
}

func (e *ScriptEngine) emit(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}
	e.emitLocked(ev)
}

// emitLocked must be called with e.mu held and before out is closed.
func (e *ScriptEngine) emitLocked(ev events.Event) {
	select {
	case e.out <- ev:
	default:
		metrics.EventsTotal.WithLabelValues(metrics.StageDropped).Inc()
		e.logger.Warn().Str("kind", string(ev.Kind)).Msg("Emission channel full, dropping event")
	}
}
