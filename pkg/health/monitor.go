package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/scbackend/pkg/log"
	"github.com/rs/zerolog"
)

// ReportFunc receives the folded health of a component after every probe.
type ReportFunc func(component string, healthy bool, message string)

// Monitor probes a fixed set of components on an interval and reports
// their status.
type Monitor struct {
	config Config
	report ReportFunc
	logger zerolog.Logger

	mu       sync.Mutex
	checkers map[string]Checker
	statuses map[string]*Status

	stopCh chan struct{}
	done   chan struct{}
}

// NewMonitor creates a monitor. A zero Config field takes its default.
func NewMonitor(config Config, report ReportFunc) *Monitor {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Retries <= 0 {
		config.Retries = def.Retries
	}
	return &Monitor{
		config:   config,
		report:   report,
		logger:   log.WithComponent("health"),
		checkers: make(map[string]Checker),
		statuses: make(map[string]*Status),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Add registers a checker for component, replacing any previous one.
func (m *Monitor) Add(component string, checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[component] = checker
	m.statuses[component] = NewStatus()
}

// Start begins probing in the background.
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)

		ticker := time.NewTicker(m.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.CheckAll(context.Background())
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop stops probing and waits for the loop to exit.
func (m *Monitor) Stop() {
	close(m.stopCh)
	<-m.done
}

// CheckAll probes every component once, in name order.
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	m.mu.Unlock()
	sort.Strings(names)

	for _, name := range names {
		m.check(ctx, name)
	}
}

func (m *Monitor) check(ctx context.Context, component string) {
	m.mu.Lock()
	checker, ok := m.checkers[component]
	m.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	result := checker.Check(ctx)
	cancel()

	m.mu.Lock()
	status := m.statuses[component]
	wasHealthy := status.Healthy
	status.Update(result, m.config)
	healthy := status.Healthy
	m.mu.Unlock()

	if wasHealthy && !healthy {
		m.logger.Warn().
			Str("check", component).
			Str("type", string(checker.Type())).
			Str("message", result.Message).
			Msg("Component became unhealthy")
	} else if !wasHealthy && healthy {
		m.logger.Info().Str("check", component).Msg("Component recovered")
	}

	if m.report != nil {
		m.report(component, healthy, result.Message)
	}
}

// Status returns a copy of the status of component.
func (m *Monitor) Status(component string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[component]
	if !ok {
		return Status{}, false
	}
	return *s, true
}
