package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Health and readiness states reported in HealthStatus.Status.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// Component names reported by the serve command.
const (
	ComponentStorage   = "storage"
	ComponentRegistry  = "registry"
	ComponentBroadcast = "broadcast"
	ComponentAPI       = "api"
)

// CriticalComponents must all be registered and healthy for /ready to pass.
var CriticalComponents = []string{ComponentStorage, ComponentRegistry, ComponentBroadcast}

// HealthStatus is the body of /health and /ready.
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

// ComponentHealth is the last reported state of one component.
type ComponentHealth struct {
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker holds the reported state of every component.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
}

var healthChecker = &HealthChecker{
	components: make(map[string]ComponentHealth),
	startTime:  time.Now(),
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterComponent records the state of a component, adding it if needed.
func RegisterComponent(name string, healthy bool, message string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.components[name] = ComponentHealth{
		Healthy: healthy,
		Message: message,
		Updated: time.Now(),
	}
}

// UpdateComponent is RegisterComponent under the name used by probes.
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// status builds a report. With critical set, only CriticalComponents are
// considered and a missing one counts as not ready.
func (h *HealthChecker) status(critical bool) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := HealthStatus{
		Status:     StatusHealthy,
		Timestamp:  time.Now(),
		Components: make(map[string]string),
		Version:    h.version,
		Uptime:     time.Since(h.startTime).String(),
	}

	if !critical {
		for name, comp := range h.components {
			if comp.Healthy {
				out.Components[name] = StatusHealthy
				continue
			}
			out.Status = StatusUnhealthy
			out.Components[name] = "unhealthy: " + comp.Message
		}
		return out
	}

	out.Status = StatusReady
	for _, name := range CriticalComponents {
		comp, ok := h.components[name]
		switch {
		case !ok:
			out.Status = StatusNotReady
			out.Message = "waiting for " + name + " initialization"
			out.Components[name] = "not registered"
		case !comp.Healthy:
			out.Status = StatusNotReady
			out.Message = "waiting for " + name
			out.Components[name] = "not ready: " + comp.Message
		default:
			out.Components[name] = StatusReady
		}
	}
	return out
}

// GetHealth reports every registered component.
func GetHealth() HealthStatus {
	return healthChecker.status(false)
}

// GetReadiness reports the critical components only.
func GetReadiness() HealthStatus {
	return healthChecker.status(true)
}

func writeStatus(w http.ResponseWriter, ok bool, body any) {
	code := http.StatusOK
	if !ok {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// HealthHandler serves /health: 503 while any component is unhealthy.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		writeStatus(w, health.Status == StatusHealthy, health)
	}
}

// ReadyHandler serves /ready: 503 until every critical component is healthy.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		writeStatus(w, readiness.Status == StatusReady, readiness)
	}
}

// LivenessHandler serves /live and always answers 200.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, true, map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}
