package types

import (
	"encoding/json"
	"regexp"
	"time"
)

// Project is a registered, runnable payload. Name doubles as the id used by
// the registry and the API.
type Project struct {
	Name      string    `json:"name"`
	Body      string    `json:"body"`
	Meta      string    `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectMeta is the decoded form of Project.Meta.
type ProjectMeta struct {
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// EncodeMeta serializes meta for storage in Project.Meta.
func EncodeMeta(meta ProjectMeta) string {
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeMeta parses Project.Meta. Empty or malformed metadata decodes to the
// zero value.
func DecodeMeta(raw string) ProjectMeta {
	var meta ProjectMeta
	_ = json.Unmarshal([]byte(raw), &meta)
	return meta
}

// InstanceState is the lifecycle state of a running project copy.
type InstanceState string

const (
	// InstanceStateCreated means the instance is registered and its engine is
	// still initializing.
	InstanceStateCreated InstanceState = "created"
	// InstanceStateRunning means the engine loaded the payload and started.
	InstanceStateRunning InstanceState = "running"
	// InstanceStateDegraded means engine init or payload load failed. The
	// instance still accepts triggers but nothing executes.
	InstanceStateDegraded InstanceState = "degraded"
	// InstanceStateClosed means the instance was removed.
	InstanceStateClosed InstanceState = "closed"
)

// InstanceInfo is a read-only view of a registered instance.
type InstanceInfo struct {
	ID          string        `json:"id"`
	RunID       string        `json:"run_id"`
	State       InstanceState `json:"state"`
	Initialized bool          `json:"initialized"`
	Buffered    int           `json:"buffered"`
	CreatedAt   time.Time     `json:"created_at"`
	Error       string        `json:"error,omitempty"`
}

var idPattern = regexp.MustCompile(`^[\w-]+$`)

// ValidID reports whether id is usable as a project or instance id
// (letters, digits, underscore, hyphen).
func ValidID(id string) bool {
	return len(id) <= 64 && idPattern.MatchString(id)
}
