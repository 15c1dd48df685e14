package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/scbackend/pkg/types"
)

var (
	// ErrProjectNotFound is returned when no project has the requested name.
	ErrProjectNotFound = errors.New("project not found")
	// ErrProjectExists is returned when creating a project whose name is taken.
	ErrProjectExists = errors.New("project already exists")
)

// Store defines the interface for project storage
type Store interface {
	CreateProject(project *types.Project) error
	GetProject(name string) (*types.Project, error)
	ListProjects() ([]*types.Project, error)
	UpdateProject(name, body string) error
	UpdateProjectMeta(name, meta string) error
	DeleteProject(name string) error

	Close() error
}

// Source adapts a Store to the payload lookup the registry needs when it
// starts an instance.
type Source struct {
	Store Store
}

// Payload returns the body of the named project.
func (s Source) Payload(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.Store.GetProject(id)
	if err != nil {
		return nil, fmt.Errorf("load payload for %s: %w", id, err)
	}
	return []byte(p.Body), nil
}

// Open returns the store named by kind ("bolt" or "memory").
func Open(kind, dataDir string) (Store, error) {
	switch kind {
	case "bolt", "":
		return NewBoltStore(dataDir)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", kind)
	}
}
