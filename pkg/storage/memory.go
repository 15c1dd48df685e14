package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/scbackend/pkg/types"
)

// MemoryStore keeps projects in process memory. Contents are lost on exit.
type MemoryStore struct {
	mu       sync.RWMutex
	projects map[string]types.Project
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{projects: make(map[string]types.Project)}
}

func (s *MemoryStore) CreateProject(project *types.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[project.Name]; ok {
		return fmt.Errorf("%w: %s", ErrProjectExists, project.Name)
	}
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	project.UpdatedAt = now
	if project.Meta == "" {
		project.Meta = "{}"
	}
	s.projects[project.Name] = *project
	return nil
}

func (s *MemoryStore) GetProject(name string) (*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	return &p, nil
}

func (s *MemoryStore) ListProjects() ([]*types.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	projects := make([]*types.Project, 0, len(s.projects))
	for _, p := range s.projects {
		p := p
		projects = append(projects, &p)
	}
	sortNewestFirst(projects)
	return projects, nil
}

func (s *MemoryStore) UpdateProject(name, body string) error {
	return s.modify(name, func(p *types.Project) { p.Body = body })
}

func (s *MemoryStore) UpdateProjectMeta(name, meta string) error {
	return s.modify(name, func(p *types.Project) { p.Meta = meta })
}

func (s *MemoryStore) modify(name string, fn func(*types.Project)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	fn(&p)
	p.UpdatedAt = time.Now().UTC()
	s.projects[name] = p
	return nil
}

func (s *MemoryStore) DeleteProject(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[name]; !ok {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
	}
	delete(s.projects, name)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
