package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cuemby/scbackend/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketProjects = []byte("projects")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "scbackend.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketProjects); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketProjects, err)
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Project operations
func (s *BoltStore) CreateProject(project *types.Project) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		if b.Get([]byte(project.Name)) != nil {
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

		data, err := json.Marshal(project)
		if err != nil {
			return err
		}
		return b.Put([]byte(project.Name), data)
	})
}

func (s *BoltStore) GetProject(name string) (*types.Project, error) {
	var project types.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		return json.Unmarshal(data, &project)
	})
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// ListProjects returns every project, newest first.
func (s *BoltStore) ListProjects() ([]*types.Project, error) {
	var projects []*types.Project
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		return b.ForEach(func(k, v []byte) error {
			var project types.Project
			if err := json.Unmarshal(v, &project); err != nil {
				return err
			}
			projects = append(projects, &project)
			return nil
		})
	})
	sortNewestFirst(projects)
	return projects, err
}

func (s *BoltStore) UpdateProject(name, body string) error {
	return s.modify(name, func(p *types.Project) { p.Body = body })
}

func (s *BoltStore) UpdateProjectMeta(name, meta string) error {
	return s.modify(name, func(p *types.Project) { p.Meta = meta })
}

func (s *BoltStore) modify(name string, fn func(*types.Project)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		data := b.Get([]byte(name))
		if data == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		var project types.Project
		if err := json.Unmarshal(data, &project); err != nil {
			return err
		}
		fn(&project)
		project.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&project)
		if err != nil {
			return err
		}
		return b.Put([]byte(name), data)
	})
}

func (s *BoltStore) DeleteProject(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProjects)
		if b.Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %s", ErrProjectNotFound, name)
		}
		return b.Delete([]byte(name))
	})
}

func sortNewestFirst(projects []*types.Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
}
