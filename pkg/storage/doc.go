/*
Package storage provides project persistence for scbackend.

Projects are the payloads the registry hands to an execution engine when an
instance starts. The package offers two Store implementations behind one
interface:

  - BoltStore: BoltDB (bbolt) file at <dataDir>/scbackend.db, one "projects"
    bucket keyed by project name, JSON values.
  - MemoryStore: a mutex-guarded map, for tests and throwaway runs.

# Architecture

	┌──────────────────── PROJECT STORAGE ────────────────────┐
	│                                                           │
	│  api (CRUD routes)          registry (instance start)     │
	│        │                            │                     │
	│        ▼                            ▼                     │
	│  storage.Store  ◄──────────  storage.Source.Payload(id)   │
	│        │                                                  │
	│   ┌────┴──────────┐                                       │
	│   ▼               ▼                                       │
	│ BoltStore      MemoryStore                                │
	│ bucket:          map[name]Project                         │
	│  projects                                                 │
	│  name → JSON                                              │
	└───────────────────────────────────────────────────────────┘

# Semantics

  - CreateProject fails with ErrProjectExists when the name is taken.
  - Get, Update, UpdateMeta and Delete fail with ErrProjectNotFound when the
    name is unknown. Errors wrap the sentinel, so match with errors.Is.
  - ListProjects returns newest first by CreatedAt.
  - Writes stamp UpdatedAt; CreateProject also stamps CreatedAt when unset and
    defaults Meta to "{}".

# Usage

	store, err := storage.Open("bolt", "./scbackend-data")
	if err != nil {
		return err
	}
	defer store.Close()

	err = store.CreateProject(&types.Project{Name: "demo", Body: body})

	reg := registry.New(registry.Config{Source: storage.Source{Store: store}})
*/
package storage
