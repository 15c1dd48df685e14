package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/registry"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/go-chi/chi/v5"
)

// TriggerRequest is the body of POST /api/runners/{id}/trigger.
type TriggerRequest struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (s *Server) listRunners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.instances.List())
}

func (s *Server) getRunner(w http.ResponseWriter, r *http.Request) {
	info, err := s.instances.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "Runner not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// runnerID returns the {id} parameter, or writes 400 and returns false.
func runnerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !types.ValidID(id) {
		writeJSONError(w, http.StatusBadRequest, "Invalid runner id")
		return "", false
	}
	return id, true
}

func (s *Server) addRunner(w http.ResponseWriter, r *http.Request) {
	id, ok := runnerID(w, r)
	if !ok {
		return
	}
	if err := s.startRunner(id); err != nil {
		s.writeRunnerError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: fmt.Sprintf("Runner %s added successfully", id), ProjectID: id})
}

func (s *Server) removeRunner(w http.ResponseWriter, r *http.Request) {
	id, ok := runnerID(w, r)
	if !ok {
		return
	}
	if err := s.instances.RemoveInstance(id); err != nil {
		s.writeRunnerError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Runner %s removed successfully", id), ProjectID: id})
}

// legacyAddRunner answers 200 even when the runner already exists.
func (s *Server) legacyAddRunner(w http.ResponseWriter, r *http.Request) {
	id, ok := runnerID(w, r)
	if !ok {
		return
	}
	if err := s.startRunner(id); err != nil && !errors.Is(err, registry.ErrInstanceExists) {
		s.writeRunnerError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Runner %s added successfully", id)})
}

// legacyRemoveRunner answers 200 even when no such runner exists.
func (s *Server) legacyRemoveRunner(w http.ResponseWriter, r *http.Request) {
	id, ok := runnerID(w, r)
	if !ok {
		return
	}
	_ = s.instances.RemoveInstance(id)
	writeJSON(w, http.StatusOK, MessageResponse{Message: fmt.Sprintf("Runner %s removed successfully", id)})
}

func (s *Server) startRunner(id string) error {
	if _, err := s.store.GetProject(id); err != nil {
		return err
	}
	return s.instances.AddInstance(id)
}

func (s *Server) writeRunnerError(w http.ResponseWriter, r *http.Request, id string, err error) {
	var msg string
	switch {
	case errors.Is(err, registry.ErrInstanceExists):
		msg = fmt.Sprintf("Runner %s already exists", id)
	case errors.Is(err, registry.ErrInstanceNotFound):
		msg = fmt.Sprintf("Runner %s not found", id)
	default:
		msg = "Project not found for this runner ID"
	}
	s.writeError(w, r, err, msg)
}

func (s *Server) triggerRunner(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req TriggerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Event == "" {
		writeJSONError(w, http.StatusBadRequest, "Event name is required")
		return
	}

	if err := s.instances.TriggerExternal(id, events.New(events.Kind(req.Event), req.Data)); err != nil {
		s.writeRunnerError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Event triggered successfully", ProjectID: id})
}
