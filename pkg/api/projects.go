package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cuemby/scbackend/pkg/events"
	"github.com/cuemby/scbackend/pkg/log"
	"github.com/cuemby/scbackend/pkg/registry"
	"github.com/cuemby/scbackend/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CreateProjectRequest is the body of POST /api/projects. Body is accepted
// as an alias of Code.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Body        string `json:"body,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpdateProjectRequest is the body of PUT /api/projects/{id}. At least one
// field must be set; a nil Description leaves the metadata untouched.
type UpdateProjectRequest struct {
	Body        string  `json:"body,omitempty"`
	Description *string `json:"description,omitempty"`
}

// MessageResponse acknowledges a mutation.
type MessageResponse struct {
	Message   string `json:"message"`
	Name      string `json:"name,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
	Status    string `json:"status,omitempty"`
}

func projectLogger(id string) zerolog.Logger {
	return log.WithProjectID(id).With().Str("component", "api").Logger()
}

func (s *Server) listProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.ListProjects()
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	if projects == nil {
		projects = []*types.Project{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.store.GetProject(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err, "Project not found")
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	code := req.Code
	if code == "" {
		code = req.Body
	}
	if strings.TrimSpace(req.Name) == "" || code == "" {
		writeJSONError(w, http.StatusBadRequest, "Project name and code are required")
		return
	}
	if !types.ValidID(req.Name) {
		writeJSONError(w, http.StatusBadRequest, "Invalid project id")
		return
	}
	if !json.Valid([]byte(code)) {
		writeJSONError(w, http.StatusBadRequest, "Project code must be valid JSON")
		return
	}

	project := &types.Project{
		Name: req.Name,
		Body: code,
		Meta: types.EncodeMeta(types.ProjectMeta{
			Description: req.Description,
			CreatedAt:   time.Now().UTC(),
		}),
	}
	if err := s.store.CreateProject(project); err != nil {
		s.writeError(w, r, err, "Project with this name already exists")
		return
	}

	plog := projectLogger(req.Name)
	plog.Info().Msg("Project created")
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Project created successfully", Name: req.Name})
}

func (s *Server) updateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Body == "" && req.Description == nil {
		writeJSONError(w, http.StatusBadRequest, "Project body is required")
		return
	}
	if req.Body != "" && !json.Valid([]byte(req.Body)) {
		writeJSONError(w, http.StatusBadRequest, "Project body must be valid JSON")
		return
	}

	project, err := s.store.GetProject(id)
	if err != nil {
		s.writeError(w, r, err, "Project not found")
		return
	}
	if req.Body != "" {
		if err := s.store.UpdateProject(id, req.Body); err != nil {
			s.writeError(w, r, err, "Project not found")
			return
		}
	}
	if req.Description != nil {
		meta := types.DecodeMeta(project.Meta)
		meta.Description = *req.Description
		if err := s.store.UpdateProjectMeta(id, types.EncodeMeta(meta)); err != nil {
			s.writeError(w, r, err, "Project not found")
			return
		}
	}

	plog := projectLogger(id)
	plog.Info().Msg("Project updated")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Project updated successfully", Name: id})
}

func (s *Server) deleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetProject(id); err != nil {
		s.writeError(w, r, err, "Project not found")
		return
	}
	if s.instances.Has(id) {
		if err := s.instances.RemoveInstance(id); err != nil && !errors.Is(err, registry.ErrInstanceNotFound) {
			s.writeError(w, r, err, "")
			return
		}
	}
	if err := s.store.DeleteProject(id); err != nil {
		s.writeError(w, r, err, "Project not found")
		return
	}

	plog := projectLogger(id)
	plog.Info().Msg("Project deleted")
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Project deleted successfully", Name: id})
}

func (s *Server) runProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetProject(id); err != nil {
		s.writeError(w, r, err, "Project not found")
		return
	}
	if err := s.instances.AddInstance(id); err != nil && !errors.Is(err, registry.ErrInstanceExists) {
		s.writeError(w, r, err, "")
		return
	}
	start := events.New(events.KindProjectStart, map[string]any{"projectId": id})
	if err := s.instances.TriggerExternal(id, start); err != nil {
		s.writeError(w, r, err, "Project is not running")
		return
	}

	plog := projectLogger(id)
	plog.Info().Msg("Project started")
	writeJSON(w, http.StatusOK, MessageResponse{
		Message:   "Project started successfully",
		ProjectID: id,
		Status:    string(types.InstanceStateRunning),
	})
}

func (s *Server) stopProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetProject(id); err != nil {
		s.writeError(w, r, err, "Project not found")
		return
	}
	stop := events.New(events.KindProjectStop, map[string]any{"projectId": id})
	if err := s.instances.TriggerExternal(id, stop); err != nil {
		s.writeError(w, r, err, "Project is not running")
		return
	}
	if err := s.instances.RemoveInstance(id); err != nil {
		s.writeError(w, r, err, "Project is not running")
		return
	}

	plog := projectLogger(id)
	plog.Info().Msg("Project stopped")
	writeJSON(w, http.StatusOK, MessageResponse{
		Message:   "Project stopped successfully",
		ProjectID: id,
		Status:    "stopped",
	})
}
