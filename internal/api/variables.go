package api

import (
	"fmt"
	"net/http"
	"regexp"

	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/placeholder"
)

var variableKeyRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type variableRequest struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

func (req *variableRequest) validate() error {
	if !variableKeyRe.MatchString(req.Key) {
		return fmt.Errorf("key must be lowercase alphanumeric, got %q", req.Key)
	}
	if req.Key == placeholder.NameKey {
		return fmt.Errorf("%q is a built-in placeholder", placeholder.NameKey)
	}
	if req.Label == "" {
		return fmt.Errorf("label is required")
	}
	return nil
}

func (s *Server) handleVariableList(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	list, err := s.store.Variables.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"variables": list})
}

func (s *Server) handleVariableCreate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req variableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_failed")
		return
	}

	v := &models.Variable{
		UserID:      user.ID,
		Key:         req.Key,
		Label:       req.Label,
		Required:    req.Required,
		Description: req.Description,
	}
	if err := s.store.Variables.Create(r.Context(), v); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleVariableUpdate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req variableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_failed")
		return
	}

	v := &models.Variable{
		ID:          id,
		UserID:      user.ID,
		Label:       req.Label,
		Required:    req.Required,
		Description: req.Description,
	}
	if err := s.store.Variables.Update(r.Context(), v); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVariableDelete(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.Variables.Delete(r.Context(), id, user.ID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
