package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/sanitizer"
)

type templateRequest struct {
	Title    string `json:"title"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
}

func (req *templateRequest) validate() error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if strings.TrimSpace(req.Subject) == "" {
		return fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(req.BodyHTML) == "" {
		return fmt.Errorf("body_html is required")
	}
	return nil
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	list, err := s.store.Templates.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": list})
}

func (s *Server) handleTemplateGet(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	t, err := s.store.Templates.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTemplateCreate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_failed")
		return
	}

	t := &models.Template{
		UserID:   user.ID,
		Title:    sanitizer.StripHTML(strings.TrimSpace(req.Title)),
		Subject:  sanitizer.StripHTML(strings.TrimSpace(req.Subject)),
		BodyHTML: sanitizer.SanitizeEmailHTML(req.BodyHTML),
	}
	if err := s.store.Templates.Create(r.Context(), t); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleTemplateDelete(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.Templates.Delete(r.Context(), id, user.ID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

