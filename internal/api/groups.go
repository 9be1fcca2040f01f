package api

import (
	"net/http"
	"strings"

	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/recipients"
	"github.com/dmitrymomot/campaigner/pkg/sanitizer"
)

type groupRequest struct {
	Title      string           `json:"title"`
	Recipients []recipientInput `json:"recipients"`
}

// normalizeGroupRecipients cleans raw rows the way the recipient parser
// does: lowercase valid emails, dedupe, derive a name when none is given.
// Invalid rows are dropped silently; the caller decides whether an empty
// result is an error.
func normalizeGroupRecipients(inputs []recipientInput) []models.GroupRecipient {
	seen := make(map[string]struct{}, len(inputs))
	var clean []models.GroupRecipient
	for _, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if !recipients.ValidEmail(email) {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}

		name := sanitizer.StripHTML(strings.TrimSpace(in.Name))
		if name == "" {
			name = recipients.ExtractName(email)
		}
		clean = append(clean, models.GroupRecipient{
			Email:     email,
			Name:      name,
			Variables: in.Variables,
		})
	}
	return clean
}

func (s *Server) handleGroupList(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	list, err := s.store.Groups.ListByUser(r.Context(), user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": list})
}

func (s *Server) handleGroupGet(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	g, err := s.store.Groups.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleGroupCreate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	title := sanitizer.StripHTML(strings.TrimSpace(req.Title))
	if title == "" {
		writeError(w, http.StatusUnprocessableEntity, "title is required", "validation_failed")
		return
	}
	clean := normalizeGroupRecipients(req.Recipients)
	if len(clean) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "at least one valid recipient is required", "validation_failed")
		return
	}

	g := &models.Group{UserID: user.ID, Title: title, Recipients: clean}
	if err := s.store.Groups.Create(r.Context(), g); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

type groupAppendRequest struct {
	Recipients []recipientInput `json:"recipients"`
}

func (s *Server) handleGroupAppend(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req groupAppendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	additions := normalizeGroupRecipients(req.Recipients)
	if len(additions) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no new recipients to add", "validation_failed")
		return
	}

	added, err := s.store.Groups.AppendRecipients(r.Context(), id, user.ID, additions)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "added": added})
}

func (s *Server) handleGroupDelete(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.Groups.Delete(r.Context(), id, user.ID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

