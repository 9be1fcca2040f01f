package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/recipients"
	"github.com/dmitrymomot/campaigner/pkg/sanitizer"
)

type recipientInput struct {
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Variables map[string]string `json:"variables"`
}

type campaignRequest struct {
	Subject     string           `json:"subject"`
	BodyHTML    string           `json:"body_html"`
	SenderName  string           `json:"sender_name"`
	SendMode    models.SendMode  `json:"send_mode"`
	Recipients  []recipientInput `json:"recipients"`
	ScheduledAt *time.Time       `json:"scheduled_at"`
}

func (req *campaignRequest) validate() error {
	if req.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	if req.BodyHTML == "" {
		return fmt.Errorf("body_html is required")
	}
	if len(req.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	switch req.SendMode {
	case "":
		req.SendMode = models.SendModeIndividual
	case models.SendModeSingle, models.SendModeIndividual:
	default:
		return fmt.Errorf("send_mode must be %q or %q", models.SendModeSingle, models.SendModeIndividual)
	}
	for _, r := range req.Recipients {
		if !recipients.ValidEmail(r.Email) {
			return fmt.Errorf("invalid recipient email %q", r.Email)
		}
	}
	return nil
}

// apply copies the request onto a campaign. Recipients keep their delivery
// status when their email survives the edit, so re-sends after an edit still
// touch only the remainder.
func (req *campaignRequest) apply(c *models.Campaign) {
	existing := make(map[string]models.Recipient, len(c.Recipients))
	for _, r := range c.Recipients {
		existing[r.Email] = r
	}

	c.Subject = sanitizer.StripHTML(strings.TrimSpace(req.Subject))
	c.BodyHTML = sanitizer.SanitizeEmailHTML(req.BodyHTML)
	c.SenderName = sanitizer.StripHTML(strings.TrimSpace(req.SenderName))
	c.SendMode = req.SendMode
	c.ScheduledAt = req.ScheduledAt

	c.Recipients = make([]models.Recipient, 0, len(req.Recipients))
	for _, in := range req.Recipients {
		name := in.Name
		if name == "" {
			name = recipients.ExtractName(in.Email)
		}
		r := models.Recipient{
			ID:        uuid.NewString(),
			Email:     in.Email,
			Name:      name,
			Variables: in.Variables,
			Status:    models.RecipientPending,
		}
		if prev, ok := existing[in.Email]; ok {
			r.ID = prev.ID
			r.Status = prev.Status
			r.LastError = prev.LastError
		}
		c.Recipients = append(c.Recipients, r)
	}
}

func (s *Server) handleCampaignList(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	offset, _ := strconv.ParseInt(r.URL.Query().Get("offset"), 10, 64)
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	list, err := s.store.Campaigns.ListByUser(r.Context(), user.ID, limit, offset)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": list})
}

func (s *Server) handleCampaignCreate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req campaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_failed")
		return
	}

	c := &models.Campaign{UserID: user.ID, Status: models.CampaignDraft}
	req.apply(c)

	if err := s.store.Campaigns.Create(r.Context(), c); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCampaignGet(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := s.store.Campaigns.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCampaignUpdate(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req campaignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_failed")
		return
	}

	c, err := s.store.Campaigns.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if c.Status == models.CampaignSending {
		writeError(w, http.StatusConflict, "campaign is being sent", "conflict")
		return
	}

	req.apply(c)
	if c.Status == models.CampaignScheduled && c.ScheduledAt == nil {
		c.Status = models.CampaignDraft
	}

	if err := s.store.Campaigns.Replace(r.Context(), c); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCampaignDelete(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := s.store.Campaigns.Delete(r.Context(), id, user.ID); err != nil {
		s.writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCampaignSend either schedules the campaign for later or delivers it
// inline: a future scheduled_at flips the status to scheduled and the sweep
// picks it up; otherwise the send happens now and the response carries the
// aggregate result.
func (s *Server) handleCampaignSend(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	c, err := s.store.Campaigns.GetOwned(r.Context(), id, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	if c.Status == models.CampaignSending {
		writeError(w, http.StatusConflict, "campaign is being sent", "conflict")
		return
	}

	if c.ScheduledAt != nil && c.ScheduledAt.After(time.Now()) {
		if err := s.store.Campaigns.SetStatus(r.Context(), c.ID, models.CampaignScheduled); err != nil {
			s.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":       models.CampaignScheduled,
			"scheduled_at": c.ScheduledAt,
		})
		return
	}

	result, err := s.orch.Send(r.Context(), c.ID, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCampaignPreview(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	preview, err := s.orch.Preview(r.Context(), id, user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type parseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleRecipientsParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	entries := recipients.Parse(req.Text)
	writeJSON(w, http.StatusOK, map[string]any{
		"recipients": entries,
		"count":      len(entries),
	})
}

