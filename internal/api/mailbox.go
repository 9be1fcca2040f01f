package api

import (
	"net/http"
)

func (s *Server) handleMailboxConnect(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	auth, err := s.mailboxes.BeginAuthorization(r.Context(), user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": auth.URL})
}

func (s *Server) handleMailboxCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, "state and code are required", "bad_request")
		return
	}

	user, err := s.mailboxes.CompleteAuthorization(r.Context(), state, code)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"connected":     true,
		"mailbox_email": user.MailboxEmail,
	})
}

func (s *Server) handleMailboxDisconnect(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	if err := s.mailboxes.Invalidate(r.Context(), user.ID, "disconnected by user"); err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"connected": false})
}
