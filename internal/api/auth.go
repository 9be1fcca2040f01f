package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/sanitizer"
)

type ctxKey int

const userCtxKey ctxKey = iota

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// authenticate verifies the bearer token and upserts the user record keyed
// by the token subject. The identity provider itself is external; this layer
// only trusts its signature.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
			return
		}

		claims := &tokenClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "invalid bearer token", "unauthorized")
			return
		}

		user, err := s.store.Users.UpsertBySubject(r.Context(), claims.Subject, claims.Email, claims.Name)
		if err != nil {
			s.writeEngineError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userCtxKey).(*models.User)
	return u
}

type meResponse struct {
	*models.User
	Connected bool  `json:"connected"`
	SentToday int64 `json:"sent_today"`
	Quota     int64 `json:"quota"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	remaining, err := s.quota.Remaining(r.Context(), user.ID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:      user,
		Connected: user.Connected(),
		SentToday: s.quota.Limit() - remaining,
		Quota:     s.quota.Limit(),
	})
}

type senderNameRequest struct {
	SenderDisplayName string `json:"sender_display_name"`
}

// handleSenderName stores the user's default "From" name. An empty value
// clears the preference, falling back to the mailbox's own display name.
func (s *Server) handleSenderName(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req senderNameRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	name := sanitizer.StripHTML(strings.TrimSpace(req.SenderDisplayName))
	if err := s.store.Users.SetSenderDisplayName(r.Context(), user.ID, name); err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sender_display_name": name})
}
