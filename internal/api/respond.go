package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmitrymomot/campaigner/internal/delivery"
	"github.com/dmitrymomot/campaigner/internal/mailbox"
	"github.com/dmitrymomot/campaigner/internal/store"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// writeEngineError maps engine errors onto HTTP statuses and stable codes
// the UI can branch on.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", "not_found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "already exists", "duplicate")
	case errors.Is(err, mailbox.ErrAuthRequired):
		writeError(w, http.StatusUnauthorized, "mailbox authorization required", "auth_required")
	case errors.Is(err, mailbox.ErrAuthExpired):
		writeError(w, http.StatusUnauthorized, "mailbox authorization expired, reconnect required", "auth_expired")
	case errors.Is(err, mailbox.ErrStateNotFound):
		writeError(w, http.StatusBadRequest, "unknown authorization state", "state_not_found")
	case errors.Is(err, mailbox.ErrStateExpired):
		writeError(w, http.StatusBadRequest, "authorization state expired, restart the flow", "state_expired")
	case errors.Is(err, mailbox.ErrNoCredentialGranted):
		writeError(w, http.StatusBadRequest, "provider granted no credential, restart with consent", "no_credential")
	case errors.Is(err, delivery.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, err.Error(), "quota_exceeded")
	case errors.Is(err, delivery.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "validation_failed")
	case errors.Is(err, delivery.ErrDeliveryFailed):
		writeError(w, http.StatusBadGateway, err.Error(), "delivery_failed")
	default:
		s.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathID parses the {id} route parameter. A malformed ID is reported as not
// found, the same as a well-formed ID that matches nothing.
func pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "not found", "not_found")
		return primitive.NilObjectID, false
	}
	return id, true
}
