// Package api exposes the delivery engine over HTTP. Identity is external:
// requests carry a bearer token from the identity provider; the middleware
// verifies it and upserts the matching user record.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/campaigner/internal/delivery"
	"github.com/dmitrymomot/campaigner/internal/mailbox"
	"github.com/dmitrymomot/campaigner/internal/metrics"
	"github.com/dmitrymomot/campaigner/internal/store"
)

// Server wires the HTTP surface to the engine components.
type Server struct {
	store     *store.Store
	mailboxes *mailbox.Manager
	orch      *delivery.Orchestrator
	quota     *delivery.Quota
	jwtSecret []byte
	log       *slog.Logger
}

// NewServer creates a Server.
func NewServer(st *store.Store, mailboxes *mailbox.Manager, orch *delivery.Orchestrator, quota *delivery.Quota, jwtSecret string, log *slog.Logger) *Server {
	return &Server{
		store:     st,
		mailboxes: mailboxes,
		orch:      orch,
		quota:     quota,
		jwtSecret: []byte(jwtSecret),
		log:       log,
	}
}

// Router assembles the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// The provider redirects here without a bearer token; the state token
	// identifies the user.
	r.Get("/gmail/callback", s.handleMailboxCallback)

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/auth/me", s.handleMe)
		r.Put("/auth/sender-name", s.handleSenderName)

		r.Get("/gmail/connect", s.handleMailboxConnect)
		r.Post("/gmail/disconnect", s.handleMailboxDisconnect)

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/", s.handleCampaignList)
			r.Post("/", s.handleCampaignCreate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleCampaignGet)
				r.Put("/", s.handleCampaignUpdate)
				r.Delete("/", s.handleCampaignDelete)
				r.Post("/send", s.handleCampaignSend)
				r.Post("/preview", s.handleCampaignPreview)
			})
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleGroupList)
			r.Post("/", s.handleGroupCreate)
			r.Get("/{id}", s.handleGroupGet)
			r.Post("/{id}/append", s.handleGroupAppend)
			r.Delete("/{id}", s.handleGroupDelete)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.handleTemplateList)
			r.Post("/", s.handleTemplateCreate)
			r.Get("/{id}", s.handleTemplateGet)
			r.Delete("/{id}", s.handleTemplateDelete)
		})

		r.Route("/variables", func(r chi.Router) {
			r.Get("/", s.handleVariableList)
			r.Post("/", s.handleVariableCreate)
			r.Put("/{id}", s.handleVariableUpdate)
			r.Delete("/{id}", s.handleVariableDelete)
		})

		r.Post("/recipients/parse", s.handleRecipientsParse)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
