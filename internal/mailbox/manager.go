// Package mailbox owns the mailbox authorization lifecycle: the grant
// handshake, encrypted credential storage, short-lived access for sends,
// revocation handling, and sender identity resolution.
package mailbox

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/campaigner/internal/gmail"
	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/internal/store"
	"github.com/dmitrymomot/campaigner/pkg/vault"
)

// StateTTL is how long a handshake state token stays valid.
const StateTTL = 10 * time.Minute

// UserStore is the slice of persistence the manager needs.
type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SetAuthState(ctx context.Context, id primitive.ObjectID, state string, expiresAt time.Time) error
	FindByAuthState(ctx context.Context, state string) (*models.User, error)
	ClearAuthState(ctx context.Context, id primitive.ObjectID) error
	SaveCredential(ctx context.Context, id primitive.ObjectID, encrypted, mailboxEmail string) error
	ClearCredential(ctx context.Context, id primitive.ObjectID) error
	SaveSenderIdentity(ctx context.Context, id primitive.ObjectID, identity *models.SenderIdentity) error
}

// Session is one logical session of provider calls on behalf of a mailbox
// owner. Implemented by *gmail.Access.
type Session interface {
	Verify(ctx context.Context) error
	FetchPrimaryIdentity(ctx context.Context) (*gmail.Identity, error)
	SendMessage(ctx context.Context, msg gmail.Message) (string, error)
	RefreshedCredential() (string, bool)
}

// Provider abstracts the grant capability. Implemented by GmailProvider.
type Provider interface {
	AuthCodeURL(state string, forceConsent bool) string
	ExchangeGrant(ctx context.Context, code string) (*oauth2.Token, error)
	Access(ctx context.Context, refreshToken string) Session
}

// GmailProvider adapts *gmail.Client to the Provider interface.
type GmailProvider struct {
	*gmail.Client
}

// Access returns a provider session for the credential.
func (p GmailProvider) Access(ctx context.Context, refreshToken string) Session {
	return p.Client.Access(ctx, refreshToken)
}

// Manager drives the per-user authorization state machine.
type Manager struct {
	users    UserStore
	vault    *vault.Vault
	provider Provider
	log      *slog.Logger
}

// NewManager creates a Manager.
func NewManager(users UserStore, v *vault.Vault, provider Provider, log *slog.Logger) *Manager {
	return &Manager{
		users:    users,
		vault:    v,
		provider: provider,
		log:      log,
	}
}

// Authorization is the outcome of BeginAuthorization.
type Authorization struct {
	URL   string
	State string
}

// BeginAuthorization issues a single-use state token bound to the user and
// returns the authorization URL embedding it. When the user already holds a
// credential, a zero-prompt flow is requested after verifying the credential
// still works; full consent is forced only when no credential exists or
// verification failed with an authorization-fatal error.
func (m *Manager) BeginAuthorization(ctx context.Context, userID primitive.ObjectID) (*Authorization, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	forceConsent := true
	if user.Connected() {
		forceConsent = m.needsConsent(ctx, user)
	}

	state, err := newStateToken()
	if err != nil {
		return nil, err
	}

	// A new token replaces any previous unexpired one; restarting the flow
	// invalidates the older URL.
	if err := m.users.SetAuthState(ctx, user.ID, state, time.Now().Add(StateTTL)); err != nil {
		return nil, err
	}

	return &Authorization{
		URL:   m.provider.AuthCodeURL(state, forceConsent),
		State: state,
	}, nil
}

// needsConsent verifies the stored credential with a zero-prompt check.
// Auth-fatal failures invalidate the credential and force full consent;
// transient failures leave it intact and keep the zero-prompt flow.
func (m *Manager) needsConsent(ctx context.Context, user *models.User) bool {
	refreshToken, err := m.vault.Decrypt(user.EncryptedRefreshToken)
	if err != nil {
		m.log.Warn("stored credential unreadable, forcing consent",
			slog.String("user_id", user.ID.Hex()),
			slog.Any("error", err))
		_ = m.Invalidate(ctx, user.ID, "corrupt credential payload")
		return true
	}

	session := m.provider.Access(ctx, refreshToken)
	verifyErr := session.Verify(ctx)
	m.persistRefreshed(ctx, user.ID, session)

	if verifyErr == nil {
		return false
	}
	if kind := gmail.ClassifyAuthError(verifyErr); kind != gmail.AuthErrorNone {
		_ = m.Invalidate(ctx, user.ID, "verification failed: "+kind.String())
		return true
	}

	m.log.Warn("credential verification failed transiently",
		slog.String("user_id", user.ID.Hex()),
		slog.Any("error", verifyErr))
	return false
}

// CompleteAuthorization finishes the handshake: it looks the user up by
// state token, exchanges the grant code, persists the credential encrypted,
// clears the state token, and caches the mailbox identity.
func (m *Manager) CompleteAuthorization(ctx context.Context, state, code string) (*models.User, error) {
	user, err := m.users.FindByAuthState(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}

	if user.AuthStateExpiresAt == nil || time.Now().After(*user.AuthStateExpiresAt) {
		// Clear the dangling state so a replay fails with StateNotFound.
		_ = m.users.ClearAuthState(ctx, user.ID)
		return nil, ErrStateExpired
	}

	token, err := m.provider.ExchangeGrant(ctx, code)
	if err != nil {
		return nil, err
	}

	refreshToken := token.RefreshToken
	if refreshToken == "" {
		// Zero-prompt re-authorizations may omit the long-lived credential;
		// the one already stored stays authoritative in that case.
		if !user.Connected() {
			return nil, ErrNoCredentialGranted
		}
		m.log.Info("grant exchange returned no refresh token, keeping stored credential",
			slog.String("user_id", user.ID.Hex()))
	}

	mailboxEmail := ""
	if refreshToken != "" {
		session := m.provider.Access(ctx, refreshToken)
		if identity, idErr := session.FetchPrimaryIdentity(ctx); idErr == nil {
			mailboxEmail = identity.Address
			_ = m.users.SaveSenderIdentity(ctx, user.ID, &models.SenderIdentity{
				Address:     identity.Address,
				DisplayName: identity.DisplayName,
				FetchedAt:   time.Now().UTC(),
			})
		} else {
			m.log.Warn("failed to fetch sender identity after authorization",
				slog.String("user_id", user.ID.Hex()),
				slog.Any("error", idErr))
		}

		encrypted, encErr := m.vault.Encrypt(refreshToken)
		if encErr != nil {
			return nil, encErr
		}
		if err := m.users.SaveCredential(ctx, user.ID, encrypted, mailboxEmail); err != nil {
			return nil, err
		}
	}

	if err := m.users.ClearAuthState(ctx, user.ID); err != nil {
		return nil, err
	}

	m.log.Info("mailbox authorized", slog.String("user_id", user.ID.Hex()))
	return m.users.GetByID(ctx, user.ID)
}

// AccessHandle couples a provider session with the owning user so refreshed
// credentials can be persisted before the handle is discarded.
type AccessHandle struct {
	Session
	userID primitive.ObjectID
	mgr    *Manager
}

// UserID returns the owning user.
func (h *AccessHandle) UserID() primitive.ObjectID {
	return h.userID
}

// PersistRefreshed stores any credential the provider rotated during this
// session. Must be called before the handle is discarded; rotated
// credentials are never dropped.
func (h *AccessHandle) PersistRefreshed(ctx context.Context) {
	h.mgr.persistRefreshed(ctx, h.userID, h.Session)
}

// AuthorizedAccess returns a handle usable for one logical session of
// provider calls. Fails with ErrAuthRequired when no credential is stored,
// or when the stored payload no longer decrypts.
func (m *Manager) AuthorizedAccess(ctx context.Context, userID primitive.ObjectID) (*AccessHandle, error) {
	user, err := m.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Connected() {
		return nil, ErrAuthRequired
	}

	refreshToken, err := m.vault.Decrypt(user.EncryptedRefreshToken)
	if err != nil {
		// Tampered or garbled at rest: a reconnect is the only way out.
		return nil, errors.Join(ErrAuthRequired, err)
	}

	return &AccessHandle{
		Session: m.provider.Access(ctx, refreshToken),
		userID:  userID,
		mgr:     m,
	}, nil
}

// Invalidate clears the stored credential and connected flag. Idempotent;
// the reason is logged for operability.
func (m *Manager) Invalidate(ctx context.Context, userID primitive.ObjectID, reason string) error {
	if err := m.users.ClearCredential(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	m.log.Info("mailbox credential invalidated",
		slog.String("user_id", userID.Hex()),
		slog.String("reason", reason))
	return nil
}

func (m *Manager) persistRefreshed(ctx context.Context, userID primitive.ObjectID, session Session) {
	rotated, ok := session.RefreshedCredential()
	if !ok {
		return
	}

	encrypted, err := m.vault.Encrypt(rotated)
	if err != nil {
		m.log.Error("failed to encrypt rotated credential",
			slog.String("user_id", userID.Hex()),
			slog.Any("error", err))
		return
	}
	if err := m.users.SaveCredential(ctx, userID, encrypted, ""); err != nil {
		m.log.Error("failed to persist rotated credential",
			slog.String("user_id", userID.Hex()),
			slog.Any("error", err))
		return
	}
	m.log.Info("rotated credential persisted", slog.String("user_id", userID.Hex()))
}

func newStateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
