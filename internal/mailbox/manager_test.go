package mailbox_test

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/oauth2"

	"github.com/dmitrymomot/campaigner/internal/gmail"
	"github.com/dmitrymomot/campaigner/internal/mailbox"
	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/internal/store"
	"github.com/dmitrymomot/campaigner/pkg/logger"
	"github.com/dmitrymomot/campaigner/pkg/vault"
)

// fakeUserStore is an in-memory mailbox.UserStore.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[primitive.ObjectID]*models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *fakeUserStore) SetAuthState(_ context.Context, id primitive.ObjectID, state string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.AuthState = state
	u.AuthStateExpiresAt = &expiresAt
	return nil
}

func (s *fakeUserStore) FindByAuthState(_ context.Context, state string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.AuthState != "" && u.AuthState == state {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeUserStore) ClearAuthState(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.AuthState = ""
	u.AuthStateExpiresAt = nil
	return nil
}

func (s *fakeUserStore) SaveCredential(_ context.Context, id primitive.ObjectID, encrypted, mailboxEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.EncryptedRefreshToken = encrypted
	u.MailboxConnected = true
	if mailboxEmail != "" {
		u.MailboxEmail = mailboxEmail
	}
	return nil
}

func (s *fakeUserStore) ClearCredential(_ context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.EncryptedRefreshToken = ""
	u.MailboxConnected = false
	u.MailboxEmail = ""
	u.SenderIdentity = nil
	return nil
}

func (s *fakeUserStore) SaveSenderIdentity(_ context.Context, id primitive.ObjectID, identity *models.SenderIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.SenderIdentity = identity
	return nil
}

// fakeSession is a scriptable mailbox.Session.
type fakeSession struct {
	verifyErr   error
	identity    *gmail.Identity
	identityErr error
	sendErr     error
	sentTo      [][]string
	rotated     string

	identityCalls int
}

func (f *fakeSession) Verify(context.Context) error {
	return f.verifyErr
}

func (f *fakeSession) FetchPrimaryIdentity(context.Context) (*gmail.Identity, error) {
	f.identityCalls++
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	if f.identity == nil {
		return nil, gmail.ErrNoSendAsIdentity
	}
	return f.identity, nil
}

func (f *fakeSession) SendMessage(_ context.Context, msg gmail.Message) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sentTo = append(f.sentTo, msg.To)
	return "msg-id", nil
}

func (f *fakeSession) RefreshedCredential() (string, bool) {
	return f.rotated, f.rotated != ""
}

// fakeProvider is a scriptable mailbox.Provider.
type fakeProvider struct {
	session      *fakeSession
	exchangeTok  *oauth2.Token
	exchangeErr  error
	lastConsent  bool
	accessTokens []string
}

func (p *fakeProvider) AuthCodeURL(state string, forceConsent bool) string {
	p.lastConsent = forceConsent
	prompt := "none"
	if forceConsent {
		prompt = "consent"
	}
	return "https://auth.example/authorize?state=" + state + "&prompt=" + prompt
}

func (p *fakeProvider) ExchangeGrant(context.Context, string) (*oauth2.Token, error) {
	return p.exchangeTok, p.exchangeErr
}

func (p *fakeProvider) Access(_ context.Context, refreshToken string) mailbox.Session {
	p.accessTokens = append(p.accessTokens, refreshToken)
	return p.session
}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	v, err := vault.New(hex.EncodeToString(key))
	require.NoError(t, err)
	return v
}

func newUser(t *testing.T, v *vault.Vault, refreshToken string) *models.User {
	t.Helper()
	u := &models.User{ID: primitive.NewObjectID(), Email: "ava@acme.com"}
	if refreshToken != "" {
		encrypted, err := v.Encrypt(refreshToken)
		require.NoError(t, err)
		u.EncryptedRefreshToken = encrypted
		u.MailboxConnected = true
	}
	return u
}

func TestBeginAuthorization(t *testing.T) {
	t.Parallel()

	t.Run("no credential forces consent", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "")
		users := newFakeUserStore(user)
		provider := &fakeProvider{session: &fakeSession{}}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Contains(t, auth.URL, "prompt=consent")
		assert.Contains(t, auth.URL, "state="+auth.State)

		stored, err := users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, auth.State, stored.AuthState)
		require.NotNil(t, stored.AuthStateExpiresAt)
		assert.WithinDuration(t, time.Now().Add(mailbox.StateTTL), *stored.AuthStateExpiresAt, 5*time.Second)
	})

	t.Run("working credential gets zero-prompt flow", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		users := newFakeUserStore(user)
		provider := &fakeProvider{session: &fakeSession{}}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Contains(t, auth.URL, "prompt=none")
		assert.Equal(t, []string{"refresh-1"}, provider.accessTokens)
	})

	t.Run("auth-fatal verification invalidates and forces consent", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		users := newFakeUserStore(user)
		provider := &fakeProvider{session: &fakeSession{
			verifyErr: errors.New("status=401 body=invalid_grant"),
		}}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Contains(t, auth.URL, "prompt=consent")

		stored, err := users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.False(t, stored.Connected())
	})

	t.Run("transient verification failure keeps credential", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		users := newFakeUserStore(user)
		provider := &fakeProvider{session: &fakeSession{
			verifyErr: errors.New("status=503 body=Backend Error"),
		}}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Contains(t, auth.URL, "prompt=none")

		stored, err := users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.True(t, stored.Connected())
	})
}

func TestCompleteAuthorization(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "")
		users := newFakeUserStore(user)
		provider := &fakeProvider{
			session:     &fakeSession{identity: &gmail.Identity{Address: "owner@acme.com", DisplayName: "Owner"}},
			exchangeTok: &oauth2.Token{AccessToken: "at", RefreshToken: "refresh-new"},
		}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)

		updated, err := mgr.CompleteAuthorization(context.Background(), auth.State, "grant-code")
		require.NoError(t, err)
		assert.True(t, updated.Connected())
		assert.True(t, updated.MailboxConnected)
		assert.Equal(t, "owner@acme.com", updated.MailboxEmail)
		assert.Empty(t, updated.AuthState)
		require.NotNil(t, updated.SenderIdentity)
		assert.Equal(t, "owner@acme.com", updated.SenderIdentity.Address)

		// Credential round-trips through the vault.
		plain, err := v.Decrypt(updated.EncryptedRefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh-new", plain)
	})

	t.Run("unknown state", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		users := newFakeUserStore(newUser(t, v, ""))
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

		_, err := mgr.CompleteAuthorization(context.Background(), "nope", "code")
		require.ErrorIs(t, err, mailbox.ErrStateNotFound)
	})

	t.Run("expired state clears dangling token", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "")
		expired := time.Now().Add(-time.Minute)
		user.AuthState = "stale-state"
		user.AuthStateExpiresAt = &expired
		users := newFakeUserStore(user)
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

		_, err := mgr.CompleteAuthorization(context.Background(), "stale-state", "code")
		require.ErrorIs(t, err, mailbox.ErrStateExpired)

		// The state token is single-use: a replay now fails as not found.
		_, err = mgr.CompleteAuthorization(context.Background(), "stale-state", "code")
		require.ErrorIs(t, err, mailbox.ErrStateNotFound)
	})

	t.Run("no refresh token and no stored credential", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "")
		users := newFakeUserStore(user)
		provider := &fakeProvider{
			session:     &fakeSession{},
			exchangeTok: &oauth2.Token{AccessToken: "at"},
		}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)

		_, err = mgr.CompleteAuthorization(context.Background(), auth.State, "code")
		require.ErrorIs(t, err, mailbox.ErrNoCredentialGranted)
	})

	t.Run("zero-prompt re-auth keeps stored credential", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-old")
		users := newFakeUserStore(user)
		provider := &fakeProvider{
			session:     &fakeSession{},
			exchangeTok: &oauth2.Token{AccessToken: "at"},
		}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)

		updated, err := mgr.CompleteAuthorization(context.Background(), auth.State, "code")
		require.NoError(t, err)

		plain, err := v.Decrypt(updated.EncryptedRefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh-old", plain)
	})
}

func TestAuthorizedAccess(t *testing.T) {
	t.Parallel()

	t.Run("no credential", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "")
		users := newFakeUserStore(user)
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

		_, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.ErrorIs(t, err, mailbox.ErrAuthRequired)
	})

	t.Run("corrupt stored payload", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "")
		user.EncryptedRefreshToken = "aa:bb" // not a valid payload
		users := newFakeUserStore(user)
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

		_, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.ErrorIs(t, err, mailbox.ErrAuthRequired)
		require.ErrorIs(t, err, vault.ErrCorruptPayload)
	})

	t.Run("persists rotated credential", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		users := newFakeUserStore(user)
		provider := &fakeProvider{session: &fakeSession{rotated: "refresh-2"}}
		mgr := mailbox.NewManager(users, v, provider, logger.NewNope())

		handle, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.NoError(t, err)
		handle.PersistRefreshed(context.Background())

		stored, err := users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		plain, err := v.Decrypt(stored.EncryptedRefreshToken)
		require.NoError(t, err)
		assert.Equal(t, "refresh-2", plain)
	})
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	v := newTestVault(t)
	user := newUser(t, v, "refresh-1")
	users := newFakeUserStore(user)
	mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

	require.NoError(t, mgr.Invalidate(context.Background(), user.ID, "revoked by provider"))

	stored, err := users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, stored.Connected())
	assert.False(t, stored.MailboxConnected)

	// Idempotent.
	require.NoError(t, mgr.Invalidate(context.Background(), user.ID, "again"))
}

func TestStateTokensAreUnique(t *testing.T) {
	t.Parallel()

	v := newTestVault(t)
	user := newUser(t, v, "")
	users := newFakeUserStore(user)
	mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		auth, err := mgr.BeginAuthorization(context.Background(), user.ID)
		require.NoError(t, err)
		require.False(t, strings.Contains(auth.State, ":"))
		_, dup := seen[auth.State]
		require.False(t, dup)
		seen[auth.State] = struct{}{}
	}
}
