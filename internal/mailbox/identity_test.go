package mailbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/campaigner/internal/gmail"
	"github.com/dmitrymomot/campaigner/internal/mailbox"
	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/logger"
)

func TestResolveSenderIdentity(t *testing.T) {
	t.Parallel()

	t.Run("cache hit skips the provider", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		user.SenderIdentity = &models.SenderIdentity{
			Address:     "cached@acme.com",
			DisplayName: "Cached Name",
			FetchedAt:   time.Now().UTC(),
		}
		users := newFakeUserStore(user)
		session := &fakeSession{identity: &gmail.Identity{Address: "fresh@acme.com"}}
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: session}, logger.NewNope())

		handle, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.NoError(t, err)

		resolved, err := mgr.ResolveSenderIdentity(context.Background(), handle, "")
		require.NoError(t, err)
		assert.Equal(t, "cached@acme.com", resolved.Address)
		assert.Equal(t, "Cached Name", resolved.DisplayName)
		assert.Zero(t, session.identityCalls)
	})

	t.Run("cache miss fetches and caches", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		users := newFakeUserStore(user)
		session := &fakeSession{identity: &gmail.Identity{Address: "owner@acme.com", DisplayName: "Owner"}}
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: session}, logger.NewNope())

		handle, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.NoError(t, err)

		resolved, err := mgr.ResolveSenderIdentity(context.Background(), handle, "")
		require.NoError(t, err)
		assert.Equal(t, "owner@acme.com", resolved.Address)
		assert.Equal(t, "Owner", resolved.DisplayName)
		assert.Equal(t, 1, session.identityCalls)

		stored, err := users.GetByID(context.Background(), user.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.SenderIdentity)
		assert.Equal(t, "owner@acme.com", stored.SenderIdentity.Address)
	})

	t.Run("custom name overrides the cached one", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		user.SenderIdentity = &models.SenderIdentity{Address: "a@b.co", DisplayName: "Mailbox Name"}
		users := newFakeUserStore(user)
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

		handle, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.NoError(t, err)

		resolved, err := mgr.ResolveSenderIdentity(context.Background(), handle, "Campaign Name")
		require.NoError(t, err)
		assert.Equal(t, "Campaign Name", resolved.DisplayName)
	})

	t.Run("saved default beats the mailbox name", func(t *testing.T) {
		t.Parallel()

		v := newTestVault(t)
		user := newUser(t, v, "refresh-1")
		user.SenderDisplayName = "Acme Outreach"
		user.SenderIdentity = &models.SenderIdentity{Address: "a@b.co", DisplayName: "Mailbox Name"}
		users := newFakeUserStore(user)
		mgr := mailbox.NewManager(users, v, &fakeProvider{session: &fakeSession{}}, logger.NewNope())

		handle, err := mgr.AuthorizedAccess(context.Background(), user.ID)
		require.NoError(t, err)

		resolved, err := mgr.ResolveSenderIdentity(context.Background(), handle, "")
		require.NoError(t, err)
		assert.Equal(t, "Acme Outreach", resolved.DisplayName)
	})
}

func TestResolveDisplayName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		custom      string
		userDefault string
		mailboxName string
		address     string
		want        string
	}{
		{"custom wins", "Acme Sales", "Saved Default", "Ava Smith", "ava@acme.com", "Acme Sales"},
		{"user default next", "", "Saved Default", "Ava Smith", "ava@acme.com", "Saved Default"},
		{"mailbox name next", "", "", "Ava Smith", "ava@acme.com", "Ava Smith"},
		{"local part next", "", "", "", "ava.smith@acme.com", "ava.smith"},
		{"whitespace custom skipped", "   ", "", "Ava", "ava@acme.com", "Ava"},
		{"everything empty", "", "", "", "", "Sender"},
		{"address without at sign", "", "", "", "@acme.com", "Sender"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, mailbox.ResolveDisplayName(tt.custom, tt.userDefault, tt.mailboxName, tt.address))
		})
	}
}
