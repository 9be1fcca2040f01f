package mailbox

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/campaigner/internal/models"
)

// ResolvedIdentity is the "From" identity a message goes out with.
type ResolvedIdentity struct {
	Address     string
	DisplayName string
}

// ResolveSenderIdentity determines the send-as address and display name for
// the handle's mailbox. The cached identity on the user record wins; the
// provider is queried only on a cache miss, and the result is cached
// best-effort. The cache is advisory: staleness is acceptable and
// correctness never depends on invalidating it.
func (m *Manager) ResolveSenderIdentity(ctx context.Context, h *AccessHandle, customDisplayName string) (*ResolvedIdentity, error) {
	user, err := m.users.GetByID(ctx, h.userID)
	if err != nil {
		return nil, err
	}

	identity := user.SenderIdentity
	if identity == nil || identity.Address == "" {
		fetched, err := h.FetchPrimaryIdentity(ctx)
		if err != nil {
			return nil, err
		}

		identity = &models.SenderIdentity{
			Address:     fetched.Address,
			DisplayName: fetched.DisplayName,
			FetchedAt:   time.Now().UTC(),
		}
		if err := m.users.SaveSenderIdentity(ctx, h.userID, identity); err != nil {
			m.log.Warn("failed to cache sender identity",
				slog.String("user_id", h.userID.Hex()),
				slog.Any("error", err))
		}
	}

	return &ResolvedIdentity{
		Address:     identity.Address,
		DisplayName: ResolveDisplayName(customDisplayName, user.SenderDisplayName, identity.DisplayName, identity.Address),
	}, nil
}

// ResolveDisplayName applies the display name precedence: per-campaign
// override, then the user's saved default, then the mailbox's own display
// name, then the local part of the address, then the literal "Sender".
func ResolveDisplayName(custom, userDefault, mailboxName, address string) string {
	if name := strings.TrimSpace(custom); name != "" {
		return name
	}
	if name := strings.TrimSpace(userDefault); name != "" {
		return name
	}
	if name := strings.TrimSpace(mailboxName); name != "" {
		return name
	}
	if localPart, _, _ := strings.Cut(address, "@"); localPart != "" {
		return localPart
	}
	return "Sender"
}
