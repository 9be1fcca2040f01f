package gmail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// Identity is a mailbox send-as identity.
type Identity struct {
	Address     string
	DisplayName string
}

type sendAsEntry struct {
	SendAsEmail string `json:"sendAsEmail"`
	DisplayName string `json:"displayName"`
	IsPrimary   bool   `json:"isPrimary"`
}

type sendAsListResponse struct {
	SendAs []sendAsEntry `json:"sendAs"`
}

// FetchPrimaryIdentity returns the mailbox's primary send-as identity, or
// the first one listed when none is marked primary. Returns
// ErrNoSendAsIdentity when the mailbox has no usable identity.
func (a *Access) FetchPrimaryIdentity(ctx context.Context) (*Identity, error) {
	req, err := http.NewRequest(http.MethodGet, a.client.baseURL+"/users/me/settings/sendAs", nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var list sendAsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.Join(ErrDecodeFailed, err)
	}
	if len(list.SendAs) == 0 {
		return nil, ErrNoSendAsIdentity
	}

	primary := list.SendAs[0]
	for _, entry := range list.SendAs {
		if entry.IsPrimary {
			primary = entry
			break
		}
	}
	if primary.SendAsEmail == "" {
		return nil, ErrNoSendAsIdentity
	}

	return &Identity{
		Address:     primary.SendAsEmail,
		DisplayName: primary.DisplayName,
	}, nil
}
