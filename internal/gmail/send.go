package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Message is one outbound email. To may hold multiple recipients; they all
// receive the same message addressed jointly.
type Message struct {
	To          []string
	FromName    string
	FromAddress string
	Subject     string
	HTML        string
}

type sendRequest struct {
	Raw string `json:"raw"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// SendMessage delivers one message as the authorized mailbox owner and
// returns the provider's message ID.
func (a *Access) SendMessage(ctx context.Context, msg Message) (string, error) {
	if len(msg.To) == 0 {
		return "", errors.New("gmail: message has no recipients")
	}
	if msg.FromAddress == "" {
		return "", errors.New("gmail: message has no sender address")
	}

	raw := base64.RawURLEncoding.EncodeToString(buildMIME(msg))

	payload, err := json.Marshal(sendRequest{Raw: raw})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, a.client.baseURL+"/users/me/messages/send", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apiError(resp)
	}

	var result sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.Join(ErrDecodeFailed, err)
	}
	return result.ID, nil
}

// buildMIME assembles an RFC 5322 HTML message. Header values that may carry
// non-ASCII text are Q-encoded.
func buildMIME(msg Message) []byte {
	from := msg.FromAddress
	if msg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", msg.FromName), msg.FromAddress)
	}

	headers := []string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
		"Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject),
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
		"",
		msg.HTML,
	}
	return []byte(strings.Join(headers, "\r\n"))
}
