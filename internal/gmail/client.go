// Package gmail implements the external mailbox capabilities the delivery
// engine consumes: exchanging an authorization grant for a long-lived
// credential, verifying stored credentials, resolving the mailbox's send-as
// identity, and sending raw MIME messages as the authorized owner.
//
// All API calls go through an Access handle, which wraps an auto-refreshing
// token source. If the provider rotates the long-lived credential during a
// session, the handle records it so the caller can persist it before the
// handle is discarded.
package gmail

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	googleOAuth "golang.org/x/oauth2/google"
)

const defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

// Config holds the OAuth client configuration.
// Embed this in your app config for env parsing with caarlos0/env.
type Config struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID,required"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET,required"`
	RedirectURL  string `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/gmail/callback"`
}

// Scopes returns the OAuth scopes the engine needs: sending mail and reading
// the mailbox's send-as settings.
func Scopes() []string {
	return []string{
		"https://www.googleapis.com/auth/gmail.send",
		"https://www.googleapis.com/auth/gmail.settings.basic",
	}
}

// Client talks to the mailbox provider.
type Client struct {
	conf       *oauth2.Config
	httpClient *http.Client
	baseURL    string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Useful for testing with httptest
// servers or injecting custom transports.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBaseURL overrides the Gmail API base URL. Used by tests.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithEndpoint overrides the OAuth token/authorize endpoint. Used by tests.
func WithEndpoint(endpoint oauth2.Endpoint) Option {
	return func(c *Client) {
		c.conf.Endpoint = endpoint
	}
}

// New creates a Client. Returns an error if ClientID or ClientSecret is
// empty.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}
	if cfg.ClientSecret == "" {
		return nil, ErrMissingClientSecret
	}

	c := &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       Scopes(),
			Endpoint:     googleOAuth.Endpoint,
		},
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AuthCodeURL generates the authorization URL for the consent flow. The
// state token must be single-use and bound to the requesting user. With
// forceConsent the provider re-prompts for the full grant; otherwise a
// zero-prompt flow is requested.
func (c *Client) AuthCodeURL(state string, forceConsent bool) string {
	prompt := "none"
	if forceConsent {
		prompt = "consent"
	}
	return c.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", prompt),
	)
}

// ExchangeGrant trades an authorization code for a token carrying the
// long-lived credential.
func (c *Client) ExchangeGrant(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.conf.Exchange(c.contextWithHTTPClient(ctx), code)
}

// Access returns a handle for one logical session of calls on behalf of the
// credential's owner. Short-lived access is minted (and re-minted) from the
// long-lived credential on demand.
func (c *Client) Access(ctx context.Context, refreshToken string) *Access {
	src := c.conf.TokenSource(
		c.contextWithHTTPClient(ctx),
		&oauth2.Token{RefreshToken: refreshToken},
	)
	return &Access{
		client:         c,
		source:         &trackingSource{src: src},
		initialRefresh: refreshToken,
	}
}

func (c *Client) contextWithHTTPClient(ctx context.Context) context.Context {
	if c.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	return ctx
}

// Access is a session handle bound to one mailbox credential.
type Access struct {
	client         *Client
	source         *trackingSource
	initialRefresh string
}

// RefreshedCredential returns the rotated long-lived credential if the
// provider issued one during this session. Callers must persist it before
// discarding the handle; rotated credentials are never dropped.
func (a *Access) RefreshedCredential() (string, bool) {
	latest := a.source.latestToken()
	if latest == nil || latest.RefreshToken == "" || latest.RefreshToken == a.initialRefresh {
		return "", false
	}
	return latest.RefreshToken, true
}

// Verify checks that the credential still works by reading the mailbox's
// send-as settings, the cheapest call covered by the granted scopes.
func (a *Access) Verify(ctx context.Context) error {
	_, err := a.FetchPrimaryIdentity(ctx)
	return err
}

func (a *Access) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	httpClient := oauth2.NewClient(a.client.contextWithHTTPClient(ctx), a.source)
	return httpClient.Do(req.WithContext(ctx))
}

// apiError turns a non-2xx response into an error that carries the provider
// body, so the auth classifier can see the provider's failure signature.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: status=%d body=%s", ErrRequestFailed, resp.StatusCode, body)
}

// trackingSource remembers the most recent token minted by the wrapped
// source so rotated refresh tokens can be recovered after the session.
type trackingSource struct {
	src    oauth2.TokenSource
	mu     sync.Mutex
	latest *oauth2.Token
}

func (t *trackingSource) Token() (*oauth2.Token, error) {
	tok, err := t.src.Token()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.latest = tok
	t.mu.Unlock()
	return tok, nil
}

func (t *trackingSource) latestToken() *oauth2.Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}
