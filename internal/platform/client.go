// Package platform wraps the external advertising platform's Graph-style
// HTTP API: the OAuth2 code exchange, the identity lookup, and the five
// resource-collection endpoints the linking pipeline discovers from.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/go-querystring/query"
	"golang.org/x/oauth2"
)

// Config carries the platform application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// GraphURL is the API base, e.g. "https://graph.facebook.com/v19.0".
	GraphURL string
	// Scopes requested on the consent screen.
	Scopes []string
}

// DefaultScopes cover page, ad-account, pixel, catalog and Instagram reads.
var DefaultScopes = []string{
	"pages_show_list",
	"ads_management",
	"business_management",
	"catalog_management",
	"instagram_basic",
}

// Client is an authenticated wrapper around the platform API. It is safe for
// concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a platform Client. httpClient may be nil, in which case
// http.DefaultClient is used as the base transport for token-authenticated
// calls.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMisconfigured
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// OAuth2Config returns the oauth2.Config for the authorization-code flow
// against the platform's dialog and token endpoints.
func (c *Client) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURL,
		Scopes:       c.cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.cfg.GraphURL + "/dialog/oauth",
			TokenURL: c.cfg.GraphURL + "/oauth/access_token",
		},
	}
}

// AuthCodeURL builds the consent URL the dashboard redirects the user to.
func (c *Client) AuthCodeURL(state string) string {
	return c.OAuth2Config().AuthCodeURL(state)
}

// graphError is the platform's error envelope.
type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// oauthErrorCode is the platform's code for expired/invalidated tokens.
const oauthErrorCode = 190

// get performs one authenticated GET against path, encoding opts (a struct
// with url tags) as the query string, and returns the raw response body.
func (c *Client) get(ctx context.Context, accessToken, path string, opts any) (json.RawMessage, error) {
	base := c.httpClient
	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))

	url := c.cfg.GraphURL + path
	if opts != nil {
		vals, err := query.Values(opts)
		if err != nil {
			return nil, fmt.Errorf("platform: encoding query for %s: %w", path, err)
		}
		if encoded := vals.Encode(); encoded != "" {
			url += "?" + encoded
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("platform: building request for %s: %w", path, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("platform: reading response from %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		var ge graphError
		if json.Unmarshal(body, &ge) == nil && (ge.Error.Code == oauthErrorCode || ge.Error.Type == "OAuthException") {
			return nil, fmt.Errorf("platform: GET %s: %w", path, ErrAuthExpired)
		}
		return nil, fmt.Errorf("platform: GET %s: status %d, body: %s", path, resp.StatusCode, truncate(body, 256))
	}

	return body, nil
}

// decodeList normalizes the two list shapes the platform is known to emit, a
// {data: [...]} envelope or a bare array, into raw and rejects anything else.
// Silent defaulting to empty is deliberately not done here; an unknown shape
// is an error the caller logs.
func decodeList(body json.RawMessage, raw any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, raw); err != nil {
			return fmt.Errorf("%w: envelope data is not a list", ErrUnrecognizedShape)
		}
		return nil
	}
	if err := json.Unmarshal(body, raw); err != nil {
		return fmt.Errorf("%w: %s", ErrUnrecognizedShape, truncate(body, 256))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
