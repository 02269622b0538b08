// Package atlas is a thin client for the Atlas REST API. It shapes requests
// (query building, bearer auth from the session store, JSON bodies) and
// normalizes failures; all business logic lives upstream. Calls are
// fire-once: no retry, no backoff.
package atlas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/atlasgg/storefront/domain"
	errs "github.com/atlasgg/storefront/errors"
	"github.com/atlasgg/storefront/internal/apiclient"
	"github.com/atlasgg/storefront/session"
)

// IngressTokenHeader is the extra header ingress endpoints require on top of
// the usual bearer authorization.
const IngressTokenHeader = "X-Atlas-Token"

// Config holds client configuration.
type Config struct {
	// BaseURL is the public API root.
	BaseURL string
	// IngressURL is the alternate root for ingress endpoints. Calls routed
	// there require a stored access token.
	IngressURL string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is an Atlas REST API client.
type Client struct {
	baseURL    string
	ingressURL string
	httpClient *http.Client
	sessions   *session.Store
}

// New creates an Atlas client that reads its bearer token from sessions.
func New(cfg Config, sessions *session.Store) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("atlas: BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		ingressURL: strings.TrimSuffix(cfg.IngressURL, "/"),
		httpClient: httpClient,
		sessions:   sessions,
	}, nil
}

// request describes one API call for do.
type request struct {
	method string // defaults to GET
	path   string
	query  map[string]any // nil values omitted
	// rawQuery, when set, is appended verbatim instead of query. Used by the
	// callback exchanges, which must forward the provider's parameters
	// untouched.
	rawQuery string
	body     any
	headers  map[string]string
	ingress  bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	base := c.baseURL
	token := c.sessions.AccessToken(ctx)

	if req.ingress {
		if token == "" {
			return errs.ErrMissingIngressToken
		}
		if c.ingressURL == "" {
			return fmt.Errorf("atlas: no ingress URL configured")
		}
		base = c.ingressURL
	}

	endpoint := base + req.path
	switch {
	case req.rawQuery != "":
		endpoint += "?" + req.rawQuery
	case len(req.query) > 0:
		if encoded := apiclient.EncodeQuery(req.query); encoded != "" {
			endpoint += "?" + encoded
		}
	}

	method := req.method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	hasBody := method != http.MethodGet && req.body != nil
	if hasBody {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("atlas: encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("atlas: building request: %w", err)
	}

	if hasBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.ingress {
		httpReq.Header.Set(IngressTokenHeader, token)
	}
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Transport failures propagate unchanged.
		return err
	}
	return apiclient.DecodeResponse(resp, out)
}

// Steam callback results are tagged by the upstream service.
const (
	ResultSuccess   = "success"
	ResultTwoFactor = "two_factor"
)

// SteamCallbackResult is the response shape of the Steam sign-in exchange.
type SteamCallbackResult struct {
	Result string `json:"result"`
	// Session is present on a success result.
	Session *domain.Identity `json:"session,omitempty"`
	// URL is the continuation address on a two_factor result.
	URL string `json:"url,omitempty"`
}

// ExchangeSteamCallback forwards the Steam OpenID callback parameters
// verbatim and returns the tagged result.
func (c *Client) ExchangeSteamCallback(ctx context.Context, query url.Values) (*SteamCallbackResult, error) {
	var result SteamCallbackResult
	err := c.do(ctx, request{
		path:     "/auth/steam/callback",
		rawQuery: query.Encode(),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// LinkResult is the response shape of the Discord and Google link exchanges.
type LinkResult struct {
	Linked     bool   `json:"linked"`
	PlatformID string `json:"platform_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Email      string `json:"email,omitempty"`
}

// ExchangeDiscordCallback forwards the Discord OAuth2 callback parameters
// verbatim. Requires a bearer token: linking attaches to the current session.
func (c *Client) ExchangeDiscordCallback(ctx context.Context, query url.Values) (*LinkResult, error) {
	var result LinkResult
	err := c.do(ctx, request{
		path:     "/account/link/discord/callback",
		rawQuery: query.Encode(),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ExchangeGoogleCallback forwards the Google OAuth2 callback parameters
// verbatim. Requires a bearer token, like the Discord exchange.
func (c *Client) ExchangeGoogleCallback(ctx context.Context, query url.Values) (*LinkResult, error) {
	var result LinkResult
	err := c.do(ctx, request{
		path:     "/account/link/google/callback",
		rawQuery: query.Encode(),
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// UnlinkDiscord removes the Discord link from the current account.
func (c *Client) UnlinkDiscord(ctx context.Context) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/account/link/discord",
	}, nil)
}

// Profile is the account view served by the ingress endpoint.
type Profile struct {
	PlayerID  string          `json:"player_id"`
	Username  string          `json:"username"`
	DiscordID string          `json:"discord_id,omitempty"`
	Creator   *domain.Creator `json:"creator,omitempty"`
}

// Me fetches the caller's profile through the ingress endpoint. Fails locally
// with ErrMissingIngressToken when no session is stored.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var profile Profile
	err := c.do(ctx, request{
		path:    "/players/me",
		ingress: true,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SearchPlayers looks up players by name for the gift-recipient picker.
// Unset filters are omitted from the query.
func (c *Client) SearchPlayers(ctx context.Context, name string, limit int) ([]Profile, error) {
	query := map[string]any{"name": name}
	if limit > 0 {
		query["limit"] = limit
	}
	var players []Profile
	err := c.do(ctx, request{
		path:  "/players/search",
		query: query,
	}, &players)
	if err != nil {
		return nil, err
	}
	return players, nil
}
