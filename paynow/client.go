// Package paynow is a thin client for the PayNow commerce API. Catalog reads
// authorize with the storefront API key; checkout creation authorizes with
// the profile's customer token. The two modes are mutually exclusive per
// call. Calls are fire-once, same as the Atlas client.
package paynow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlasgg/storefront/domain"
	errs "github.com/atlasgg/storefront/errors"
	"github.com/atlasgg/storefront/internal/apiclient"
	"github.com/atlasgg/storefront/session"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	// APIKey is the storefront key used for catalog reads.
	APIKey string
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is a PayNow commerce API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	sessions   *session.Store
}

// New creates a PayNow client that reads the customer token from sessions.
func New(cfg Config, sessions *session.Store) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("paynow: BaseURL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		sessions:   sessions,
	}, nil
}

type request struct {
	method string // defaults to GET
	path   string
	query  map[string]any
	body   any
	// asCustomer authorizes with "customer <token>" from the session store;
	// withAPIKey authorizes with "apikey <key>". Selecting both is an error.
	asCustomer bool
	withAPIKey bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	if req.asCustomer && req.withAPIKey {
		return errs.ErrConflictingAuthModes
	}

	endpoint := c.baseURL + req.path
	if encoded := apiclient.EncodeQuery(req.query); encoded != "" {
		endpoint += "?" + encoded
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
			return fmt.Errorf("paynow: encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("paynow: building request: %w", err)
	}

	if hasBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	switch {
	case req.asCustomer:
		token := c.sessions.CustomerToken(ctx)
		if token == "" {
			return errs.ErrNotAuthenticated
		}
		httpReq.Header.Set("Authorization", "customer "+token)
	case req.withAPIKey:
		httpReq.Header.Set("Authorization", "apikey "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	return apiclient.DecodeResponse(resp, out)
}

// Product is a storefront catalog entry.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug,omitempty"`
	PriceCents    int64  `json:"price"`
	OriginalCents int64  `json:"original_price,omitempty"`
	AllowGifting  bool   `json:"allow_one_time_purchase"`
	Subscription  bool   `json:"allow_subscription"`
}

// Products lists the storefront catalog, authorized with the API key.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	var products []Product
	err := c.do(ctx, request{
		path:       "/store/products",
		withAPIKey: true,
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// CheckoutLine is one purchase intent inside a checkout request.
type CheckoutLine struct {
	ProductID      string `json:"product_id"`
	Quantity       int    `json:"quantity"`
	GiftToPlatform string `json:"gift_to_platform,omitempty"`
	GiftToID       string `json:"gift_to_customer_id,omitempty"`
	Subscription   bool   `json:"subscription,omitempty"`
}

// CheckoutRequest creates a hosted checkout for the current customer.
type CheckoutRequest struct {
	Lines      []CheckoutLine `json:"lines"`
	ReturnURL  string         `json:"return_url,omitempty"`
	CancelURL  string         `json:"cancel_url,omitempty"`
	ReferralID string         `json:"referral_id,omitempty"`
}

// Checkout is the created hosted-checkout resource.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CreateCheckout creates a hosted checkout, authorized as the customer.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	var checkout Checkout
	err := c.do(ctx, request{
		method:     http.MethodPost,
		path:       "/checkouts",
		body:       req,
		asCustomer: true,
	}, &checkout)
	if err != nil {
		return nil, err
	}
	return &checkout, nil
}

// LineFromCartItem maps a cart line to its checkout representation. Gift
// lines carry the recipient; subscription never survives on a gift line, the
// cart store guarantees that.
func LineFromCartItem(item domain.LineItem) CheckoutLine {
	line := CheckoutLine{
		ProductID:    item.ProductID,
		Quantity:     item.Quantity,
		Subscription: item.Subscription,
	}
	if item.Gift != nil {
		line.GiftToPlatform = item.Gift.Platform
		line.GiftToID = item.Gift.PlatformID
	}
	return line
}
