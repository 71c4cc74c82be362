// Package hubspot is a minimal client for the HubSpot CRM v3 properties API,
// covering exactly the calls the portal syncer needs: account verification,
// listing and creating property definitions and property groups.
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/mayple/hubspot-portal-syncer/internal/domain"
)

// DefaultBaseURL is the production HubSpot API endpoint.
const DefaultBaseURL = "https://api.hubapi.com"

// HubSpot allows 100 requests per rolling 10 seconds per key. The default
// limiter stays safely under that.
const (
	defaultRateInterval = 150 * time.Millisecond
	defaultRateBurst    = 10
)

// Client talks to one HubSpot portal using hapikey authentication.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint. Used by tests
// to target a local portal.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit replaces the default request limiter.
func WithRateLimit(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// New creates a client for the portal the given API key belongs to.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(defaultRateInterval), defaultRateBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Account identifies the portal an API key belongs to.
type Account struct {
	PortalID int64  `json:"portalId"`
	TimeZone string `json:"timeZone,omitempty"`
	Currency string `json:"currency,omitempty"`
}

// Account returns the account details for the client's API key. The syncer
// uses it to verify a key actually belongs to the configured portal before
// touching any definitions.
func (c *Client) Account(ctx context.Context) (*Account, error) {
	var acct Account
	if err := c.do(ctx, http.MethodGet, "/integrations/v1/me", nil, &acct); err != nil {
		return nil, err
	}
	return &acct, nil
}

type collection[T any] struct {
	Results []T `json:"results"`
}

// ListProperties returns all property definitions for the object type, in
// the order the portal returns them.
func (c *Client) ListProperties(ctx context.Context, objectType domain.ObjectType) ([]domain.Property, error) {
	var resp collection[domain.Property]
	path := fmt.Sprintf("/crm/v3/properties/%s", objectType)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// CreateProperty creates a property definition on the portal.
func (c *Client) CreateProperty(ctx context.Context, objectType domain.ObjectType, p *domain.Property) (*domain.Property, error) {
	var created domain.Property
	path := fmt.Sprintf("/crm/v3/properties/%s", objectType)
	if err := c.do(ctx, http.MethodPost, path, p, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListGroups returns all property groups for the object type.
func (c *Client) ListGroups(ctx context.Context, objectType domain.ObjectType) ([]domain.PropertyGroup, error) {
	var resp collection[domain.PropertyGroup]
	path := fmt.Sprintf("/crm/v3/properties/%s/groups", objectType)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// CreateGroup creates a property group on the portal.
func (c *Client) CreateGroup(ctx context.Context, objectType domain.ObjectType, g *domain.PropertyGroup) (*domain.PropertyGroup, error) {
	var created domain.PropertyGroup
	path := fmt.Sprintf("/crm/v3/properties/%s/groups", objectType)
	if err := c.do(ctx, http.MethodPost, path, g, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// do performs one API call: waits on the rate limiter, sends the request
// with hapikey auth, and decodes either the response body or the HubSpot
// error envelope.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	q := u.Query()
	q.Set("hapikey", c.apiKey)
	u.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
