// Package commerce talks to the upstream multi-tenant commerce API: paged order listing,
// single-order lookup, and normalisation of the upstream order schema.
package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/russellmoss/guest-count-check/internal/domain"
	"github.com/russellmoss/guest-count-check/internal/platform/requestctx"
)

const (
	// DefaultBaseURL is the public endpoint of the upstream commerce API.
	DefaultBaseURL = "https://api.commerce7.com/v1"

	defaultTimeout   = 30 * time.Second
	tenantHeader     = "tenant"
	paidDateParam    = "orderPaidDate"
	defaultUserAgent = "guest-count-check/1.0"
)

// Config carries the upstream endpoint and credentials. Values are read once at start-up and
// never mutated afterwards.
type Config struct {
	BaseURL   string
	TenantID  string
	AppID     string
	SecretKey string
	Timeout   time.Duration
	UserAgent string
}

// Client issues authenticated requests against the commerce API.
type Client struct {
	baseURL   string
	tenantID  string
	appID     string
	secretKey string
	userAgent string
	http      *http.Client
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client, primarily for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient validates cfg and constructs a Client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("commerce: invalid base url %q: %w", baseURL, err)
	}

	var missing []string
	if strings.TrimSpace(cfg.TenantID) == "" {
		missing = append(missing, "tenant id")
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		missing = append(missing, "app id")
	}
	if strings.TrimSpace(cfg.SecretKey) == "" {
		missing = append(missing, "secret key")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("commerce: missing %s", strings.Join(missing, ", "))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		baseURL:   baseURL,
		tenantID:  strings.TrimSpace(cfg.TenantID),
		appID:     strings.TrimSpace(cfg.AppID),
		secretKey: cfg.SecretKey,
		userAgent: userAgent,
		http:      &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ListOrdersParams selects one page of the order list.
type ListOrdersParams struct {
	PaidDate string
	Page     int
	Limit    int
}

// OrderPage is a single page of normalised orders. Total is the upstream count across all pages.
type OrderPage struct {
	Orders []domain.Order
	Total  int
}

// ListOrders requests one page of orders.
func (c *Client) ListOrders(ctx context.Context, params ListOrdersParams) (OrderPage, error) {
	endpoint, err := url.JoinPath(c.baseURL, "order")
	if err != nil {
		return OrderPage{}, err
	}

	query := url.Values{}
	if params.PaidDate != "" {
		query.Set(paidDateParam, params.PaidDate)
	}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return OrderPage{}, &UpstreamError{Op: "list orders", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return OrderPage{}, &UpstreamError{Op: "list orders", StatusCode: resp.StatusCode, Body: drainBody(resp.Body)}
	}

	var payload orderListPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return OrderPage{}, &UpstreamError{Op: "list orders", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return payload.toPage(requestctx.Logger(ctx).Named("commerce")), nil
}

// GetOrder returns the upstream order document unmodified.
func (c *Client) GetOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrInvalidOrderID
	}

	endpoint, err := url.JoinPath(c.baseURL, "order", url.PathEscape(orderID))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrderID, err)
	}

	resp, err := c.do(ctx, endpoint)
	if err != nil {
		return nil, &UpstreamError{Op: "get order", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &UpstreamError{Op: "get order", StatusCode: resp.StatusCode, Body: drainBody(resp.Body)}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &UpstreamError{Op: "get order", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return raw, nil
}

func (c *Client) do(ctx context.Context, endpoint string) (*http.Response, error) {
	if c == nil || c.http == nil {
		return nil, errors.New("client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.appID, c.secretKey)
	req.Header.Set(tenantHeader, c.tenantID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	return c.http.Do(req)
}
