// Package checkoutclient talks to the checkout API from scripts, cron jobs
// and the ops CLI. It covers payment polling and the admin sweeps.
package checkoutclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	headerUserID  = "X-User-ID"
	headerAdminID = "X-Admin-ID"
)

type Client struct {
	baseURL string
	http    *http.Client
	userID  string
	adminID string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithUser sets the buyer identity forwarded on buyer endpoints.
func WithUser(id string) Option {
	return func(c *Client) { c.userID = id }
}

// WithAdmin sets the identity forwarded on admin endpoints.
func WithAdmin(id string) Option {
	return func(c *Client) { c.adminID = id }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type OrderStatus struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type StatusResponse struct {
	Status    string        `json:"status"`
	Reference string        `json:"reference"`
	Orders    []OrderStatus `json:"orders"`
	ExpiresAt *time.Time    `json:"expiresAt,omitempty"`
}

// APIError is a non-2xx answer decoded from the error envelope.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkout api: %d %s (%s): %s", e.StatusCode, e.Code, e.Reason, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func (c *Client) Status(ctx context.Context, orderIDs []string) (StatusResponse, error) {
	var out StatusResponse
	err := c.post(ctx, "/api/checkout/status", headerUserID, c.userID, map[string]any{"orderIds": orderIDs}, &out)
	return out, err
}

func (c *Client) ProcessDeliveries(ctx context.Context) (int, error) {
	var out struct {
		Processed int `json:"processed"`
	}
	err := c.post(ctx, "/api/admin/deliveries/process", headerAdminID, c.adminID, nil, &out)
	return out.Processed, err
}

func (c *Client) ExpirePayments(ctx context.Context) (int, error) {
	var out struct {
		Expired int `json:"expired"`
	}
	err := c.post(ctx, "/api/admin/payments/expire", headerAdminID, c.adminID, nil, &out)
	return out.Expired, err
}

func (c *Client) post(ctx context.Context, path, idHeader, id string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id != "" {
		req.Header.Set(idHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error *APIError `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Reason = envelope.Error.Reason
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
