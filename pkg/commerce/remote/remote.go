// Package remote implements the commerce.Backend contract over the HTTP
// API of a remote commerce platform. The platform is treated as opaque:
// this client only knows the cart endpoints and the snapshot shape.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"storefront/pkg/commerce"
	"storefront/pkg/otel"
)

// Client calls the remote cart API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New builds a client for the platform at the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCart reserves a new cart on the platform.
func (c *Client) CreateCart(ctx context.Context) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/carts", nil, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// FetchCart returns the authoritative snapshot.
func (c *Client) FetchCart(ctx context.Context, cartID string) (commerce.Cart, error) {
	var out commerce.Cart
	err := c.do(ctx, http.MethodGet, "/carts/"+cartID, nil, &out)
	return out, err
}

// AddLine adds quantity units of the variant.
func (c *Client) AddLine(ctx context.Context, cartID, merchandiseID string, quantity int) (commerce.Cart, error) {
	in := map[string]any{"merchandiseId": merchandiseID, "quantity": quantity}
	var out commerce.Cart
	err := c.do(ctx, http.MethodPost, "/carts/"+cartID+"/lines", in, &out)
	return out, err
}

// UpdateLine sets the absolute quantity of a line.
func (c *Client) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (commerce.Cart, error) {
	in := map[string]any{"quantity": quantity}
	var out commerce.Cart
	err := c.do(ctx, http.MethodPut, "/carts/"+cartID+"/lines/"+lineID, in, &out)
	return out, err
}

// RemoveLine deletes a line.
func (c *Client) RemoveLine(ctx context.Context, cartID, lineID string) (commerce.Cart, error) {
	var out commerce.Cart
	err := c.do(ctx, http.MethodDelete, "/carts/"+cartID+"/lines/"+lineID, nil, &out)
	return out, err
}

// CheckoutURL returns the platform-issued checkout redirect target.
func (c *Client) CheckoutURL(ctx context.Context, cartID string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodGet, "/carts/"+cartID+"/checkout-url", nil, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, span := otel.AddSpan(ctx, "commerce.remote",
		attribute.String("http.method", method),
		attribute.String("http.path", path))
	defer span.End()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("commerce %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if strings.Contains(path, "/lines/") {
			return commerce.ErrLineNotFound
		}
		return commerce.ErrCartNotFound
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("commerce %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("commerce %s %s: decode: %w", method, path, err)
	}
	return nil
}
