// Package geo resolves client IP addresses to a country name using an
// ip-api style JSON endpoint. Resolution is best-effort: callers treat
// an empty country as "unknown" and never fail ingestion over it.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// Resolver maps a client IP to a country name.
type Resolver interface {
	// Resolve returns the country for ip, or "" when it cannot be
	// determined (private address, lookup failure, unknown IP).
	Resolve(ctx context.Context, ip string) (string, error)
}

// Config holds the configuration for the geo client.
type Config struct {
	BaseURL string        // e.g., "http://ip-api.com/json"
	Timeout time.Duration // Request timeout (default: 2 seconds)
}

// Client is a Resolver backed by an HTTP lookup service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new geo lookup client.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Second
	}

	return &Client{
		baseURL: strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type lookupResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	Message string `json:"message"`
}

// Resolve looks up the country for an IP address.
func (c *Client) Resolve(ctx context.Context, ip string) (string, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", fmt.Errorf("invalid ip address: %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/"+ip+"?fields=status,message,country", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send geo lookup request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var lookup lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return "", fmt.Errorf("parse geo lookup response: %w", err)
	}

	if lookup.Status != "success" {
		return "", fmt.Errorf("geo lookup failed: %s", lookup.Message)
	}

	return lookup.Country, nil
}

// NoopResolver always reports an unknown country. Used when geo
// resolution is disabled.
type NoopResolver struct{}

// Resolve implements Resolver.
func (NoopResolver) Resolve(_ context.Context, _ string) (string, error) {
	return "", nil
}
