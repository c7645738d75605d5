// Package catalog pulls default content from the remote catalog provider
// and bulk-imports it into a household's custom sets.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

// ChallengeRow is one candidate challenge from the provider.
type ChallengeRow struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Category      string `json:"category"`
	Location      string `json:"location"`
	DurationMin   *int   `json:"duration_min,omitempty"`
	DefaultPoints int    `json:"default_points"`
	PhotoRequired bool   `json:"photo_required"`
	AgeMin        *int   `json:"age_min,omitempty"`
	AgeMax        *int   `json:"age_max,omitempty"`
}

// RewardRow is one candidate reward from the provider.
type RewardRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Cost        int    `json:"cost"`
}

// Payload is the provider's full response.
type Payload struct {
	Challenges []ChallengeRow `json:"challenges"`
	Rewards    []RewardRow    `json:"rewards"`
}

// Config holds catalog client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches the remote catalog. Read-only; the provider is never
// written to.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a catalog client. An empty base URL leaves the client
// unconfigured; Fetch then fails fast.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured reports whether a provider URL is set.
func (c *Client) Configured() bool { return c.baseURL != "" }

// Fetch retrieves the catalog payload, retrying transient failures with
// fibonacci backoff.
func (c *Client) Fetch(ctx context.Context) (*Payload, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("catalog provider not configured")
	}

	var payload Payload
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/catalog", nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("catalog provider returned %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("catalog provider returned %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&payload)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	return &payload, nil
}
