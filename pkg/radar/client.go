// Package radar talks to the radar-engine search collaborator: a keyword
// search around a coordinate returning arbitrary flat business records.
// The records are opaque here; the mapping engine normalizes them.
package radar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the radar-engine over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new radar-engine client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type searchRequest struct {
	Keyword string  `json:"keyword"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Radius  float64 `json:"radius"`
}

type searchResponse struct {
	Leads []map[string]any `json:"leads"`
}

// Search runs a keyword search around (lat, lng) within radiusKm. An empty
// result set is not an error.
func (c *Client) Search(ctx context.Context, keyword string, lat, lng, radiusKm float64) ([]map[string]any, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("radar engine URL not configured")
	}

	payload, err := json.Marshal(searchRequest{
		Keyword: keyword,
		Lat:     lat,
		Lng:     lng,
		Radius:  radiusKm,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("radar engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("radar engine returned status %d", resp.StatusCode)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode radar response: %w", err)
	}
	return result.Leads, nil
}
