// Package locator queries the truck location/ETA service. The service is an
// external collaborator; this client only reads from it to enrich replies
// and the status API.
package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Position is a truck's last known location and pickup ETA.
type Position struct {
	TruckID   string    `json:"truckId"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	ETAHours  float64   `json:"etaHours"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Client reads truck positions over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a locator client. An empty baseURL yields a disabled client
// whose lookups report the service as unconfigured.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether a locator service is configured.
func (c *Client) Enabled() bool { return c.baseURL != "" }

// Position fetches the truck's last known position and ETA toward the
// load's pickup.
func (c *Client) Position(ctx context.Context, truckID, loadID string) (*Position, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("locator: not configured")
	}
	if truckID == "" {
		return nil, fmt.Errorf("locator: truckID is required")
	}

	url := fmt.Sprintf("%s/v1/trucks/%s/position?loadId=%s", c.baseURL, truckID, loadID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("locator: build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("locator: fetch %s: %w", truckID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("locator: fetch %s: status %d", truckID, resp.StatusCode)
	}

	var pos Position
	if err := json.NewDecoder(resp.Body).Decode(&pos); err != nil {
		return nil, fmt.Errorf("locator: decode %s: %w", truckID, err)
	}
	return &pos, nil
}
