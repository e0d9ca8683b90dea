// Package fivem fetches live player counts from the FiveM server list API.
package fivem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chriskrajewski/rptracker/internal/domain"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

const requestTimeout = 10 * time.Second

// Client queries the FiveM single-server endpoint for player counts.
type Client struct {
	baseURL    string // configurable for testing
	httpClient *http.Client
	clock      clockwork.Clock
}

func NewClient(clock clockwork.Clock) *Client {
	return &Client{
		baseURL:    "https://servers-frontend.fivem.net/api/servers/single",
		httpClient: &http.Client{Timeout: requestTimeout},
		clock:      clock,
	}
}

// PlayerCount fetches the current player count for one server.
func (c *Client) PlayerCount(ctx context.Context, serverID string) (domain.PlayerCount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+serverID, nil)
	if err != nil {
		return domain.PlayerCount{}, fmt.Errorf("fivem request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveUpstream("fivem", "server", start, err)
	if err != nil {
		return domain.PlayerCount{}, fmt.Errorf("fivem request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.PlayerCount{}, fmt.Errorf("fivem request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Data struct {
			Clients int `json:"clients"`
			Vars    struct {
				MaxClients int `json:"sv_maxClients,string"`
			} `json:"vars"`
			SvMaxClients int `json:"svMaxclients"`
		} `json:"Data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.PlayerCount{}, fmt.Errorf("fivem response decode failed: %w", err)
	}

	maxPlayers := result.Data.SvMaxClients
	if maxPlayers == 0 {
		maxPlayers = result.Data.Vars.MaxClients
	}

	return domain.PlayerCount{
		Players:    result.Data.Clients,
		MaxPlayers: maxPlayers,
		Online:     true,
		LastSeen:   c.clock.Now(),
	}, nil
}

// PlayerCounts fetches counts for a batch of servers concurrently. A
// failed server is reported in its own slot with an error string; it
// never fails the batch.
func (c *Client) PlayerCounts(ctx context.Context, serverIDs []string) map[string]domain.PlayerCount {
	counts := make(map[string]domain.PlayerCount, len(serverIDs))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, serverID := range serverIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			count, err := c.PlayerCount(ctx, id)
			if err != nil {
				count = domain.PlayerCount{
					Online:   false,
					LastSeen: c.clock.Now(),
					Error:    err.Error(),
				}
			}
			mu.Lock()
			counts[id] = count
			mu.Unlock()
		}(serverID)
	}
	wg.Wait()

	return counts
}
