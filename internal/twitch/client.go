// Package twitch implements the Twitch Helix stream fetcher.
package twitch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nicklaw5/helix/v2"

	"github.com/chriskrajewski/rptracker/internal/domain"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

const (
	pageSize    = 100
	maxPages    = 5
	pageTimeout = 15 * time.Second
)

// Client fetches live streams from the Twitch Helix API.
//
// Calls are scoped by a game ID resolved once per aggregation request;
// pagination is bounded to maxPages pages of pageSize rows so a single
// request can never loop indefinitely or pull more than 500 streams.
type Client struct {
	clientID   string
	tokens     *AppTokenSource
	apiBaseURL string // Helix base URL (configurable for testing)
	configured bool
}

// NewClient creates a Twitch client. Empty credentials produce an
// unconfigured client whose calls fail with ErrPlatformDisabled, so the
// platform degrades gracefully instead of erroring at startup.
func NewClient(clientID, clientSecret string) *Client {
	return &Client{
		clientID:   clientID,
		tokens:     NewAppTokenSource(clientID, clientSecret),
		apiBaseURL: helix.DefaultAPIBaseURL,
		configured: clientID != "" && clientSecret != "",
	}
}

// Configured reports whether platform credentials are present.
func (c *Client) Configured() bool {
	return c.configured
}

// Authenticate obtains a fresh app access token for this request.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if !c.configured {
		return "", domain.ErrPlatformDisabled
	}
	start := time.Now()
	token, err := c.tokens.Token(ctx)
	metrics.ObserveUpstream("twitch", "token", start, err)
	return token, err
}

// ResolveGameID looks up the Helix game ID for a game name.
func (c *Client) ResolveGameID(ctx context.Context, token, gameName string) (string, error) {
	hc, err := c.helixClient(token)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := hc.GetGames(&helix.GamesParams{Names: []string{gameName}})
	metrics.ObserveUpstream("twitch", "games", start, err)
	if err != nil {
		return "", fmt.Errorf("game lookup failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("game lookup returned status %d: %s", resp.StatusCode, resp.ErrorMessage)
	}
	if len(resp.Data.Games) == 0 {
		return "", domain.ErrGameNotFound
	}
	return resp.Data.Games[0].ID, nil
}

// FetchStreams pages through live streams for the game, following the
// pagination cursor for at most maxPages pages. It stops early when a
// page errors, returns no cursor, or returns zero rows. Pages fetched
// before a failure are still returned: a partial pool is best-effort
// degradation, not a hard failure.
func (c *Client) FetchStreams(ctx context.Context, token, gameID string) ([]domain.Stream, error) {
	hc, err := c.helixClient(token)
	if err != nil {
		return nil, err
	}

	var streams []domain.Stream
	cursor := ""
	pages := 0

	for pages < maxPages {
		if err := ctx.Err(); err != nil {
			break
		}

		start := time.Now()
		resp, err := hc.GetStreams(&helix.StreamsParams{
			GameIDs: []string{gameID},
			First:   pageSize,
			After:   cursor,
		})
		metrics.ObserveUpstream("twitch", "streams", start, err)
		if err != nil || resp.StatusCode != http.StatusOK {
			break
		}
		pages++

		if len(resp.Data.Streams) == 0 {
			break
		}
		for _, s := range resp.Data.Streams {
			streams = append(streams, domain.Stream{
				StreamerID:   s.UserLogin,
				StreamerName: s.UserName,
				Title:        s.Title,
				ViewerCount:  s.ViewerCount,
				CategoryName: s.GameName,
				Tags:         s.Tags,
			})
		}

		cursor = resp.Data.Pagination.Cursor
		if cursor == "" {
			break
		}
	}

	metrics.StreamPagesFetched.WithLabelValues("twitch").Observe(float64(pages))
	return streams, nil
}

func (c *Client) helixClient(token string) (*helix.Client, error) {
	hc, err := helix.NewClient(&helix.Options{
		ClientID:   c.clientID,
		APIBaseURL: c.apiBaseURL,
		HTTPClient: &http.Client{Timeout: pageTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create helix client: %w", err)
	}
	hc.SetAppAccessToken(token)
	return hc, nil
}
