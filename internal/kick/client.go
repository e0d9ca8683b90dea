// Package kick implements the Kick API stream fetcher.
//
// Kick has no "list all live streams" call. Fetches are always scoped
// either by a resolved category ID or, absent any category rule, by an
// unscoped top-streams-by-viewer-count call bounded to 100 rows.
package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chriskrajewski/rptracker/internal/cache"
	"github.com/chriskrajewski/rptracker/internal/domain"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

const (
	requestTimeout   = 10 * time.Second
	streamLimit      = 100
	categoryCacheTTL = 5 * time.Minute
)

// Client fetches live streams from the Kick public API.
type Client struct {
	clientID     string
	clientSecret string
	oauthURL     string // OAuth token endpoint URL (configurable for testing)
	apiBaseURL   string // API base URL (configurable for testing)
	httpClient   *http.Client
	categoryIDs  *cache.TTL[string, int64]
	configured   bool
}

// NewClient creates a Kick client. Empty credentials produce an
// unconfigured client whose calls fail with ErrPlatformDisabled.
// Category-name-to-ID resolutions are cached for five minutes to avoid
// repeated name searches; the cache is an optimization, never
// correctness-critical.
func NewClient(clientID, clientSecret string, clock clockwork.Clock) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		oauthURL:     "https://id.kick.com/oauth/token",
		apiBaseURL:   "https://api.kick.com/public/v1",
		httpClient:   &http.Client{Timeout: requestTimeout},
		categoryIDs:  cache.NewTTL[string, int64](categoryCacheTTL, clock),
		configured:   clientID != "" && clientSecret != "",
	}
}

// Configured reports whether platform credentials are present.
func (c *Client) Configured() bool {
	return c.configured
}

// Authenticate obtains a fresh app access token via client credentials.
// Tokens are not cached across requests, matching the Twitch source.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if !c.configured {
		return "", domain.ErrPlatformDisabled
	}

	data := url.Values{}
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("kick auth failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveUpstream("kick", "token", start, err)
	if err != nil {
		return "", fmt.Errorf("kick auth failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("kick auth failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("kick auth failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("kick auth failed: %w", err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("kick auth response contained no access_token")
	}

	return result.AccessToken, nil
}

type category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type livestream struct {
	Slug        string   `json:"slug"`
	Title       string   `json:"stream_title"`
	ViewerCount int      `json:"viewer_count"`
	Category    category `json:"category"`
}

// ResolveCategoryID resolves a category name to its numeric ID using
// the category search endpoint. An exact case-insensitive name match is
// preferred; otherwise the first search hit is used.
func (c *Client) ResolveCategoryID(ctx context.Context, token, name string) (int64, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if id, ok := c.categoryIDs.Get(key); ok {
		metrics.CacheHits.WithLabelValues("kick_category").Inc()
		return id, nil
	}
	metrics.CacheMisses.WithLabelValues("kick_category").Inc()

	var result struct {
		Data []category `json:"data"`
	}
	query := url.Values{"q": {name}}
	if err := c.getJSON(ctx, token, "categories", "/categories?"+query.Encode(), &result); err != nil {
		return 0, err
	}
	if len(result.Data) == 0 {
		return 0, domain.ErrCategoryNotFound
	}

	resolved := result.Data[0]
	for _, cat := range result.Data {
		if strings.EqualFold(cat.Name, name) {
			resolved = cat
			break
		}
	}

	c.categoryIDs.Set(key, resolved.ID)
	return resolved.ID, nil
}

// StreamsByCategory fetches live streams scoped to one category ID.
func (c *Client) StreamsByCategory(ctx context.Context, token string, categoryID int64) ([]domain.Stream, error) {
	query := url.Values{
		"category_id": {strconv.FormatInt(categoryID, 10)},
		"limit":       {strconv.Itoa(streamLimit)},
	}
	return c.fetchStreams(ctx, token, "streams_by_category", "/livestreams?"+query.Encode())
}

// TopStreams fetches the unscoped top live streams by viewer count.
func (c *Client) TopStreams(ctx context.Context, token string) ([]domain.Stream, error) {
	query := url.Values{
		"limit": {strconv.Itoa(streamLimit)},
		"sort":  {"viewer_count"},
	}
	return c.fetchStreams(ctx, token, "top_streams", "/livestreams?"+query.Encode())
}

func (c *Client) fetchStreams(ctx context.Context, token, operation, path string) ([]domain.Stream, error) {
	var result struct {
		Data []livestream `json:"data"`
	}
	if err := c.getJSON(ctx, token, operation, path, &result); err != nil {
		return nil, err
	}

	streams := make([]domain.Stream, 0, len(result.Data))
	for _, ls := range result.Data {
		streams = append(streams, domain.Stream{
			StreamerID:   ls.Slug,
			StreamerName: ls.Slug,
			Title:        ls.Title,
			ViewerCount:  ls.ViewerCount,
			CategoryName: ls.Category.Name,
		})
	}
	return streams, nil
}

func (c *Client) getJSON(ctx context.Context, token, operation, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("kick %s request failed: %w", operation, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveUpstream("kick", operation, start, err)
	if err != nil {
		return fmt.Errorf("kick %s request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("kick %s request failed with status %d: %s", operation, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kick %s response decode failed: %w", operation, err)
	}
	return nil
}
