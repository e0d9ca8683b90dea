package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const tokenTimeout = 10 * time.Second

// AuthError wraps a failed app token acquisition. The caller must treat
// the entire fetch as unavailable for that request; no retries are
// performed here so request latency stays bounded.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("twitch auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// AppTokenSource obtains app access tokens via the client-credentials
// grant. Tokens are deliberately not cached: every live-aggregation
// invocation re-authenticates so the service stays safe in a stateless
// execution model. A long-running deployment can wrap this with a
// caching decorator without touching the fetcher or matcher.
type AppTokenSource struct {
	clientID     string
	clientSecret string
	oauthURL     string // OAuth token endpoint URL (configurable for testing)
}

func NewAppTokenSource(clientID, clientSecret string) *AppTokenSource {
	return &AppTokenSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		oauthURL:     "https://id.twitch.tv/oauth2/token",
	}
}

// Token performs the client-credentials POST and returns a bearer token.
func (ts *AppTokenSource) Token(ctx context.Context) (string, error) {
	data := url.Values{}
	data.Set("client_id", ts.clientID)
	data.Set("client_secret", ts.clientSecret)
	data.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.oauthURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: tokenTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Err: fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))}
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &AuthError{Err: err}
	}
	if result.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("token response contained no access_token")}
	}

	return result.AccessToken, nil
}
