package domain

import "time"

// Stream is a platform-agnostic live stream record, normalized from the
// platform API response before matching. Ephemeral: fetched per request
// and discarded after the response is built.
type Stream struct {
	// StreamerID is the case-insensitive identity key used for
	// deduplication: user name on Twitch, channel slug on Kick.
	StreamerID   string
	StreamerName string
	Title        string
	ViewerCount  int
	CategoryName string
	Tags         []string
}

// MatchedStream is the subset of a Stream surfaced to clients.
// GameName and Tags are populated for Twitch only.
type MatchedStream struct {
	Name     string   `json:"name"`
	Viewers  int      `json:"viewers"`
	Title    string   `json:"title"`
	GameName string   `json:"gameName,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ServerSummary is the per-server live summary returned by the
// aggregation endpoints. StreamCount and ViewerCount cover the full
// deduplicated match set; TopStreams is truncated to the top five by
// viewer count. Never persisted.
type ServerSummary struct {
	StreamCount int             `json:"streamCount"`
	ViewerCount int             `json:"viewerCount"`
	TopStreams  []MatchedStream `json:"topStreams"`
	LastUpdated time.Time       `json:"lastUpdated"`
	Error       string          `json:"error,omitempty"`
}

// PlayerCount is a point-in-time player count for one game server.
type PlayerCount struct {
	Players    int       `json:"players"`
	MaxPlayers int       `json:"maxPlayers"`
	Online     bool      `json:"online"`
	LastSeen   time.Time `json:"lastSeen"`
	Error      string    `json:"error,omitempty"`
}
