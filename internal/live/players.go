package live

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chriskrajewski/rptracker/internal/domain"
)

// PlayersResponse is the envelope returned by the player-count endpoint.
type PlayersResponse struct {
	Servers   map[string]domain.PlayerCount `json:"servers"`
	Timestamp time.Time                     `json:"timestamp"`
}

// PlayerCounter is the slice of the FiveM client the aggregator needs.
type PlayerCounter interface {
	PlayerCounts(ctx context.Context, serverIDs []string) map[string]domain.PlayerCount
}

// PlayersAggregator batches FiveM player-count lookups. Per-server
// failures surface as error strings in their own slots; the batch
// itself always succeeds.
type PlayersAggregator struct {
	client PlayerCounter
	clock  clockwork.Clock
}

func NewPlayersAggregator(client PlayerCounter, clock clockwork.Clock) *PlayersAggregator {
	return &PlayersAggregator{client: client, clock: clock}
}

func (a *PlayersAggregator) Aggregate(ctx context.Context, serverIDs []string) *PlayersResponse {
	return &PlayersResponse{
		Servers:   a.client.PlayerCounts(ctx, serverIDs),
		Timestamp: a.clock.Now(),
	}
}
