// Package poller implements the client-side polling controller that
// drives dashboard live data. It merges three independent per-platform
// fetches (FiveM player counts, Twitch streams, Kick streams) on a
// fixed interval per server selection.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chriskrajewski/rptracker/internal/domain"
	"github.com/chriskrajewski/rptracker/internal/metrics"
)

// State is the poller lifecycle state. Errors are a sticky sub-state on
// the snapshot, not a State: a failed cycle never halts polling.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRefreshing State = "refreshing"
)

// Snapshot is the consolidated live-data state exposed to consumers.
// Errors maps source name ("players", "twitch", "kick") to the last
// fetch error for that source; entries clear on the next success.
type Snapshot struct {
	State     State                           `json:"state"`
	Players   map[string]domain.PlayerCount   `json:"players"`
	Twitch    map[string]domain.ServerSummary `json:"twitch"`
	Kick      map[string]domain.ServerSummary `json:"kick"`
	Errors    map[string]string               `json:"errors,omitempty"`
	UpdatedAt time.Time                       `json:"updatedAt"`
}

// Fetchers supplies the three per-source fetch functions. A nil fetcher
// disables that source; it contributes no data and no error.
type Fetchers struct {
	Players func(ctx context.Context, serverIDs []string) (map[string]domain.PlayerCount, error)
	Twitch  func(ctx context.Context, serverIDs []string) (map[string]domain.ServerSummary, error)
	Kick    func(ctx context.Context, serverIDs []string) (map[string]domain.ServerSummary, error)
}

// Poller fetches on start, then reschedules itself after each cycle
// completes. Scheduling the next fetch only after the current one
// finishes (instead of a fixed-interval ticker) prevents overlapping
// cycles; an in-flight guard additionally protects against a manual
// refresh coinciding with a scheduled poll.
type Poller struct {
	fetchers Fetchers
	clock    clockwork.Clock
	interval time.Duration

	mu        sync.Mutex
	serverIDs []string
	snapshot  Snapshot
	timer     clockwork.Timer
	inFlight  bool
	stopped   bool
	gen       int

	ctx    context.Context
	cancel context.CancelFunc

	updates chan Snapshot
}

// New creates a poller in the idle state. Call Start to begin polling.
func New(fetchers Fetchers, interval time.Duration, clock clockwork.Clock) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		fetchers: fetchers,
		clock:    clock,
		interval: interval,
		snapshot: Snapshot{State: StateIdle},
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan Snapshot, 1),
	}
}

// Start begins polling for the given server selection. An empty
// selection leaves the poller idle until SetServers provides one.
func (p *Poller) Start(serverIDs []string) {
	p.SetServers(serverIDs)
}

// SetServers replaces the server selection: the pending timer is
// cancelled, the state resets to loading, and a fetch runs immediately.
func (p *Poller) SetServers(serverIDs []string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.serverIDs = append([]string(nil), serverIDs...)
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if len(p.serverIDs) == 0 {
		p.snapshot = Snapshot{State: StateIdle}
		p.mu.Unlock()
		return
	}
	p.snapshot = Snapshot{State: StateLoading}
	gen := p.gen
	p.mu.Unlock()

	go p.fetchCycle(gen, "select", true)
}

// Refresh forces an immediate out-of-band fetch without disturbing the
// schedule. No-op while a fetch is already in flight.
func (p *Poller) Refresh() {
	p.mu.Lock()
	if p.stopped || len(p.serverIDs) == 0 {
		p.mu.Unlock()
		return
	}
	if p.snapshot.State == StateReady {
		p.snapshot.State = StateRefreshing
	}
	gen := p.gen
	p.mu.Unlock()

	go p.fetchCycle(gen, "manual", false)
}

// Stop cancels the pending timer and in-flight requests. Late-arriving
// results are discarded rather than applied to a stopped poller.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.cancel()
}

// Snapshot returns the current consolidated live-data state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Updates returns a channel carrying the latest snapshot after each
// completed cycle. The channel holds only the most recent snapshot;
// slow consumers see the newest state, not a backlog.
func (p *Poller) Updates() <-chan Snapshot {
	return p.updates
}

// fetchCycle runs the three source fetches concurrently and merges the
// results. A failure in one source does not block the other two; the
// failed source keeps its error slot and the rest update normally.
func (p *Poller) fetchCycle(gen int, trigger string, reschedule bool) {
	p.mu.Lock()
	if p.stopped || gen != p.gen || p.inFlight {
		// A concurrent cycle is already fetching; the scheduled timer
		// still needs rearming so polling continues.
		if reschedule && !p.stopped && gen == p.gen {
			p.scheduleLocked(gen)
		}
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	serverIDs := append([]string(nil), p.serverIDs...)
	p.mu.Unlock()

	ctx := p.ctx

	var (
		wg      sync.WaitGroup
		players map[string]domain.PlayerCount
		twitch  map[string]domain.ServerSummary
		kick    map[string]domain.ServerSummary

		errMu  sync.Mutex
		errors = make(map[string]string)
	)

	fetchErr := func(source string, err error) {
		errMu.Lock()
		errors[source] = err.Error()
		errMu.Unlock()
	}

	if p.fetchers.Players != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.fetchers.Players(ctx, serverIDs)
			if err != nil {
				fetchErr("players", err)
				return
			}
			players = result
		}()
	}
	if p.fetchers.Twitch != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.fetchers.Twitch(ctx, serverIDs)
			if err != nil {
				fetchErr("twitch", err)
				return
			}
			twitch = result
		}()
	}
	if p.fetchers.Kick != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.fetchers.Kick(ctx, serverIDs)
			if err != nil {
				fetchErr("kick", err)
				return
			}
			kick = result
		}()
	}
	wg.Wait()

	outcome := "ok"
	if len(errors) > 0 {
		outcome = "partial"
	}
	metrics.PollerCycles.WithLabelValues(trigger, outcome).Inc()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	if p.stopped || gen != p.gen {
		// Selection changed or poller stopped while fetching; discard.
		return
	}

	prev := p.snapshot
	next := Snapshot{
		State:     StateReady,
		Players:   mergeResult(players, prev.Players),
		Twitch:    mergeResult(twitch, prev.Twitch),
		Kick:      mergeResult(kick, prev.Kick),
		UpdatedAt: p.clock.Now(),
	}
	if len(errors) > 0 {
		next.Errors = errors
	}
	p.snapshot = next
	p.publishLocked(next)

	if reschedule {
		p.scheduleLocked(gen)
	}
}

// scheduleLocked arms the next poll. Caller holds p.mu.
func (p *Poller) scheduleLocked(gen int) {
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = p.clock.AfterFunc(p.interval, func() {
		p.fetchCycle(gen, "scheduled", true)
	})
}

// publishLocked pushes the snapshot onto the updates channel, replacing
// a stale unread one. Caller holds p.mu.
func (p *Poller) publishLocked(snapshot Snapshot) {
	select {
	case <-p.updates:
	default:
	}
	p.updates <- snapshot
}

// mergeResult keeps prior data for a source whose fetch failed this
// cycle, so one source's outage never blanks the dashboard.
func mergeResult[V any](fresh, prev map[string]V) map[string]V {
	if fresh != nil {
		return fresh
	}
	return prev
}
