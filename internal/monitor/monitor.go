package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Actions is what the poller asks of the engine: show a claimed card for a
// human to verify, or advance to the next track.
type Actions interface {
	ViewCard(number int)
	NextTrack()
}

// Monitor polls the card server once per interval, draining win claims and
// watching the skip-vote count. It runs on one background goroutine between
// Start and Stop; Stop blocks until the loop has exited, so no action fires
// after Stop returns.
type Monitor struct {
	client   *Client
	actions  Actions
	log      zerolog.Logger
	interval time.Duration

	mu            sync.Mutex
	running       bool
	votingAllowed bool
	threshold     int
	stop          chan struct{}
	done          chan struct{}
}

func New(client *Client, actions Actions, threshold int, log zerolog.Logger) *Monitor {
	return &Monitor{
		client:    client,
		actions:   actions,
		log:       log,
		interval:  time.Second,
		threshold: threshold,
	}
}

// Start launches the poll loop unless it is already running. Stale votes
// accumulated before this run are cleared first, otherwise an old vote pile
// can skip a track the moment the loop begins.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.votingAllowed = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	threshold := m.threshold
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	if err := m.client.ClearVotes(ctx); err != nil {
		m.log.Warn().Err(err).Msg("could not clear stale votes at monitor start")
	}
	cancel()

	m.log.Info().Int("threshold", threshold).Msg("web monitor started")
	go m.run(stop, done)
}

// Stop halts the loop and waits for it to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stop)
	done := m.done
	m.mu.Unlock()

	<-done
	m.log.Info().Msg("web monitor stopped")
}

func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// NoVoting freezes vote counting without stopping the loop; win claims keep
// flowing.
func (m *Monitor) NoVoting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votingAllowed = false
}

func (m *Monitor) Voting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votingAllowed = true
}

// SetThreshold changes how many distinct votes trigger a track advance. Zero
// keeps collecting votes but never triggers.
func (m *Monitor) SetThreshold(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = n
}

func (m *Monitor) Threshold() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

func (m *Monitor) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		m.iterate()
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// iterate is one poll: read the vote count (unless voting is frozen), drain
// and process win claims oldest-first, then advance the track when the
// threshold is met. Any request failure reads as zero votes or no claims
// for this iteration; the loop never dies to an error.
func (m *Monitor) iterate() {
	m.mu.Lock()
	voting := m.votingAllowed
	threshold := m.threshold
	m.mu.Unlock()

	ctx := context.Background()

	count := 0
	if voting {
		n, err := m.client.VoteCount(ctx)
		if err != nil {
			m.log.Warn().Err(err).Msg("vote count fetch failed")
		} else {
			count = n
		}
	}

	claims, err := m.client.DrainClaims(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("win claim drain failed")
		claims = nil
	}
	for len(claims) > 0 {
		card := claims[0]
		claims = claims[1:]
		m.log.Info().Int("card", card).Msg("processing win claim")
		m.actions.ViewCard(card)
	}

	if voting && threshold > 0 && count >= threshold {
		if err := m.client.ClearVotes(ctx); err != nil {
			m.log.Warn().Err(err).Msg("vote clear failed")
		}
		m.log.Info().Int("votes", count).Msg("vote threshold reached, advancing track")
		m.actions.NextTrack()
	}
}
