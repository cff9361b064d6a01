package cardserver

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrInvalidSlot      = errors.New("slot not active")
	ErrNoCardLoaded     = errors.New("no card loaded for slot")
	ErrNoSlotsAvailable = errors.New("no slots available")
	ErrBadCard          = errors.New("card must have exactly 25 cells")
)

// CardCells is the number of cells on a bingo board, center free cell included.
const CardCells = 25

// PlaceholderCell is pushed for every cell when a game is unloaded.
const PlaceholderCell = "-"

// State holds everything the card server knows: the slot pool, the cards
// pushed by the engine, pending skip votes and win claims, and display
// metadata. All mutation funnels through its methods; mu is held for the
// whole of each multi-field transition so join/release/sign-off are atomic.
type State struct {
	mu sync.Mutex

	poolSize int
	active   map[int]bool
	inactive map[int]bool

	// resetBoard tells a slot's browser to discard its locally cached tap
	// state on the next card fetch. Consumed once per fetch.
	resetBoard []bool
	// invalidated slots reject card fetches until re-activated.
	invalidated []bool

	sessions map[string]int // session token -> slot id

	cards map[int][]string

	votes     map[int]bool
	claims    []int
	claimSeen map[int]bool

	votesRequired    int
	votesRequiredSet bool

	playlistName  string
	playerCount   int
	refreshScreen []bool
}

func NewState(poolSize int) *State {
	s := &State{
		poolSize:      poolSize,
		active:        make(map[int]bool),
		inactive:      make(map[int]bool),
		resetBoard:    make([]bool, poolSize),
		invalidated:   make([]bool, poolSize),
		sessions:      make(map[string]int),
		cards:         make(map[int][]string),
		votes:         make(map[int]bool),
		claimSeen:     make(map[int]bool),
		refreshScreen: []bool{},
	}
	for id := 0; id < poolSize; id++ {
		s.inactive[id] = true
		s.invalidated[id] = true
	}
	return s
}

func (s *State) PoolSize() int { return s.poolSize }

// Join binds the given session token to a slot. A token with no binding gets
// the lowest inactive slot. A token that already holds a slot is rebound to a
// fresh one and its old slot returned to the pool; reloading the join link
// means "start over", not "resume".
func (s *State) Join(token string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, ok := s.lowestInactive()
	if !ok {
		return 0, ErrNoSlotsAvailable
	}
	if old, bound := s.sessions[token]; bound {
		delete(s.active, old)
		s.inactive[old] = true
	}
	s.activate(next)
	s.sessions[token] = next
	return next, nil
}

// JoinSlot activates one specific slot, the path taken when a player scans
// the QR code printed on a physical card. Fails if the slot is already
// taken or out of range.
func (s *State) JoinSlot(token string, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= s.poolSize || s.active[slot] || !s.inactive[slot] {
		return ErrInvalidSlot
	}
	s.activate(slot)
	s.sessions[token] = slot
	return nil
}

// Release returns the token's slot to the inactive pool and drops the
// session binding. The next occupant starts from a wiped board.
func (s *State) Release(token string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, bound := s.sessions[token]
	if !bound {
		return 0, false
	}
	if s.active[slot] {
		delete(s.active, slot)
		s.inactive[slot] = true
	}
	s.resetBoard[slot] = true
	s.invalidated[slot] = true
	delete(s.sessions, token)
	return slot, true
}

// SlotFor resolves a session token to its slot id.
func (s *State) SlotFor(token string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.sessions[token]
	return slot, ok
}

// SignOffAll ends the session for everyone: all slots return to the pool and
// are invalidated, and every board is wiped on its next fetch. Session
// bindings survive so a stale browser falls into the rebind path on /join.
func (s *State) SignOffAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range s.active {
		delete(s.active, id)
		s.inactive[id] = true
	}
	for id := 0; id < s.poolSize; id++ {
		s.resetBoard[id] = true
		s.invalidated[id] = true
	}
}

// FetchCard returns the 25 cells for the slot plus a one-shot flag telling
// the browser to discard its cached tap state.
func (s *State) FetchCard(slot int) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= s.poolSize || s.invalidated[slot] {
		return nil, false, ErrInvalidSlot
	}
	cells, ok := s.cards[slot]
	if !ok {
		return nil, false, ErrNoCardLoaded
	}
	reset := s.resetBoard[slot]
	s.resetBoard[slot] = false
	out := make([]string, len(cells))
	copy(out, cells)
	return out, reset, nil
}

// LoadCard replaces the stored card for a number wholesale. A fresh load
// obsoletes every browser's cached tap state, so all reset flags are raised.
// Numbers beyond the pool are accepted; cards may be pre-staged.
func (s *State) LoadCard(number int, cells []string) error {
	if len(cells) != CardCells {
		return ErrBadCard
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]string, CardCells)
	copy(stored, cells)
	s.cards[number] = stored
	for id := 0; id < s.poolSize; id++ {
		s.resetBoard[id] = true
	}
	return nil
}

// UnloadAll pushes a placeholder card for each number in [0, count).
func (s *State) UnloadAll(count int) {
	placeholder := make([]string, CardCells)
	for i := range placeholder {
		placeholder[i] = PlaceholderCell
	}
	for n := 0; n < count; n++ {
		_ = s.LoadCard(n, placeholder)
	}
}

func (s *State) HasCards() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards) > 0
}

// SetMisc stores display metadata and rebuilds the per-player refresh flag
// array to exactly playerCount entries, discarding the previous array.
func (s *State) SetMisc(playlistName string, playerCount int, refresh bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.playlistName = playlistName
	s.playerCount = playerCount
	s.refreshScreen = make([]bool, playerCount)
	for i := range s.refreshScreen {
		s.refreshScreen[i] = refresh
	}
}

func (s *State) Misc() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playlistName, s.playerCount
}

func (s *State) ClearRefresh(player int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if player < 0 || player >= len(s.refreshScreen) {
		return false
	}
	s.refreshScreen[player] = false
	return true
}

func (s *State) RefreshFlags() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.refreshScreen))
	copy(out, s.refreshScreen)
	return out
}

// SubmitVote records a skip vote for the slot. Reports false when the slot
// already voted; repeat votes never change the count.
func (s *State) SubmitVote(slot int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.votes[slot] {
		return false
	}
	s.votes[slot] = true
	return true
}

func (s *State) VoteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.votes)
}

// Voters returns the voting slot ids in ascending order.
func (s *State) Voters() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.votes))
	for id := range s.votes {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func (s *State) ClearVotes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = make(map[int]bool)
}

// SubmitClaim appends a win claim for the card number. Duplicate claims are
// dropped until the pending list is drained.
func (s *State) SubmitClaim(card int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimSeen[card] {
		return false
	}
	s.claimSeen[card] = true
	s.claims = append(s.claims, card)
	return true
}

// DrainClaims returns all pending claims in submission order and empties the
// list in the same critical section. Whoever reads first gets everything; a
// concurrent second consumer sees an empty list.
func (s *State) DrainClaims() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.claims
	if out == nil {
		out = []int{}
	}
	s.claims = nil
	s.claimSeen = make(map[int]bool)
	return out
}

func (s *State) SetVotesRequired(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votesRequired = n
	s.votesRequiredSet = true
}

func (s *State) VotesRequired() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.votesRequired, s.votesRequiredSet
}

func (s *State) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *State) ActiveSlots() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.active)
}

func (s *State) InactiveSlots() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedKeys(s.inactive)
}

// activate marks the slot live for a freshly bound session. Caller holds mu.
func (s *State) activate(slot int) {
	delete(s.inactive, slot)
	s.active[slot] = true
	s.resetBoard[slot] = true
	s.invalidated[slot] = false
}

// lowestInactive finds the smallest free slot id. Caller holds mu.
func (s *State) lowestInactive() (int, bool) {
	found := false
	low := 0
	for id := range s.inactive {
		if !found || id < low {
			low = id
			found = true
		}
	}
	return low, found
}

func sortedKeys(m map[int]bool) []int {
	out := make([]int, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
