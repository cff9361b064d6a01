package game

import (
	"math/rand"
	"sync"

	"github.com/mingo-party/mingo/internal/playlist"
)

// Game owns the track queue and the dealt cards for one session of Mingo.
// The interactive command loop and the web-monitor poller share a Game, so
// every exported method locks.
type Game struct {
	mu sync.Mutex

	playlistName string
	tracks       []playlist.Entry
	cards        map[int]*Card

	unplayed []int
	played   []int // play order, oldest first

	currentIdx int // index into tracks, -1 before the first track
	pausedAtMS int
	paused     bool
}

// New deals nCards cards from the playlist and builds the unplayed pool from
// exactly the tracks that landed on cards; anything else can never win and
// would only stretch the game out.
func New(playlistName string, tracks []playlist.Entry, nCards int, qrMaker QRMaker) (*Game, error) {
	titles := make([]string, len(tracks))
	for i, t := range tracks {
		titles[i] = t.Title
	}
	factory := NewFactory(titles, qrMaker)

	cards := make(map[int]*Card, nCards)
	for n := 0; n < nCards; n++ {
		card, err := factory.MakeCard(n)
		if err != nil {
			return nil, err
		}
		cards[n] = card
	}

	return &Game{
		playlistName: playlistName,
		tracks:       tracks,
		cards:        cards,
		unplayed:     factory.ActiveIndexes(),
		currentIdx:   -1,
	}, nil
}

func (g *Game) PlaylistName() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playlistName
}

func (g *Game) CardCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cards)
}

func (g *Game) Card(number int) (*Card, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	card, ok := g.cards[number]
	if !ok {
		return nil, ErrNoSuchCard
	}
	return card, nil
}

func (g *Game) Cards() []*Card {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Card, 0, len(g.cards))
	for n := 0; n < len(g.cards); n++ {
		if card, ok := g.cards[n]; ok {
			out = append(out, card)
		}
	}
	return out
}

// NextTrack removes a random track from the unplayed pool, appends it to the
// play history, and returns it for the engine to start on the device.
func (g *Game) NextTrack() (playlist.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.unplayed) == 0 {
		return playlist.Entry{}, ErrGameOver
	}
	pick := rand.Intn(len(g.unplayed))
	idx := g.unplayed[pick]
	g.unplayed = append(g.unplayed[:pick], g.unplayed[pick+1:]...)
	g.played = append(g.played, idx)
	g.currentIdx = idx
	g.paused = false
	return g.tracks[idx], nil
}

// ReplayTrack replays entry n of the play history without touching the
// unplayed pool.
func (g *Game) ReplayTrack(n int) (playlist.Entry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n < 0 || n >= len(g.played) {
		return playlist.Entry{}, ErrBadTrackIdx
	}
	idx := g.played[n]
	g.currentIdx = idx
	g.paused = false
	return g.tracks[idx], nil
}

// PlayedTracks returns the play history, oldest first.
func (g *Game) PlayedTracks() []playlist.Entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]playlist.Entry, 0, len(g.played))
	for _, idx := range g.played {
		out = append(out, g.tracks[idx])
	}
	return out
}

func (g *Game) RemainingTracks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.unplayed)
}

// HasBeenPlayed reports whether a title has come up, for highlighting card
// cells when printing.
func (g *Game) HasBeenPlayed(title string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, idx := range g.played {
		if g.tracks[idx].Title == title {
			return true
		}
	}
	return false
}

// Current returns the track most recently started or replayed.
func (g *Game) Current() (playlist.Entry, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.currentIdx < 0 {
		return playlist.Entry{}, false
	}
	return g.tracks[g.currentIdx], true
}

// Pause records the playback position so Resume can pick the track back up.
func (g *Game) Pause(positionMS int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pausedAtMS = positionMS
	g.paused = true
}

// Resume hands back the recorded position and clears the paused state.
func (g *Game) Resume() (playlist.Entry, int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.paused || g.currentIdx < 0 {
		return playlist.Entry{}, 0, ErrNotPaused
	}
	pos := g.pausedAtMS
	g.paused = false
	g.pausedAtMS = 0
	return g.tracks[g.currentIdx], pos, nil
}

// Snapshot captures the game in its persisted form.
func (g *Game) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	snap := &Snapshot{
		Version:      SnapshotVersion,
		PlaylistName: g.playlistName,
		Tracks:       append([]playlist.Entry(nil), g.tracks...),
		Unplayed:     append([]int(nil), g.unplayed...),
		Played:       append([]int(nil), g.played...),
		CurrentIdx:   g.currentIdx,
		PausedAtMS:   g.pausedAtMS,
		Paused:       g.paused,
	}
	for n := 0; n < len(g.cards); n++ {
		if card, ok := g.cards[n]; ok {
			snap.Cards = append(snap.Cards, Card{
				Number: card.Number,
				Cells:  append([]string(nil), card.Cells...),
				QRFile: card.QRFile,
			})
		}
	}
	return snap
}

// Restore rebuilds a game from its persisted form.
func Restore(snap *Snapshot) *Game {
	g := &Game{
		playlistName: snap.PlaylistName,
		tracks:       append([]playlist.Entry(nil), snap.Tracks...),
		cards:        make(map[int]*Card, len(snap.Cards)),
		unplayed:     append([]int(nil), snap.Unplayed...),
		played:       append([]int(nil), snap.Played...),
		currentIdx:   snap.CurrentIdx,
		pausedAtMS:   snap.PausedAtMS,
		paused:       snap.Paused,
	}
	for _, c := range snap.Cards {
		card := c
		card.Cells = append([]string(nil), c.Cells...)
		g.cards[c.Number] = &card
	}
	return g
}
