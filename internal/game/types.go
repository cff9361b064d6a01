package game

import (
	"errors"

	"github.com/mingo-party/mingo/internal/playlist"
)

const (
	GridSize  = 5
	CardCells = GridSize * GridSize
	// CenterCell is always granted; the browser marks it tapped and the
	// printed card shows the join QR code there instead.
	CenterCell = "FREE"
)

var (
	ErrTooFewTracks = errors.New("playlist has fewer tracks than a card needs")
	ErrNoSuchCard   = errors.New("no card with that number")
	ErrGameOver     = errors.New("all tracks have been played")
	ErrNotPaused    = errors.New("nothing was paused")
	ErrBadTrackIdx  = errors.New("invalid played-track index")
)

// Card is one generated bingo board: 24 track titles plus the free center.
type Card struct {
	Number int
	Cells  []string
	// QRFile names the saved join QR image rendered in the center cell of
	// the printed card. Empty when no generator was configured.
	QRFile string
}

// SnapshotVersion identifies the persisted game-state schema.
const SnapshotVersion = 1

// Snapshot is the explicit persisted form of a game: everything needed to
// resume play, decoupled from the in-memory object graph.
type Snapshot struct {
	Version      int
	PlaylistName string
	Tracks       []playlist.Entry
	Cards        []Card
	Unplayed     []int
	Played       []int
	CurrentIdx   int
	PausedAtMS   int
	Paused       bool
}
