// Package store persists game snapshots to sqlite. Each snapshot is an
// explicit versioned record of playlist, cards, and track queue, so old
// saves stay loadable as the in-memory types evolve.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mingo-party/mingo/internal/game"
	"github.com/mingo-party/mingo/internal/playlist"
)

var (
	ErrNoSnapshot     = errors.New("no saved game with that name")
	ErrBadVersion     = errors.New("saved game has an unsupported schema version")
	ErrCorruptedState = errors.New("saved game state is corrupted")
)

// AutosaveName is where the engine snapshots after every state-changing
// command; named saves live alongside it.
const AutosaveName = "autosave"

type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the snapshot database at path.
func Open(path string) (*Store, error) {
	// foreign_keys is per connection in sqlite; the DSN pragma applies it
	// to every pooled connection so the ON DELETE CASCADEs fire.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save writes the snapshot under the given name, replacing any previous
// save with that name.
func (s *Store) Save(name string, snap *game.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM snapshot WHERE name = ?`, name); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	res, err := tx.Exec(
		`INSERT INTO snapshot (name, schema_version, playlist_name, current_idx, paused_at_ms, paused, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, snap.Version, snap.PlaylistName, snap.CurrentIdx, snap.PausedAtMS, snap.Paused,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	snapID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("save game: %w", err)
	}

	for i, t := range snap.Tracks {
		if _, err := tx.Exec(
			`INSERT INTO track (snapshot_id, idx, seq, title, track_id, artist) VALUES (?, ?, ?, ?, ?, ?)`,
			snapID, i, t.Seq, t.Title, t.TrackID, t.Artist,
		); err != nil {
			return fmt.Errorf("save game: %w", err)
		}
	}
	for order, idx := range snap.Played {
		if _, err := tx.Exec(
			`INSERT INTO play_state (snapshot_id, track_idx, played, play_order) VALUES (?, ?, 1, ?)`,
			snapID, idx, order,
		); err != nil {
			return fmt.Errorf("save game: %w", err)
		}
	}
	for _, idx := range snap.Unplayed {
		if _, err := tx.Exec(
			`INSERT INTO play_state (snapshot_id, track_idx, played, play_order) VALUES (?, ?, 0, -1)`,
			snapID, idx,
		); err != nil {
			return fmt.Errorf("save game: %w", err)
		}
	}
	for _, card := range snap.Cards {
		for cellIdx, content := range card.Cells {
			if _, err := tx.Exec(
				`INSERT INTO card_cell (snapshot_id, card_number, cell_idx, content, qr_file) VALUES (?, ?, ?, ?, ?)`,
				snapID, card.Number, cellIdx, content, card.QRFile,
			); err != nil {
				return fmt.Errorf("save game: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

// Load reads a snapshot back by name.
func (s *Store) Load(name string) (*game.Snapshot, error) {
	snap := &game.Snapshot{}
	var snapID int64
	err := s.db.QueryRow(
		`SELECT id, schema_version, playlist_name, current_idx, paused_at_ms, paused
		 FROM snapshot WHERE name = ?`, name,
	).Scan(&snapID, &snap.Version, &snap.PlaylistName, &snap.CurrentIdx, &snap.PausedAtMS, &snap.Paused)
	if err == sql.ErrNoRows {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if snap.Version != game.SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadVersion, snap.Version)
	}

	if err := s.loadTracks(snapID, snap); err != nil {
		return nil, err
	}
	if err := s.loadPlayState(snapID, snap); err != nil {
		return nil, err
	}
	if err := s.loadCards(snapID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) loadTracks(snapID int64, snap *game.Snapshot) error {
	rows, err := s.db.Query(
		`SELECT idx, seq, title, track_id, artist FROM track WHERE snapshot_id = ? ORDER BY idx`, snapID)
	if err != nil {
		return fmt.Errorf("load game tracks: %w", err)
	}
	defer rows.Close()
	next := 0
	for rows.Next() {
		var idx int
		var e playlist.Entry
		if err := rows.Scan(&idx, &e.Seq, &e.Title, &e.TrackID, &e.Artist); err != nil {
			return fmt.Errorf("load game tracks: %w", err)
		}
		if idx != next {
			return fmt.Errorf("%w: track rows out of order", ErrCorruptedState)
		}
		next++
		snap.Tracks = append(snap.Tracks, e)
	}
	return rows.Err()
}

func (s *Store) loadPlayState(snapID int64, snap *game.Snapshot) error {
	rows, err := s.db.Query(
		`SELECT track_idx, played, play_order FROM play_state WHERE snapshot_id = ? ORDER BY played DESC, play_order`, snapID)
	if err != nil {
		return fmt.Errorf("load game play state: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var idx, order int
		var played bool
		if err := rows.Scan(&idx, &played, &order); err != nil {
			return fmt.Errorf("load game play state: %w", err)
		}
		if played {
			snap.Played = append(snap.Played, idx)
		} else {
			snap.Unplayed = append(snap.Unplayed, idx)
		}
	}
	return rows.Err()
}

func (s *Store) loadCards(snapID int64, snap *game.Snapshot) error {
	rows, err := s.db.Query(
		`SELECT card_number, cell_idx, content, qr_file FROM card_cell
		 WHERE snapshot_id = ? ORDER BY card_number, cell_idx`, snapID)
	if err != nil {
		return fmt.Errorf("load game cards: %w", err)
	}
	defer rows.Close()

	var current *game.Card
	for rows.Next() {
		var number, cellIdx int
		var content, qrFile string
		if err := rows.Scan(&number, &cellIdx, &content, &qrFile); err != nil {
			return fmt.Errorf("load game cards: %w", err)
		}
		if current == nil || current.Number != number {
			snap.Cards = append(snap.Cards, game.Card{Number: number, QRFile: qrFile})
			current = &snap.Cards[len(snap.Cards)-1]
		}
		if cellIdx != len(current.Cells) {
			return fmt.Errorf("%w: card %d cells out of order", ErrCorruptedState, number)
		}
		current.Cells = append(current.Cells, content)
	}
	return rows.Err()
}

// Saves lists the stored snapshot names, newest first.
func (s *Store) Saves() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM snapshot ORDER BY saved_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list saves: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list saves: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
