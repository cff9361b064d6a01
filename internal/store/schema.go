package store

import (
	"database/sql"
	"fmt"
)

// createSchema creates all tables needed for snapshots.
// Safe to call multiple times - uses IF NOT EXISTS.
func createSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const schema = `
-- One row per saved game
CREATE TABLE IF NOT EXISTS snapshot (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    schema_version INTEGER NOT NULL,
    playlist_name TEXT NOT NULL,
    current_idx INTEGER NOT NULL,
    paused_at_ms INTEGER NOT NULL,
    paused INTEGER NOT NULL,
    saved_at TEXT NOT NULL
);

-- The imported playlist, in import order
CREATE TABLE IF NOT EXISTS track (
    snapshot_id INTEGER NOT NULL REFERENCES snapshot(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    seq INTEGER NOT NULL,
    title TEXT NOT NULL,
    track_id TEXT NOT NULL,
    artist TEXT NOT NULL,
    PRIMARY KEY (snapshot_id, idx)
);

-- Which tracks have been played, and in what order
CREATE TABLE IF NOT EXISTS play_state (
    snapshot_id INTEGER NOT NULL REFERENCES snapshot(id) ON DELETE CASCADE,
    track_idx INTEGER NOT NULL,
    played INTEGER NOT NULL,
    play_order INTEGER NOT NULL,
    PRIMARY KEY (snapshot_id, track_idx)
);

-- Dealt card contents, one row per cell
CREATE TABLE IF NOT EXISTS card_cell (
    snapshot_id INTEGER NOT NULL REFERENCES snapshot(id) ON DELETE CASCADE,
    card_number INTEGER NOT NULL,
    cell_idx INTEGER NOT NULL,
    content TEXT NOT NULL,
    qr_file TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (snapshot_id, card_number, cell_idx)
);

CREATE INDEX IF NOT EXISTS idx_track_snapshot ON track(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_play_state_snapshot ON play_state(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_card_cell_snapshot ON card_cell(snapshot_id);
`
