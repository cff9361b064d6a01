// Package music defines the interface to the streaming backend the game
// plays tracks on. The backend is an opaque remote service; the engine only
// needs playback control, device listing, and playlist reads.
package music

import (
	"context"
	"errors"
)

var (
	// ErrNoActiveDevice means the backend rejected a playback command
	// because no player device is available to receive it.
	ErrNoActiveDevice = errors.New("no active playback device")
)

type Device struct {
	ID     string
	Name   string
	Type   string
	Active bool
}

type Playlist struct {
	ID   string
	Name string
}

type Track struct {
	ID     string
	Title  string
	Artist string
}

// Status describes the currently playing track, if any.
type Status struct {
	ProgressMS int
	IsPlaying  bool
}

type Service interface {
	// Me returns the display name of the signed-on user.
	Me(ctx context.Context) (string, error)
	Devices(ctx context.Context) ([]Device, error)
	Playlists(ctx context.Context) ([]Playlist, error)
	PlaylistTracks(ctx context.Context, playlistID string) ([]Track, error)

	// Play starts the track from the beginning on the given device, with
	// repeat off so it plays exactly once.
	Play(ctx context.Context, deviceID, trackID string) error
	// Resume restarts the track on the device at the given position.
	Resume(ctx context.Context, deviceID, trackID string, positionMS int) error
	Pause(ctx context.Context) error
	CurrentlyPlaying(ctx context.Context) (Status, error)
	SetVolume(ctx context.Context, pct int) error
}
