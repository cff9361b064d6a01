// Package spotify implements music.Service against the Spotify Web API.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mingo-party/mingo/internal/music"
)

type Client struct {
	Token   string
	BaseURL string
	http    *http.Client
}

func New(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.spotify.com"
	}
	return &Client{
		Token:   token,
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

var _ music.Service = (*Client)(nil)

func (c *Client) Me(ctx context.Context) (string, error) {
	var out struct {
		DisplayName string `json:"display_name"`
	}
	if err := c.do(ctx, "GET", "/v1/me", nil, &out); err != nil {
		return "", err
	}
	return out.DisplayName, nil
}

func (c *Client) Devices(ctx context.Context) ([]music.Device, error) {
	var out struct {
		Devices []struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Type     string `json:"type"`
			IsActive bool   `json:"is_active"`
		} `json:"devices"`
	}
	if err := c.do(ctx, "GET", "/v1/me/player/devices", nil, &out); err != nil {
		return nil, err
	}
	devices := make([]music.Device, 0, len(out.Devices))
	for _, d := range out.Devices {
		devices = append(devices, music.Device{ID: d.ID, Name: d.Name, Type: d.Type, Active: d.IsActive})
	}
	return devices, nil
}

func (c *Client) Playlists(ctx context.Context) ([]music.Playlist, error) {
	var out struct {
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := c.do(ctx, "GET", "/v1/me/playlists?limit=50", nil, &out); err != nil {
		return nil, err
	}
	lists := make([]music.Playlist, 0, len(out.Items))
	for _, it := range out.Items {
		lists = append(lists, music.Playlist{ID: it.ID, Name: it.Name})
	}
	return lists, nil
}

func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]music.Track, error) {
	var tracks []music.Track
	offset := 0
	for {
		path := fmt.Sprintf("/v1/playlists/%s/tracks?limit=100&offset=%d", url.PathEscape(playlistID), offset)
		var out struct {
			Items []struct {
				Track struct {
					ID      string `json:"id"`
					Name    string `json:"name"`
					Artists []struct {
						Name string `json:"name"`
					} `json:"artists"`
				} `json:"track"`
			} `json:"items"`
		}
		if err := c.do(ctx, "GET", path, nil, &out); err != nil {
			return nil, err
		}
		if len(out.Items) == 0 {
			break
		}
		for _, it := range out.Items {
			artist := ""
			if len(it.Track.Artists) > 0 {
				artist = it.Track.Artists[0].Name
			}
			tracks = append(tracks, music.Track{ID: it.Track.ID, Title: it.Track.Name, Artist: artist})
		}
		offset += len(out.Items)
	}
	return tracks, nil
}

func (c *Client) Play(ctx context.Context, deviceID, trackID string) error {
	// Repeat off first, otherwise the track loops instead of playing once.
	if err := c.do(ctx, "PUT", "/v1/me/player/repeat?state=off&device_id="+url.QueryEscape(deviceID), nil, nil); err != nil {
		return err
	}
	body := map[string]any{"uris": []string{"spotify:track:" + trackID}}
	return c.do(ctx, "PUT", "/v1/me/player/play?device_id="+url.QueryEscape(deviceID), body, nil)
}

func (c *Client) Resume(ctx context.Context, deviceID, trackID string, positionMS int) error {
	body := map[string]any{
		"uris":        []string{"spotify:track:" + trackID},
		"position_ms": positionMS,
	}
	return c.do(ctx, "PUT", "/v1/me/player/play?device_id="+url.QueryEscape(deviceID), body, nil)
}

func (c *Client) Pause(ctx context.Context) error {
	return c.do(ctx, "PUT", "/v1/me/player/pause", nil, nil)
}

func (c *Client) CurrentlyPlaying(ctx context.Context) (music.Status, error) {
	var out struct {
		IsPlaying  bool `json:"is_playing"`
		ProgressMS int  `json:"progress_ms"`
	}
	err := c.do(ctx, "GET", "/v1/me/player/currently-playing", nil, &out)
	if err != nil {
		return music.Status{}, err
	}
	return music.Status{ProgressMS: out.ProgressMS, IsPlaying: out.IsPlaying}, nil
}

func (c *Client) SetVolume(ctx context.Context, pct int) error {
	return c.do(ctx, "PUT", "/v1/me/player/volume?volume_percent="+strconv.Itoa(pct), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.Token == "" {
		return errors.New("missing SPOTIFY_ACCESS_TOKEN")
	}
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		// The player endpoints 404 when no device is available.
		return music.ErrNoActiveDevice
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("spotify status %d", resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
