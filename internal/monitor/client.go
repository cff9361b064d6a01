// Package monitor holds the engine's side of the card-server coordination:
// an HTTP client for the card server and the background poller that turns
// player votes and win claims into engine actions.
package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// callTimeout bounds every card-server call so a stalled request delays at
// most one poll iteration.
const callTimeout = 3 * time.Second

type Client struct {
	BaseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: callTimeout},
	}
}

// ClearVotes empties the server's skip-vote set.
func (c *Client) ClearVotes(ctx context.Context) error {
	return c.get(ctx, "/clear", nil)
}

// VoteCount reads the current skip-vote count without clearing it.
func (c *Client) VoteCount(ctx context.Context) (int, error) {
	var body []byte
	if err := c.get(ctx, "/get_stop_count", &body); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("parse stop count %q: %w", body, err)
	}
	return n, nil
}

// PlayerCount reads the number of active player slots.
func (c *Client) PlayerCount(ctx context.Context) (int, error) {
	var body []byte
	if err := c.get(ctx, "/get_player_count", &body); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("parse player count %q: %w", body, err)
	}
	return n, nil
}

// DrainClaims fetches and empties the pending win-claim list. The read is
// destructive on the server; the caller owns every claim returned.
func (c *Client) DrainClaims(ctx context.Context) ([]int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/win_claims", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("card server status %d", resp.StatusCode)
	}
	var out struct {
		WinClaims []int `json:"win_claims"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.WinClaims, nil
}

// LoadCard pushes one card's 25 titles to the server.
func (c *Client) LoadCard(ctx context.Context, number int, titles []string) error {
	songs := make([]map[string]any, 0, len(titles))
	for i, t := range titles {
		songs = append(songs, map[string]any{"id": i + 1, "title": t})
	}
	payload := map[string]any{"card_nbr": number, "songs": songs}
	return c.postWrapped(ctx, "/card_load", payload)
}

// UnloadCards replaces each card in [0, count) with placeholder content.
func (c *Client) UnloadCards(ctx context.Context, count int) error {
	titles := make([]string, 25)
	for i := range titles {
		titles[i] = "-"
	}
	for n := 0; n < count; n++ {
		if err := c.LoadCard(ctx, n, titles); err != nil {
			return err
		}
	}
	return nil
}

// SetMisc pushes the display metadata shown on player cards.
func (c *Client) SetMisc(ctx context.Context, playlistName string, players int, refresh bool) error {
	payload := map[string]any{
		"playlist_name":     playlistName,
		"number_of_players": strconv.Itoa(players),
		"refresh_flag":      refresh,
	}
	return c.postWrapped(ctx, "/game_misc_data", payload)
}

// SetVotesRequired pushes the skip-vote threshold.
func (c *Client) SetVotesRequired(ctx context.Context, n int) error {
	return c.postWrapped(ctx, "/set_votes_required", map[string]any{"votes_required": n})
}

func (c *Client) get(ctx context.Context, path string, body *[]byte) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("card server status %d", resp.StatusCode)
	}
	if body != nil {
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		*body = b
	}
	return nil
}

// postWrapped sends the double-encoded payload the card server expects: a
// JSON string whose content is the JSON object.
func (c *Client) postWrapped(ctx context.Context, path string, payload any) error {
	inner, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+path, bytes.NewReader(outer))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("card server status %d", resp.StatusCode)
	}
	return nil
}
