package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/mingo-party/mingo/internal/music"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	return New("test-token", ts.URL), ts
}

func TestMeSendsBearerToken(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", got)
		}
		io.WriteString(w, `{"display_name":"Test DJ"}`)
	}))
	defer ts.Close()

	name, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("me failed: %v", err)
	}
	if name != "Test DJ" {
		t.Fatalf("expected Test DJ, got %q", name)
	}
}

func TestMissingTokenFailsFast(t *testing.T) {
	c := New("", "http://localhost:1")
	if _, err := c.Me(context.Background()); err == nil {
		t.Fatal("expected an error without a token")
	}
}

func TestPlaylistTracksPages(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		type item struct {
			Track struct {
				ID      string `json:"id"`
				Name    string `json:"name"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
			} `json:"track"`
		}
		var items []item
		// Two pages of two tracks, then an empty page.
		if offset < 4 {
			for i := offset; i < offset+2; i++ {
				var it item
				it.Track.ID = fmt.Sprintf("t%d", i)
				it.Track.Name = fmt.Sprintf("Song %d", i)
				items = append(items, it)
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer ts.Close()

	tracks, err := c.PlaylistTracks(context.Background(), "pl1")
	if err != nil {
		t.Fatalf("playlist tracks failed: %v", err)
	}
	if len(tracks) != 4 {
		t.Fatalf("expected 4 tracks over two pages, got %d", len(tracks))
	}
	if tracks[3].ID != "t3" {
		t.Fatalf("paging order broken: %+v", tracks)
	}
}

func TestPlayTurnsRepeatOffFirst(t *testing.T) {
	var calls []string
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.URL.Path)
		if r.URL.Path == "/v1/me/player/play" {
			var body struct {
				URIs []string `json:"uris"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if len(body.URIs) != 1 || body.URIs[0] != "spotify:track:abc" {
				t.Errorf("unexpected uris %v", body.URIs)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := c.Play(context.Background(), "dev1", "abc"); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if len(calls) != 2 || calls[0] != "/v1/me/player/repeat" || calls[1] != "/v1/me/player/play" {
		t.Fatalf("expected repeat then play, got %v", calls)
	}
}

func TestNoActiveDevice(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	if err := c.Pause(context.Background()); err != music.ErrNoActiveDevice {
		t.Fatalf("expected ErrNoActiveDevice, got %v", err)
	}
}

func TestCurrentlyPlayingIdle(t *testing.T) {
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Spotify answers 204 when nothing is playing.
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	status, err := c.CurrentlyPlaying(context.Background())
	if err != nil {
		t.Fatalf("currently playing failed: %v", err)
	}
	if status.IsPlaying {
		t.Fatal("expected idle status")
	}
}

func TestResumeCarriesPosition(t *testing.T) {
	var gotPos int
	c, ts := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PositionMS int `json:"position_ms"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotPos = body.PositionMS
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := c.Resume(context.Background(), "dev1", "abc", 45000); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if gotPos != 45000 {
		t.Fatalf("expected position 45000, got %d", gotPos)
	}
}
