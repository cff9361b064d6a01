package cardserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mingo-party/mingo/internal/config"
)

func newTestServer(t *testing.T, cfg config.Config) (*gin.Engine, *State) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if cfg.MaxPlayers == 0 {
		cfg.MaxPlayers = 3
	}
	state := NewState(cfg.MaxPlayers)
	srv := New(state, cfg, zerolog.Nop())
	r := gin.New()
	srv.Register(r)
	return r, state
}

func sessionFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

// wrap double-encodes a payload the way the engine sends it: the body is a
// JSON string whose content is the JSON object.
func wrap(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	inner, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewBuffer(outer)
}

func loadTestCard(t *testing.T, r *gin.Engine, number int) {
	t.Helper()
	songs := make([]Song, CardCells)
	for i := range songs {
		songs[i] = Song{ID: i + 1, Title: fmt.Sprintf("Song %d", i)}
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/card_load", wrap(t, CardLoad{CardNbr: number, Songs: songs}))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("card_load failed: %d %s", w.Code, w.Body.String())
	}
}

func TestJoinBeforeCardsLoadedShowsNotReady(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	sessionFrom(t, w)
	if state.ActiveCount() != 1 {
		t.Fatalf("expected one active slot, got %d", state.ActiveCount())
	}
}

func TestJoinWithCardsRedirectsToCard(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	loadTestCard(t, r, 0)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected a redirect, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/card" {
		t.Fatalf("expected redirect to /card, got %q", loc)
	}
}

func TestAssignSpecificSlot(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := state.ActiveSlots(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("expected slot 1 active, got %v", got)
	}

	// Same slot again from another browser fails.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not available") {
		t.Fatalf("expected the invalid-id page, got %q", w.Body.String())
	}
}

func TestCardRoundTrip(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	loadTestCard(t, r, 0)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))
	cookie := sessionFrom(t, w)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/card", nil)
	req.AddCookie(cookie)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Song 3") {
		t.Fatal("card page should show the loaded titles")
	}
}

func TestCardWithoutSessionIsInvalid(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	loadTestCard(t, r, 0)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/card", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "not available") {
		t.Fatal("expected the invalid-id page")
	}
}

func TestReleaseDropsSession(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))
	cookie := sessionFrom(t, w)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rel", nil)
	req.AddCookie(cookie)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if state.ActiveCount() != 0 {
		t.Fatalf("slot should be back in the pool, active=%d", state.ActiveCount())
	}
}

func TestClaimWinnerAndDrain(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	body, _ := json.Marshal(WinClaim{CardClaimingWin: 2})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/claimWinner", bytes.NewBuffer(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/win_claims", nil))
	var resp struct {
		WinClaims []int `json:"win_claims"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad win_claims body: %v", err)
	}
	if len(resp.WinClaims) != 1 || resp.WinClaims[0] != 2 {
		t.Fatalf("expected claims [2], got %v", resp.WinClaims)
	}

	// Drained; the next read is empty, not null.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/win_claims", nil))
	if got := strings.TrimSpace(w.Body.String()); got != `{"win_claims":[]}` {
		t.Fatalf("expected an empty list, got %q", got)
	}
}

func TestCardLoadRejectsWrongCellCount(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	load := CardLoad{CardNbr: 0, Songs: []Song{{ID: 1, Title: "only one"}}}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/card_load", wrap(t, load)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestMiscDataWireFormat(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	misc := MiscData{PlaylistName: "Road Trip", NumberOfPlayers: "8", RefreshFlag: true}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/game_misc_data", wrap(t, misc)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	name, players := state.Misc()
	if name != "Road Trip" || players != 8 {
		t.Fatalf("misc not stored: %q %d", name, players)
	}
	if got := len(state.RefreshFlags()); got != 8 {
		t.Fatalf("expected 8 refresh flags, got %d", got)
	}
}

func TestMiscDataRejectsBadPlayerCount(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	misc := MiscData{PlaylistName: "x", NumberOfPlayers: "eight"}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/game_misc_data", wrap(t, misc)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStopRequestFlow(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))
	cookie := sessionFrom(t, w)

	// No session, no vote.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/requeststop", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/requeststop", nil)
	req.AddCookie(cookie)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if state.VoteCount() != 1 {
		t.Fatalf("expected 1 vote, got %d", state.VoteCount())
	}

	// Repeat vote changes nothing.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/requeststop", nil)
	req.AddCookie(cookie)
	r.ServeHTTP(w, req)
	if state.VoteCount() != 1 {
		t.Fatalf("repeat vote should not count, got %d", state.VoteCount())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get_stop_count", nil))
	if got := w.Body.String(); got != "1" {
		t.Fatalf("expected plain-text count 1, got %q", got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/clear", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if state.VoteCount() != 0 {
		t.Fatalf("expected votes cleared, got %d", state.VoteCount())
	}
}

func TestStopDataVotesRequiredNullUntilSet(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stopdata", nil))
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad stopdata body: %v", err)
	}
	if string(resp["votes_required"]) != "null" {
		t.Fatalf("expected null votes_required, got %s", resp["votes_required"])
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/set_votes_required", wrap(t, VotesRequired{VotesRequired: 3})))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stopdata", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad stopdata body: %v", err)
	}
	if string(resp["votes_required"]) != "3" {
		t.Fatalf("expected votes_required 3, got %s", resp["votes_required"])
	}
}

func TestPlayerCount(t *testing.T) {
	r, _ := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/get_player_count", nil))
	if got := w.Body.String(); got != "1" {
		t.Fatalf("expected plain-text count 1, got %q", got)
	}
}

func TestAdminRequiresAuthWhenConfigured(t *testing.T) {
	cfg := config.Config{AdminUser: "admin", AdminPass: "secret"}
	r, _ := newTestServer(t, cfg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.SetBasicAuth("admin", "secret")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", w.Code)
	}
}

func TestSignOffAll(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/join", nil))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/signOffAll", nil))
	if w.Code != http.StatusFound {
		t.Fatalf("expected a redirect back to /admin, got %d", w.Code)
	}
	if state.ActiveCount() != 0 {
		t.Fatalf("expected everyone signed off, got %d active", state.ActiveCount())
	}
}

func TestBindWrappedAcceptsBareObject(t *testing.T) {
	r, state := newTestServer(t, config.Config{})
	body, _ := json.Marshal(VotesRequired{VotesRequired: 5})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/set_votes_required", bytes.NewBuffer(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a bare object, got %d", w.Code)
	}
	if n, ok := state.VotesRequired(); !ok || n != 5 {
		t.Fatalf("expected votes required 5, got %d (%v)", n, ok)
	}
}
