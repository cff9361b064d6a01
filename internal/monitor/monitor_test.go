package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeCardServer is a minimal stand-in for the card server: a vote count
// that /clear resets and a one-shot claim list that /win_claims drains.
type fakeCardServer struct {
	mu     sync.Mutex
	votes  int
	claims []int
	clears int
}

func (f *fakeCardServer) setVotes(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.votes = n
}

func (f *fakeCardServer) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

func (f *fakeCardServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_stop_count", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		fmt.Fprintf(w, "%d", f.votes)
	})
	mux.HandleFunc("/clear", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.votes = 0
		f.clears++
	})
	mux.HandleFunc("/win_claims", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		claims := f.claims
		if claims == nil {
			claims = []int{}
		}
		f.claims = nil
		json.NewEncoder(w).Encode(map[string][]int{"win_claims": claims})
	})
	return mux
}

type recordedActions struct {
	mu     sync.Mutex
	viewed []int
	nexts  int
}

func (a *recordedActions) ViewCard(number int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.viewed = append(a.viewed, number)
}

func (a *recordedActions) NextTrack() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nexts++
}

func (a *recordedActions) snapshot() ([]int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.viewed...), a.nexts
}

func newTestMonitor(t *testing.T, fake *fakeCardServer, threshold int) (*Monitor, *recordedActions, func()) {
	t.Helper()
	ts := httptest.NewServer(fake.handler())
	actions := &recordedActions{}
	m := New(NewClient(ts.URL), actions, threshold, zerolog.Nop())
	m.interval = 10 * time.Millisecond
	return m, actions, ts.Close
}

func TestThresholdAdvancesTrackOnce(t *testing.T) {
	fake := &fakeCardServer{}
	m, actions, closeServer := newTestMonitor(t, fake, 3)
	defer closeServer()

	m.Start()
	defer m.Stop()
	// Votes arrive after the stale-vote clear at startup.
	fake.setVotes(3)
	time.Sleep(100 * time.Millisecond)

	_, nexts := actions.snapshot()
	if nexts != 1 {
		t.Fatalf("expected exactly one track advance, got %d", nexts)
	}
	// Startup clear plus the post-trigger clear.
	if got := fake.clearCount(); got != 2 {
		t.Fatalf("expected 2 clears, got %d", got)
	}
}

func TestZeroThresholdNeverAdvances(t *testing.T) {
	fake := &fakeCardServer{}
	m, actions, closeServer := newTestMonitor(t, fake, 0)
	defer closeServer()

	m.Start()
	defer m.Stop()
	fake.setVotes(5)
	time.Sleep(80 * time.Millisecond)

	_, nexts := actions.snapshot()
	if nexts != 0 {
		t.Fatalf("threshold 0 should never advance, got %d advances", nexts)
	}
}

func TestNoVotingStillProcessesClaims(t *testing.T) {
	fake := &fakeCardServer{claims: []int{4}}
	m, actions, closeServer := newTestMonitor(t, fake, 2)
	defer closeServer()

	m.Start()
	defer m.Stop()
	m.NoVoting()
	fake.setVotes(5)
	time.Sleep(80 * time.Millisecond)

	viewed, nexts := actions.snapshot()
	if nexts != 0 {
		t.Fatalf("frozen voting should not advance, got %d advances", nexts)
	}
	if len(viewed) != 1 || viewed[0] != 4 {
		t.Fatalf("claims should still flow, got %v", viewed)
	}
}

func TestClaimsProcessedOldestFirst(t *testing.T) {
	fake := &fakeCardServer{claims: []int{2, 0, 1}}
	m, actions, closeServer := newTestMonitor(t, fake, 0)
	defer closeServer()

	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	viewed, _ := actions.snapshot()
	if len(viewed) != 3 || viewed[0] != 2 || viewed[1] != 0 || viewed[2] != 1 {
		t.Fatalf("expected claims [2 0 1] in submission order, got %v", viewed)
	}
}

func TestStopWaitsForLoopExit(t *testing.T) {
	fake := &fakeCardServer{}
	m, actions, closeServer := newTestMonitor(t, fake, 3)
	defer closeServer()

	m.Start()
	if !m.Running() {
		t.Fatal("monitor should report running after start")
	}
	m.Stop()
	if m.Running() {
		t.Fatal("monitor should report stopped after stop")
	}

	// Nothing fires after Stop returns.
	_, before := actions.snapshot()
	fake.setVotes(10)
	time.Sleep(50 * time.Millisecond)
	_, after := actions.snapshot()
	if before != after {
		t.Fatalf("actions fired after stop: %d then %d", before, after)
	}
}

// The auto command retunes the threshold while the loop may be starting.
func TestSetThresholdDuringStart(t *testing.T) {
	fake := &fakeCardServer{}
	m, _, closeServer := newTestMonitor(t, fake, 3)
	defer closeServer()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			m.SetThreshold(i)
		}
	}()
	m.Start()
	<-done
	m.Stop()

	if m.Threshold() != 49 {
		t.Fatalf("expected the last threshold to stick, got %d", m.Threshold())
	}
}

func TestStartTwiceIsNoOp(t *testing.T) {
	fake := &fakeCardServer{}
	m, _, closeServer := newTestMonitor(t, fake, 3)
	defer closeServer()

	m.Start()
	m.Start()
	m.Stop()
	// A second loop would panic the double close in Stop; reaching here with
	// one clean stop is the assertion.
	if m.Running() {
		t.Fatal("monitor should be stopped")
	}
}

func TestServerErrorsReadAsZero(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer ts.Close()

	actions := &recordedActions{}
	m := New(NewClient(ts.URL), actions, 1, zerolog.Nop())
	m.interval = 10 * time.Millisecond
	m.Start()
	time.Sleep(50 * time.Millisecond)
	m.Stop()

	viewed, nexts := actions.snapshot()
	if nexts != 0 || len(viewed) != 0 {
		t.Fatalf("errors should read as no votes and no claims, got %v advances %v views", nexts, viewed)
	}
}
