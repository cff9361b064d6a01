// Package engine is the interactive side of Mingo: the operator's command
// loop that imports playlists, deals cards, drives playback on the music
// service, and feeds the card server.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mingo-party/mingo/internal/config"
	"github.com/mingo-party/mingo/internal/game"
	"github.com/mingo-party/mingo/internal/monitor"
	"github.com/mingo-party/mingo/internal/music"
	"github.com/mingo-party/mingo/internal/store"
)

// errQuit breaks the command loop from the quit command.
var errQuit = errors.New("quit")

const commandTimeout = 10 * time.Second

type Engine struct {
	cfg   config.Config
	log   zerolog.Logger
	music music.Service
	store *store.Store

	client  *monitor.Client
	monitor *monitor.Monitor

	// mu guards the game state below. The poller goroutine reaches it
	// through ViewCard and NextTrack while the command loop mutates it.
	mu        sync.Mutex
	game      *game.Game
	deviceID  string
	playlists []music.Playlist

	in  *bufio.Scanner
	out *lockedWriter
}

// lockedWriter keeps interleaved prints from the command loop and the
// poller goroutine from corrupting each other.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

func New(cfg config.Config, log zerolog.Logger, svc music.Service, st *store.Store, in io.Reader, out io.Writer) *Engine {
	return &Engine{
		cfg:    cfg,
		log:    log,
		music:  svc,
		store:  st,
		client: monitor.NewClient(cfg.WebControllerURL),
		in:     bufio.NewScanner(in),
		out:    &lockedWriter{w: out},
	}
}

// Run is the interactive loop. It returns when the operator quits or input
// ends. Errors inside a command are printed; a connectivity loss prompts
// the operator to retry or exit instead of crashing the loop.
func (e *Engine) Run() error {
	e.mu.Lock()
	err := e.doPlaylists(nil)
	e.mu.Unlock()
	if err != nil {
		fmt.Fprintln(e.out, err)
	}
	for {
		fmt.Fprintf(e.out, "%s ", e.prompt())
		if !e.in.Scan() {
			e.cleanup()
			return e.in.Err()
		}
		line := strings.TrimSpace(e.in.Text())
		if line == "" {
			continue
		}
		err := e.dispatch(strings.Fields(line))
		if err == errQuit {
			fmt.Fprintln(e.out, "Exiting the program...")
			return nil
		}
		if err == nil {
			continue
		}
		if isNetworkError(err) {
			fmt.Fprintln(e.out, "\nAn error occurred that indicates that you are not connected to the internet.")
			if !e.confirm("Try correcting this problem and press \"Y\" to try again, or any other key to exit. ") {
				e.cleanup()
				return nil
			}
			continue
		}
		fmt.Fprintln(e.out, err)
	}
}

func (e *Engine) prompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return "(No active game)"
	}
	return fmt.Sprintf("(%s)", e.game.PlaylistName())
}

func (e *Engine) dispatch(fields []string) error {
	cmd, args := fields[0], fields[1:]
	if cmd == "quit" {
		e.cleanup()
		return errQuit
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	switch cmd {
	case "playlists":
		return e.doPlaylists(args)
	case "showlist":
		return e.doShowList(args)
	case "userinfo":
		return e.doUserInfo(args)
	case "makegame":
		return e.doMakeGame(args)
	case "continuegame":
		return e.doContinueGame(args)
	case "view":
		return e.doView(args)
	case "getinfo":
		return e.doGetInfo(args)
	case "nexttrack":
		return e.doNextTrack(args)
	case "history":
		return e.doHistory(args)
	case "backup":
		return e.doBackup(args)
	case "pause":
		return e.doPause(args)
	case "resume":
		return e.doResume(args)
	case "musicplayers":
		return e.doMusicPlayers(args)
	case "currentlyplaying":
		return e.doCurrentlyPlaying(args)
	case "auto":
		return e.doAuto(args)
	case "webload":
		return e.doWebLoad(args)
	case "webunload":
		return e.doWebUnload(args)
	case "countplayers":
		return e.doCountPlayers(args)
	case "testmode":
		return e.doTestMode(args)
	case "save":
		return e.doSave(args)
	case "load":
		return e.doLoad(args)
	case "help":
		e.printHelp()
		return nil
	default:
		return fmt.Errorf("unknown command %q, try \"help\"", cmd)
	}
}

func (e *Engine) confirm(prompt string) bool {
	fmt.Fprint(e.out, prompt)
	if !e.in.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(e.in.Text()), "y")
}

// cleanup stops the web monitor, pauses playback, and snapshots the game so
// a later continuegame picks up where we left off. The monitor must stop
// before mu is taken: Stop waits for the poll loop, and an iteration blocked
// on mu would never finish.
func (e *Engine) cleanup() {
	if e.monitor != nil {
		e.monitor.Stop()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if e.game != nil {
		if status, err := e.music.CurrentlyPlaying(ctx); err == nil && status.IsPlaying {
			if err := e.music.Pause(ctx); err == nil {
				e.game.Pause(status.ProgressMS)
			}
		}
		e.autosave()
	}
}

func (e *Engine) autosave() {
	if e.game == nil {
		return
	}
	if err := e.store.Save(store.AutosaveName, e.game.Snapshot()); err != nil {
		e.log.Warn().Err(err).Msg("autosave failed")
	}
}

// ViewCard renders one claimed card for the operator to verify. Part of the
// monitor.Actions the poller drives.
func (e *Engine) ViewCard(number int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.game == nil {
		return
	}
	if err := e.game.WriteHTML(e.cfg.CardsHTMLPath, number); err != nil {
		e.log.Warn().Err(err).Int("card", number).Msg("could not render claimed card")
		return
	}
	fmt.Fprintf(e.out, "\nWin claimed on card %d! Check it at %s\n", number, e.cfg.CardsHTMLPath)
	e.openBrowser(e.cfg.CardsHTMLPath)
}

// NextTrack advances playback when enough skip votes arrive. Part of the
// monitor.Actions the poller drives.
func (e *Engine) NextTrack() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.advanceTrack(false); err != nil {
		fmt.Fprintln(e.out, err)
	}
}

var _ monitor.Actions = (*Engine)(nil)

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
