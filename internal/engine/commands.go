package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/mingo-party/mingo/internal/game"
	"github.com/mingo-party/mingo/internal/monitor"
	"github.com/mingo-party/mingo/internal/playlist"
	"github.com/mingo-party/mingo/internal/qr"
	"github.com/mingo-party/mingo/internal/store"
)

const defaultCardCount = 10

var errNoGame = errors.New("no active game, run makegame or continuegame first")

func (e *Engine) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

func (e *Engine) doPlaylists(_ []string) error {
	ctx, cancel := e.ctx()
	defer cancel()
	lists, err := e.music.Playlists(ctx)
	if err != nil {
		return err
	}
	e.playlists = lists
	for i, pl := range lists {
		fmt.Fprintf(e.out, "%3d: %s\n", i, pl.Name)
	}
	return nil
}

func (e *Engine) playlistArg(args []string) (string, string, error) {
	if len(args) < 1 {
		return "", "", errors.New("usage: give the playlist number shown by \"playlists\"")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 || n >= len(e.playlists) {
		return "", "", fmt.Errorf("no playlist %q, run \"playlists\" to see the numbers", args[0])
	}
	return e.playlists[n].ID, e.playlists[n].Name, nil
}

func (e *Engine) doShowList(args []string) error {
	id, name, err := e.playlistArg(args)
	if err != nil {
		return err
	}
	ctx, cancel := e.ctx()
	defer cancel()
	tracks, err := e.music.PlaylistTracks(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s (%d tracks)\n", name, len(tracks))
	seen := map[string]bool{}
	for i, t := range tracks {
		short := playlist.ShortTitle(t.Title)
		dup := ""
		if seen[short] {
			dup = "  (duplicate title, will be skipped)"
		}
		seen[short] = true
		fmt.Fprintf(e.out, "%3d: %s - %s%s\n", i, short, t.Artist, dup)
	}
	return nil
}

func (e *Engine) doUserInfo(_ []string) error {
	ctx, cancel := e.ctx()
	defer cancel()
	name, err := e.music.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Signed on as %s\n", name)
	return nil
}

// importPlaylist pulls the tracks down, drops duplicate titles so a card
// cell maps back to exactly one track, and writes the playlist CSV so the
// operator can inspect or re-import it.
func (e *Engine) importPlaylist(id, name string) ([]playlist.Entry, error) {
	ctx, cancel := e.ctx()
	defer cancel()
	tracks, err := e.music.PlaylistTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var entries []playlist.Entry
	for _, t := range tracks {
		short := playlist.ShortTitle(t.Title)
		if seen[short] {
			e.log.Info().Str("title", short).Msg("skipping duplicate title")
			continue
		}
		seen[short] = true
		entries = append(entries, playlist.Entry{
			Seq:     len(entries) + 1,
			Title:   short,
			TrackID: t.ID,
			Artist:  t.Artist,
		})
	}
	if err := playlist.WriteFile(e.cfg.InputFile, name, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// doMakeGame builds a game from a numbered playlist, or from the last
// imported CSV when the operator asks for "csv" (party venue with no
// internet but a prepared input file).
func (e *Engine) doMakeGame(args []string) error {
	var (
		name    string
		entries []playlist.Entry
		err     error
	)
	if len(args) > 0 && args[0] == "csv" {
		name, entries, err = playlist.ReadFile(e.cfg.InputFile)
		if err != nil {
			return err
		}
	} else {
		var id string
		id, name, err = e.playlistArg(args)
		if err != nil {
			return err
		}
		entries, err = e.importPlaylist(id, name)
		if err != nil {
			return err
		}
	}
	nCards := defaultCardCount
	if len(args) > 1 {
		nCards, err = strconv.Atoi(args[1])
		if err != nil || nCards < 1 {
			return fmt.Errorf("bad card count %q", args[1])
		}
	}
	maker := qr.NewGenerator(e.cfg.WebControllerURL, filepath.Dir(e.cfg.CardsHTMLPath))
	g, err := game.New(name, entries, nCards, maker)
	if err != nil {
		return err
	}
	e.game = g
	e.autosave()
	fmt.Fprintf(e.out, "Created a game with %d cards from %q (%d usable tracks)\n",
		nCards, name, len(entries))
	return nil
}

func (e *Engine) doContinueGame(_ []string) error {
	snap, err := e.store.Load(store.AutosaveName)
	if err != nil {
		return err
	}
	e.game = game.Restore(snap)
	fmt.Fprintf(e.out, "Continuing %q: %d cards, %d tracks played, %d to go\n",
		e.game.PlaylistName(), e.game.CardCount(),
		len(e.game.PlayedTracks()), e.game.RemainingTracks())
	return nil
}

func (e *Engine) doView(args []string) error {
	if e.game == nil {
		return errNoGame
	}
	number := -1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad card number %q", args[0])
		}
		number = n
	}
	if err := e.game.WriteHTML(e.cfg.CardsHTMLPath, number); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Cards written to %s\n", e.cfg.CardsHTMLPath)
	e.openBrowser(e.cfg.CardsHTMLPath)
	return nil
}

// openBrowser opens the rendered cards in the operator's browser, best
// effort; the printed path is the fallback.
func (e *Engine) openBrowser(path string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		e.log.Debug().Err(err).Msg("could not open a browser")
	}
}

func (e *Engine) doGetInfo(_ []string) error {
	if e.game == nil {
		return errNoGame
	}
	fmt.Fprintf(e.out, "Playlist: %s\n", e.game.PlaylistName())
	fmt.Fprintf(e.out, "Cards:    %d\n", e.game.CardCount())
	fmt.Fprintf(e.out, "Played:   %d\n", len(e.game.PlayedTracks()))
	fmt.Fprintf(e.out, "Left:     %d\n", e.game.RemainingTracks())
	if entry, ok := e.game.Current(); ok {
		fmt.Fprintf(e.out, "Current:  %s - %s\n", entry.Title, entry.Artist)
	}
	return nil
}

func (e *Engine) doNextTrack(_ []string) error {
	return e.advanceTrack(false)
}

// advanceTrack pulls the next random track and starts it, or in test mode
// just records it as played. A running monitor gets its vote queue cleared
// so stale skip votes cannot count against the new track.
func (e *Engine) advanceTrack(testMode bool) error {
	if e.game == nil {
		return errNoGame
	}
	entry, err := e.game.NextTrack()
	if err != nil {
		return err
	}
	if !testMode {
		if e.deviceID == "" {
			return errors.New("no playback device selected, run \"musicplayers\" first")
		}
		ctx, cancel := e.ctx()
		defer cancel()
		if err := e.music.Play(ctx, e.deviceID, entry.TrackID); err != nil {
			return err
		}
	}
	e.clearWebVotes()
	e.autosave()
	fmt.Fprintf(e.out, "Now playing: %s - %s  (%d tracks left)\n",
		entry.Title, entry.Artist, e.game.RemainingTracks())
	return nil
}

// clearWebVotes resets the skip-vote queue on the card server whenever the
// track changes. The poller clears it too when a vote passes; the two paths
// only ever clear twice, which is harmless.
func (e *Engine) clearWebVotes() {
	if e.monitor == nil || !e.monitor.Running() {
		return
	}
	ctx, cancel := e.ctx()
	defer cancel()
	if err := e.client.ClearVotes(ctx); err != nil {
		e.log.Warn().Err(err).Msg("could not clear skip votes")
	}
}

func (e *Engine) doHistory(args []string) error {
	if e.game == nil {
		return errNoGame
	}
	played := e.game.PlayedTracks()
	if len(args) == 0 {
		if len(played) == 0 {
			fmt.Fprintln(e.out, "No tracks played yet")
			return nil
		}
		for i, entry := range played {
			fmt.Fprintf(e.out, "%3d: %s - %s\n", i, entry.Title, entry.Artist)
		}
		return nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad history index %q", args[0])
	}
	return e.replayAt(n)
}

// doBackup restarts the track that is playing now, for when a snippet went
// by too fast.
func (e *Engine) doBackup(_ []string) error {
	if e.game == nil {
		return errNoGame
	}
	return e.replayAt(len(e.game.PlayedTracks()) - 1)
}

func (e *Engine) replayAt(n int) error {
	entry, err := e.game.ReplayTrack(n)
	if err != nil {
		return err
	}
	if e.deviceID == "" {
		return errors.New("no playback device selected, run \"musicplayers\" first")
	}
	ctx, cancel := e.ctx()
	defer cancel()
	if err := e.music.Play(ctx, e.deviceID, entry.TrackID); err != nil {
		return err
	}
	e.clearWebVotes()
	fmt.Fprintf(e.out, "Replaying: %s - %s\n", entry.Title, entry.Artist)
	return nil
}

func (e *Engine) doPause(_ []string) error {
	if e.game == nil {
		return errNoGame
	}
	ctx, cancel := e.ctx()
	defer cancel()
	status, err := e.music.CurrentlyPlaying(ctx)
	if err != nil {
		return err
	}
	if !status.IsPlaying {
		fmt.Fprintln(e.out, "Nothing is playing")
		return nil
	}
	if err := e.music.Pause(ctx); err != nil {
		return err
	}
	e.game.Pause(status.ProgressMS)
	e.autosave()
	fmt.Fprintf(e.out, "Paused at %s\n", formatMS(status.ProgressMS))
	return nil
}

func (e *Engine) doResume(_ []string) error {
	if e.game == nil {
		return errNoGame
	}
	entry, pos, err := e.game.Resume()
	if err != nil {
		return err
	}
	if e.deviceID == "" {
		return errors.New("no playback device selected, run \"musicplayers\" first")
	}
	ctx, cancel := e.ctx()
	defer cancel()
	if err := e.music.Resume(ctx, e.deviceID, entry.TrackID, pos); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Resumed %s at %s\n", entry.Title, formatMS(pos))
	return nil
}

func (e *Engine) doMusicPlayers(args []string) error {
	ctx, cancel := e.ctx()
	defer cancel()
	devices, err := e.music.Devices(ctx)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Fprintln(e.out, "No playback devices found, open your music player somewhere")
		return nil
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 || n >= len(devices) {
			return fmt.Errorf("no device %q", args[0])
		}
		e.deviceID = devices[n].ID
		fmt.Fprintf(e.out, "Using device %s\n", devices[n].Name)
		return nil
	}
	for i, d := range devices {
		mark := " "
		if d.Active {
			mark = "*"
			e.deviceID = d.ID
		}
		fmt.Fprintf(e.out, "%s %2d: %s (%s)\n", mark, i, d.Name, d.Type)
	}
	if e.deviceID == "" {
		fmt.Fprintln(e.out, "No device is active, pick one with \"musicplayers <n>\"")
	}
	return nil
}

func (e *Engine) doCurrentlyPlaying(_ []string) error {
	ctx, cancel := e.ctx()
	defer cancel()
	status, err := e.music.CurrentlyPlaying(ctx)
	if err != nil {
		return err
	}
	if !status.IsPlaying {
		fmt.Fprintln(e.out, "Nothing is playing")
		return nil
	}
	if e.game != nil {
		if entry, ok := e.game.Current(); ok {
			fmt.Fprintf(e.out, "Playing %s - %s at %s\n", entry.Title, entry.Artist, formatMS(status.ProgressMS))
			return nil
		}
	}
	fmt.Fprintf(e.out, "Playing at %s\n", formatMS(status.ProgressMS))
	return nil
}

// doAuto starts (or retunes) the web monitor. A threshold of zero keeps the
// poller serving win claims but stops skip votes from ever passing.
func (e *Engine) doAuto(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: auto <votes required, 0 to disable skip voting>")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return fmt.Errorf("bad vote count %q", args[0])
	}
	if e.monitor == nil {
		e.monitor = monitor.New(e.client, e, n, e.log)
	}
	e.monitor.SetThreshold(n)
	e.monitor.Start()
	if n > 0 {
		e.monitor.Voting()
	} else {
		e.monitor.NoVoting()
	}
	ctx, cancel := e.ctx()
	defer cancel()
	if err := e.client.SetVotesRequired(ctx, n); err != nil {
		return err
	}
	if n > 0 {
		fmt.Fprintf(e.out, "Watching the card server, %d votes skip a track\n", n)
	} else {
		fmt.Fprintln(e.out, "Watching the card server, skip voting is off")
	}
	return nil
}

func (e *Engine) doWebLoad(_ []string) error {
	if e.game == nil {
		return errNoGame
	}
	ctx, cancel := e.ctx()
	defer cancel()
	cards := e.game.Cards()
	for _, card := range cards {
		if err := e.client.LoadCard(ctx, card.Number, card.Cells); err != nil {
			return err
		}
	}
	if err := e.client.SetMisc(ctx, e.game.PlaylistName(), len(cards), true); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Loaded %d cards onto the card server\n", len(cards))
	return nil
}

func (e *Engine) doWebUnload(_ []string) error {
	count := e.cfg.MaxPlayers
	name := ""
	if e.game != nil {
		count = e.game.CardCount()
		name = e.game.PlaylistName()
	}
	ctx, cancel := e.ctx()
	defer cancel()
	if err := e.client.UnloadCards(ctx, count); err != nil {
		return err
	}
	if err := e.client.SetMisc(ctx, name, count, true); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Cleared the cards on the card server")
	return nil
}

func (e *Engine) doCountPlayers(_ []string) error {
	ctx, cancel := e.ctx()
	defer cancel()
	n, err := e.client.PlayerCount(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%d players have signed on\n", n)
	return nil
}

// doTestMode advances tracks without touching the playback device, for dry
// runs against cards before a party.
func (e *Engine) doTestMode(args []string) error {
	count := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("bad track count %q", args[0])
		}
		count = n
	}
	for i := 0; i < count; i++ {
		if err := e.advanceTrack(true); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) doSave(args []string) error {
	if e.game == nil {
		return errNoGame
	}
	if len(args) < 1 {
		return errors.New("usage: save <name>")
	}
	if err := e.store.Save(args[0], e.game.Snapshot()); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Saved game as %q\n", args[0])
	return nil
}

func (e *Engine) doLoad(args []string) error {
	if len(args) < 1 {
		names, err := e.store.Saves()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(e.out, "No saved games")
			return nil
		}
		for _, name := range names {
			fmt.Fprintf(e.out, "  %s\n", name)
		}
		return nil
	}
	snap, err := e.store.Load(args[0])
	if err != nil {
		return err
	}
	e.game = game.Restore(snap)
	fmt.Fprintf(e.out, "Loaded %q: %d cards, %d tracks played, %d to go\n",
		args[0], e.game.CardCount(), len(e.game.PlayedTracks()), e.game.RemainingTracks())
	return nil
}

func (e *Engine) printHelp() {
	fmt.Fprint(e.out, `Commands:
  playlists               list your playlists
  showlist <n>            show the tracks on playlist n
  userinfo                show who is signed on to the music service
  makegame <n> [cards]    build a game from playlist n (default 10 cards);
                          "makegame csv" reuses the last imported input file
  continuegame            pick up the last game from the autosave
  view [card]             write the printable cards (one card or all) to HTML
  getinfo                 show the state of the current game
  nexttrack               play the next random track
  history [n]             list played tracks, or replay track n
  backup                  restart the current track from the top
  pause / resume          pause playback and pick it back up
  musicplayers [n]        list playback devices, or select device n
  currentlyplaying        show playback position
  auto <votes>            watch the card server; votes=0 turns skip voting off
  webload / webunload     push the cards to the card server, or clear them
  countplayers            how many players have signed on
  testmode [n]            advance n tracks without playing anything
  save <name> / load [name]  snapshot the game, or restore one (no name: list)
  quit                    pause, save, and exit
`)
}

func formatMS(ms int) string {
	return fmt.Sprintf("%d:%02d", ms/60000, ms%60000/1000)
}
