package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/mingo-party/mingo/internal/config"
	"github.com/mingo-party/mingo/internal/engine"
	"github.com/mingo-party/mingo/internal/music/spotify"
	"github.com/mingo-party/mingo/internal/store"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Mingo - music bingo game engine

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information

Environment Variables:
  SPOTIFY_ACCESS_TOKEN  OAuth token for the Spotify Web API (required)
  SPOTIFY_BASE_URL      Custom Spotify API base URL (optional)
  WEB_CONTROLLER_URL    Base URL of the card server (default: http://localhost:8080)
  MINGO_STATE_PATH      Path to the saved-game database (default: ./.mingo_state.db)
  MINGO_INPUT_FILE      Path to the imported playlist CSV (default: ./.mingo_input.csv)
  MINGO_CARDS_HTML      Path the printable cards are written to (default: ./.cards.html)

Start the card server first, then run this and type "help".
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Mingo %s\n", version)
		return
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if cfg.SpotifyToken == "" {
		log.Fatal("SPOTIFY_ACCESS_TOKEN is not set")
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	st, err := store.Open(cfg.StatePath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	svc := spotify.New(cfg.SpotifyToken, cfg.SpotifyBaseURL)

	eng := engine.New(cfg, zerologlog.Logger, svc, st, os.Stdin, os.Stdout)
	if err := eng.Run(); err != nil {
		log.Fatal(err)
	}
}
