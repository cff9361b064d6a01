package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"

	"github.com/mingo-party/mingo/internal/cardserver"
	"github.com/mingo-party/mingo/internal/config"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides USING_PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Mingo card server - phones join here, cards live here

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or USING_PORT env var)

Environment Variables:
  USING_PORT             Port to listen on (default: 8080)
  RUN_ON_HOST            Public base URL players reach this server on
  MINGO_MAX_PLAYERS      Player slots in the pool (default: 10)
  MINGO_ADMIN_USER       Admin page username for basic auth
  MINGO_ADMIN_PASS       Admin page password for basic auth
  MINGO_UPDATE_INTERVAL  Seconds between card-page status polls (default: 2)

Examples:
  %s                  Start the card server with default settings
  %s --port 3000      Start the card server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Mingo card server %s\n", version)
		return
	}

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		dur := time.Since(start)
		zerologlog.Info().Str("path", c.Request.URL.Path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	state := cardserver.NewState(cfg.MaxPlayers)
	srv := cardserver.New(state, cfg, zerologlog.Logger)
	srv.Register(r)

	log.Printf("listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
