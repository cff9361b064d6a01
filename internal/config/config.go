package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port             string
	PublicURL        string
	WebControllerURL string
	UpdateInterval   int // seconds between card-page status polls
	MaxPlayers       int
	AdminUser        string
	AdminPass        string
	StatePath        string
	InputFile        string
	CardsHTMLPath    string
	SpotifyToken     string
	SpotifyBaseURL   string
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("USING_PORT", "8080")
	c.PublicURL = getenv("RUN_ON_HOST", "http://localhost:"+c.Port)
	c.WebControllerURL = getenv("WEB_CONTROLLER_URL", "http://localhost:8080")
	c.UpdateInterval = getint("MINGO_UPDATE_INTERVAL", 2)
	c.MaxPlayers = getint("MINGO_MAX_PLAYERS", 10)
	c.AdminUser = os.Getenv("MINGO_ADMIN_USER")
	c.AdminPass = os.Getenv("MINGO_ADMIN_PASS")
	c.StatePath = getenv("MINGO_STATE_PATH", "./.mingo_state.db")
	c.InputFile = getenv("MINGO_INPUT_FILE", "./.mingo_input.csv")
	c.CardsHTMLPath = getenv("MINGO_CARDS_HTML", "./.cards.html")
	c.SpotifyToken = os.Getenv("SPOTIFY_ACCESS_TOKEN")
	c.SpotifyBaseURL = os.Getenv("SPOTIFY_BASE_URL")
	return c
}

// AdminAuth reports whether the admin routes are credential-gated.
func (c Config) AdminAuth() bool {
	return c.AdminUser != "" && c.AdminPass != ""
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
