package cardserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mingo-party/mingo/internal/config"
)

const sessionCookie = "mingo_session"

// Server owns the card-server HTTP surface. All game state lives in State;
// handlers only translate between the wire and State's methods.
type Server struct {
	state *State
	cfg   config.Config
	log   zerolog.Logger
}

func New(state *State, cfg config.Config, log zerolog.Logger) *Server {
	return &Server{state: state, cfg: cfg, log: log}
}

// Register mounts every route on the given engine.
func (srv *Server) Register(r *gin.Engine) {
	srv.loadTemplates(r)
	r.Use(cors())

	r.GET("/join", srv.handleJoin)
	r.GET("/rel", srv.handleRelease)
	r.GET("/card", srv.handleCard)
	r.GET("/not_ready", srv.handleNotReady)
	r.GET("/check", srv.handleCheck)
	r.GET("/:slot_id", srv.handleAssignSlot)

	r.POST("/claimWinner", srv.handleClaimWinner)
	r.GET("/win_claims", srv.handleWinClaims)
	r.POST("/win_claims", srv.handleWinClaims)

	r.POST("/card_load", srv.handleCardLoad)
	r.POST("/game_misc_data", srv.handleMiscData)
	r.POST("/clear_refresh", srv.handleClearRefresh)
	r.POST("/set_votes_required", srv.handleSetVotesRequired)

	r.GET("/clear", srv.handleClearVotes)
	r.POST("/requeststop", srv.handleRequestStop)
	r.GET("/stopdata", srv.handleStopData)
	r.POST("/stopdata", srv.handleStopData)
	r.GET("/get_stop_count", srv.handleStopCount)
	r.GET("/get_player_count", srv.handlePlayerCount)

	admin := r.Group("/")
	if srv.cfg.AdminAuth() {
		admin.Use(gin.BasicAuth(gin.Accounts{srv.cfg.AdminUser: srv.cfg.AdminPass}))
	}
	admin.GET("/admin", srv.handleAdmin)
	admin.GET("/signOffAll", srv.handleSignOffAll)
	admin.POST("/signOffAll", srv.handleSignOffAll)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}

func (srv *Server) token(c *gin.Context) (string, bool) {
	t, err := c.Cookie(sessionCookie)
	return t, err == nil && t != ""
}

func (srv *Server) issueToken(c *gin.Context) string {
	t := uuid.NewString()
	c.SetCookie(sessionCookie, t, 0, "/", "", false, true)
	return t
}

func (srv *Server) dropToken(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
}

// handleAssignSlot serves GET /{slot_id}: the QR-code path where a player
// claims one specific slot.
func (srv *Server) handleAssignSlot(c *gin.Context) {
	slot, err := strconv.Atoi(c.Param("slot_id"))
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	token, ok := srv.token(c)
	if !ok {
		token = srv.issueToken(c)
	}
	if err := srv.state.JoinSlot(token, slot); err != nil {
		srv.renderInvalid(c, slot)
		return
	}
	srv.log.Info().Int("slot", slot).Msg("assigned slot")
	srv.afterActivate(c, slot)
}

// handleJoin serves GET /join: lowest free slot, with "start over" rebinding
// for a browser that already holds one.
func (srv *Server) handleJoin(c *gin.Context) {
	token, ok := srv.token(c)
	if !ok {
		token = srv.issueToken(c)
	}
	slot, err := srv.state.Join(token)
	if err != nil {
		c.HTML(http.StatusOK, "no_cards.html", gin.H{})
		return
	}
	srv.log.Info().Int("slot", slot).Msg("joined")
	srv.afterActivate(c, slot)
}

func (srv *Server) afterActivate(c *gin.Context, slot int) {
	if srv.state.HasCards() {
		c.Redirect(http.StatusFound, "/card")
		return
	}
	c.HTML(http.StatusOK, "game_not_ready.html", gin.H{"PlayerID": slot})
}

func (srv *Server) handleRelease(c *gin.Context) {
	released := "Unknown Id"
	if token, ok := srv.token(c); ok {
		if slot, found := srv.state.Release(token); found {
			released = strconv.Itoa(slot)
			srv.log.Info().Int("slot", slot).Msg("released slot")
		}
		srv.dropToken(c)
	}
	c.HTML(http.StatusOK, "released.html", gin.H{"PlayerID": released})
}

func (srv *Server) handleCard(c *gin.Context) {
	if !srv.state.HasCards() {
		c.Redirect(http.StatusFound, "/not_ready")
		return
	}
	token, ok := srv.token(c)
	if !ok {
		srv.renderInvalid(c, 999)
		return
	}
	slot, bound := srv.state.SlotFor(token)
	if !bound {
		srv.renderInvalid(c, 999)
		return
	}
	cells, reset, err := srv.state.FetchCard(slot)
	switch err {
	case nil:
	case ErrInvalidSlot:
		// Administrator signed this slot off; forget the session.
		srv.dropToken(c)
		srv.renderInvalid(c, slot)
		return
	default:
		srv.renderInvalid(c, 999)
		return
	}
	playlistName, _ := srv.state.Misc()
	c.HTML(http.StatusOK, "card_view.html", gin.H{
		"CardNumber":     slot,
		"Titles":         cells,
		"PlaylistName":   playlistName,
		"ResetStorage":   reset,
		"UpdateInterval": srv.cfg.UpdateInterval,
	})
}

func (srv *Server) handleNotReady(c *gin.Context) {
	slot := -1
	if token, ok := srv.token(c); ok {
		if s, bound := srv.state.SlotFor(token); bound {
			slot = s
		}
	}
	c.HTML(http.StatusOK, "game_not_ready.html", gin.H{"PlayerID": slot})
}

func (srv *Server) handleCheck(c *gin.Context) {
	token, ok := srv.token(c)
	if !ok {
		srv.renderInvalid(c, 999)
		return
	}
	slot, bound := srv.state.SlotFor(token)
	if !bound {
		srv.renderInvalid(c, 999)
		return
	}
	c.HTML(http.StatusOK, "check.html", gin.H{"PlayerID": slot})
}

func (srv *Server) renderInvalid(c *gin.Context, slot int) {
	c.HTML(http.StatusOK, "invalid_id.html", gin.H{"PlayerID": slot})
}

func (srv *Server) handleClaimWinner(c *gin.Context) {
	var claim WinClaim
	if err := c.ShouldBindJSON(&claim); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_claim"})
		return
	}
	if srv.state.SubmitClaim(claim.CardClaimingWin) {
		srv.log.Info().Int("card", claim.CardClaimingWin).Msg("win claim received")
	} else {
		srv.log.Info().Int("card", claim.CardClaimingWin).Msg("duplicate win claim dropped")
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "received": claim.CardClaimingWin})
}

func (srv *Server) handleWinClaims(c *gin.Context) {
	claims := srv.state.DrainClaims()
	if len(claims) > 0 {
		srv.log.Info().Ints("claims", claims).Msg("draining win claims")
	}
	c.JSON(http.StatusOK, gin.H{"win_claims": claims})
}

func (srv *Server) handleCardLoad(c *gin.Context) {
	var load CardLoad
	if err := bindWrapped(c, &load); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_card"})
		return
	}
	cells := make([]string, 0, len(load.Songs))
	for _, s := range load.Songs {
		cells = append(cells, s.Title)
	}
	if err := srv.state.LoadCard(load.CardNbr, cells); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	srv.log.Info().Int("card", load.CardNbr).Msg("card loaded")
	c.JSON(http.StatusOK, gin.H{"status": "success", "received": load})
}

func (srv *Server) handleMiscData(c *gin.Context) {
	var misc MiscData
	if err := bindWrapped(c, &misc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_misc_data"})
		return
	}
	players, err := strconv.Atoi(misc.NumberOfPlayers)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_player_count"})
		return
	}
	srv.state.SetMisc(misc.PlaylistName, players, misc.RefreshFlag)
	srv.log.Info().Str("playlist", misc.PlaylistName).Int("players", players).Msg("misc data loaded")
	c.JSON(http.StatusOK, gin.H{"status": "success", "received": misc})
}

func (srv *Server) handleClearRefresh(c *gin.Context) {
	var req ClearRefresh
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_player"})
		return
	}
	srv.state.ClearRefresh(req.PlayerNbr)
	c.JSON(http.StatusOK, gin.H{"status": "success", "received": "OK"})
}

func (srv *Server) handleSetVotesRequired(c *gin.Context) {
	var req VotesRequired
	if err := bindWrapped(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_votes_required"})
		return
	}
	srv.state.SetVotesRequired(req.VotesRequired)
	srv.log.Info().Int("votes_required", req.VotesRequired).Msg("vote threshold set")
	c.JSON(http.StatusOK, gin.H{"votes_required": "OK"})
}

func (srv *Server) handleClearVotes(c *gin.Context) {
	srv.state.ClearVotes()
	c.HTML(http.StatusOK, "cleared.html", gin.H{})
}

func (srv *Server) handleRequestStop(c *gin.Context) {
	token, ok := srv.token(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
		return
	}
	slot, bound := srv.state.SlotFor(token)
	if !bound {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no_session"})
		return
	}
	if !srv.state.SubmitVote(slot) {
		srv.log.Info().Int("slot", slot).Msg("not recording a repeated skip request")
	}
	c.JSON(http.StatusOK, gin.H{"stoprequests": srv.state.Voters()})
}

func (srv *Server) handleStopData(c *gin.Context) {
	var required any
	if n, set := srv.state.VotesRequired(); set {
		required = n
	}
	c.JSON(http.StatusOK, gin.H{
		"stoprequests":   srv.state.Voters(),
		"votes_required": required,
		"refresh_screen": srv.state.RefreshFlags(),
	})
}

func (srv *Server) handleStopCount(c *gin.Context) {
	c.String(http.StatusOK, strconv.Itoa(srv.state.VoteCount()))
}

func (srv *Server) handlePlayerCount(c *gin.Context) {
	c.String(http.StatusOK, strconv.Itoa(srv.state.ActiveCount()))
}

func (srv *Server) handleAdmin(c *gin.Context) {
	c.Header("Cache-Control", "no-store, no-cache, must-revalidate")
	c.Header("Pragma", "no-cache")
	c.Header("Expires", "0")
	c.HTML(http.StatusOK, "admin.html", gin.H{
		"Active":   srv.state.ActiveSlots(),
		"Inactive": srv.state.InactiveSlots(),
	})
}

func (srv *Server) handleSignOffAll(c *gin.Context) {
	srv.state.SignOffAll()
	srv.log.Info().Msg("signed off all players")
	c.Redirect(http.StatusFound, "/admin")
}

// bindWrapped decodes the engine's double-encoded payloads: the body is a
// JSON string whose content is the JSON object. A bare object is accepted
// too.
func bindWrapped(c *gin.Context, v any) error {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return err
		}
		return json.Unmarshal([]byte(inner), v)
	}
	return json.Unmarshal(raw, v)
}
