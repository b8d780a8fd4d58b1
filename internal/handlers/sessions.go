package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/drawparty/internal/game"
	"github.com/mossy-p/drawparty/internal/store"
)

// API bundles the injected dependencies of the HTTP and WebSocket surface.
// The store is passed in explicitly; there is no process-wide singleton.
type API struct {
	Store  store.SessionStore
	Engine *game.Engine
}

// SessionSummary is the lobby-listing view of a session.
type SessionSummary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	PlayerCount int            `json:"playerCount"`
	MaxPlayers  int            `json:"maxPlayers"`
	GameState   game.GameState `json:"gameState"`
	HasPassword bool           `json:"hasPassword"`
}

// ListSessions returns every valid, non-expired session (public).
func (a *API) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()
	ids, err := a.Store.ListIDs(ctx)
	if err != nil {
		log.Error().Err(err).Msg("listing sessions")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Session list unavailable"})
		return
	}

	summaries := make([]SessionSummary, 0, len(ids))
	for _, id := range ids {
		s, err := a.Store.Read(ctx, id)
		if err != nil || s == nil {
			// Expired or gone between listing and reading.
			continue
		}
		summaries = append(summaries, SessionSummary{
			ID:          s.ID,
			Name:        s.Name,
			PlayerCount: len(s.Players),
			MaxPlayers:  s.Settings.MaxPlayers,
			GameState:   s.GameState,
			HasPassword: s.Password != "",
		})
	}
	c.JSON(http.StatusOK, summaries)
}

// GetSession returns one session's lobby summary (public).
func (a *API) GetSession(c *gin.Context) {
	s, err := a.Store.Read(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Session unavailable"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, SessionSummary{
		ID:          s.ID,
		Name:        s.Name,
		PlayerCount: len(s.Players),
		MaxPlayers:  s.Settings.MaxPlayers,
		GameState:   s.GameState,
		HasPassword: s.Password != "",
	})
}
