package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mossy-p/drawparty/internal/game"
	"github.com/mossy-p/drawparty/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

const opTimeout = 5 * time.Second

// clientMessage is the inbound WebSocket protocol. Chat text doubles as a
// guess while a game is running.
type clientMessage struct {
	Type     string              `json:"type"` // ready | start | chat | draw | settings
	Text     string              `json:"text,omitempty"`
	Drawing  *game.DrawingEvent  `json:"drawing,omitempty"`
	Settings *game.SettingsPatch `json:"settings,omitempty"`
}

// serverFrame is used for the welcome and error frames; domain events are
// sent as-is.
type serverFrame struct {
	Type     string        `json:"type"`
	Error    string        `json:"error,omitempty"`
	Session  *game.Session `json:"session,omitempty"`
	PlayerID string        `json:"playerId,omitempty"`
}

// wsClient is one player's connection, pumping coordinator events out and
// client messages in.
type wsClient struct {
	conn    *websocket.Conn
	coord   *session.Coordinator
	send    chan []byte
	limiter *rate.Limiter
}

// CreateSessionWS creates a session and attaches the creator (requires JWT).
func (a *API) CreateSessionWS(c *gin.Context) {
	playerID := c.GetString("player_id")
	playerName := c.GetString("player_name")
	sessionName := c.Query("sessionName")
	if sessionName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionName is required"})
		return
	}
	password := c.Query("password")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("upgrading connection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	coord, err := session.Create(ctx, a.Store, a.Engine, playerID, playerName, sessionName, password)
	cancel()
	if err != nil {
		closeWithError(conn, err)
		return
	}
	log.Info().Str("session", coord.Session().ID).Str("player", playerName).Msg("session created")
	newWSClient(conn, coord).run()
}

// JoinSessionWS joins an existing session (public).
func (a *API) JoinSessionWS(c *gin.Context) {
	sessionID := c.Param("sessionId")
	playerName := c.Query("playerName")
	if playerName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "playerName is required"})
		return
	}
	password := c.Query("password")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("upgrading connection")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	coord, err := session.Join(ctx, a.Store, a.Engine, sessionID, playerName, password)
	cancel()
	if err != nil {
		closeWithError(conn, err)
		return
	}
	log.Info().Str("session", sessionID).Str("player", playerName).Msg("player joined")
	newWSClient(conn, coord).run()
}

func newWSClient(conn *websocket.Conn, coord *session.Coordinator) *wsClient {
	return &wsClient{
		conn:  conn,
		coord: coord,
		send:  make(chan []byte, 256),
		// Generous enough for drawing strokes, tight enough to stop
		// guess flooding.
		limiter: rate.NewLimiter(rate.Limit(30), 60),
	}
}

func (w *wsClient) run() {
	w.enqueueFrame(serverFrame{
		Type:     "welcome",
		Session:  redactSession(w.coord.Session(), w.coord.PlayerID()),
		PlayerID: w.coord.PlayerID(),
	})

	go w.writePump()
	go w.eventPump()
	w.readPump()
}

// readPump consumes client messages until the connection drops, then leaves
// the session on the player's behalf.
func (w *wsClient) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		if err := w.coord.Leave(ctx); err != nil {
			log.Warn().Err(err).Str("player", w.coord.PlayerID()).Msg("leaving session")
		}
		cancel()
		w.conn.Close()
	}()

	w.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("websocket read")
			}
			return
		}
		if !w.limiter.Allow() {
			continue
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			w.enqueueFrame(serverFrame{Type: "error", Error: "malformed message"})
			continue
		}
		w.handle(msg)
	}
}

func (w *wsClient) handle(msg clientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case "ready":
		err = w.coord.ToggleReady(ctx)
	case "start":
		err = w.coord.StartGame(ctx)
	case "chat":
		if msg.Text != "" {
			_, err = w.coord.SubmitGuess(ctx, msg.Text)
		}
	case "draw":
		if msg.Drawing != nil {
			err = w.coord.SubmitDrawing(ctx, *msg.Drawing)
		}
	case "settings":
		if msg.Settings != nil {
			err = w.coord.UpdateSettings(ctx, *msg.Settings)
		}
	default:
		w.enqueueFrame(serverFrame{Type: "error", Error: "unknown message type: " + msg.Type})
	}
	if err != nil {
		w.enqueueFrame(serverFrame{Type: "error", Error: err.Error()})
	}
}

// eventPump forwards coordinator events to the socket until the coordinator
// closes.
func (w *wsClient) eventPump() {
	for ev := range w.coord.Events() {
		ev.Session = redactSession(ev.Session, w.coord.PlayerID())
		data, err := json.Marshal(ev)
		if err != nil {
			log.Error().Err(err).Msg("marshaling event")
			continue
		}
		select {
		case w.send <- data:
		default:
			log.Warn().Str("player", w.coord.PlayerID()).Msg("send buffer full, dropping event")
		}
		if ev.Type == game.EventSessionDeleted {
			w.conn.Close()
			return
		}
	}
	w.conn.Close()
}

func (w *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case message, ok := <-w.send:
			w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				w.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (w *wsClient) enqueueFrame(frame serverFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case w.send <- data:
	default:
	}
}

// closeWithError reports a create/join failure as one frame, then closes.
func closeWithError(conn *websocket.Conn, err error) {
	frame, _ := json.Marshal(serverFrame{Type: "error", Error: err.Error()})
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	conn.WriteMessage(websocket.TextMessage, frame)
	conn.Close()
}

// redactSession hides fields a viewer must not see: the password always,
// and the topic from everyone but the drawer while a turn is running.
func redactSession(s *game.Session, viewerID string) *game.Session {
	if s == nil {
		return nil
	}
	out := s.Clone()
	out.Password = ""
	if out.GameState == game.StatePlaying && out.CurrentDrawer != viewerID {
		out.CurrentTopic = nil
	}
	return out
}
