package game

import "time"

// GameState is the lifecycle phase of a session.
type GameState string

const (
	StateWaiting  GameState = "waiting"
	StatePlaying  GameState = "playing"
	StateFinished GameState = "finished"
)

// Player is one participant in a session.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	IsReady bool   `json:"isReady"`
	IsHost  bool   `json:"isHost"`
}

// Settings are the host-adjustable game parameters.
type Settings struct {
	MaxRounds           int      `json:"maxRounds"`
	CorrectAnswerPoints int      `json:"correctAnswerPoints"`
	DrawerPoints        int      `json:"drawerPoints"`
	SelectedThemes      []string `json:"selectedThemes"`
	TimeLimitSeconds    int      `json:"timeLimitSeconds"`
	MaxPlayers          int      `json:"maxPlayers"`
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	MaxRounds           *int      `json:"maxRounds,omitempty"`
	CorrectAnswerPoints *int      `json:"correctAnswerPoints,omitempty"`
	DrawerPoints        *int      `json:"drawerPoints,omitempty"`
	SelectedThemes      *[]string `json:"selectedThemes,omitempty"`
	TimeLimitSeconds    *int      `json:"timeLimitSeconds,omitempty"`
	MaxPlayers          *int      `json:"maxPlayers,omitempty"`
}

// Topic is a drawable word plus the guesses accepted for it.
type Topic struct {
	DisplayName string   `json:"displayName"`
	AnswerNames []string `json:"answerNames"`
}

// ChatMessage is one entry in the session's message log. IsCorrect is set
// when the message resolved the turn as a correct guess.
type ChatMessage struct {
	ID         string    `json:"id"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	IsCorrect  bool      `json:"isCorrect,omitempty"`
}

// DrawingEventType distinguishes stroke data from a canvas clear.
type DrawingEventType string

const (
	DrawingDraw  DrawingEventType = "draw"
	DrawingClear DrawingEventType = "clear"
)

// DrawingEvent is an opaque canvas update relayed between clients. The core
// never interprets the coordinates.
type DrawingEvent struct {
	Type      DrawingEventType `json:"type"`
	X         float64          `json:"x,omitempty"`
	Y         float64          `json:"y,omitempty"`
	PrevX     float64          `json:"prevX,omitempty"`
	PrevY     float64          `json:"prevY,omitempty"`
	Color     string           `json:"color,omitempty"`
	LineWidth float64          `json:"lineWidth,omitempty"`
	Opacity   float64          `json:"opacity,omitempty"`
}

// Session is the full shared state of one game, persisted as a single record.
type Session struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Password      string    `json:"password,omitempty"`
	Players       []Player  `json:"players"`
	GameState     GameState `json:"gameState"`
	Settings      Settings  `json:"settings"`
	Round         int       `json:"round"`
	Turn          int       `json:"turn"`
	CurrentDrawer string    `json:"currentDrawer,omitempty"`
	CurrentTopic  *Topic    `json:"currentTopic,omitempty"`
	// TurnResolved is set once a correct answer closed the current turn,
	// so further guesses in the resolve window cannot score again.
	TurnResolved   bool          `json:"turnResolved,omitempty"`
	UsedDrawers    []string      `json:"usedDrawers"`
	ChatMessages   []ChatMessage `json:"chatMessages"`
	CurrentDrawing *DrawingEvent `json:"currentDrawing,omitempty"`
}

// maxChatMessages is the retention cap for the session message log.
const maxChatMessages = 100

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		MaxRounds:           3,
		CorrectAnswerPoints: 10,
		DrawerPoints:        5,
		SelectedThemes:      []string{"animals", "food", "objects"},
		TimeLimitSeconds:    60,
		MaxPlayers:          8,
	}
}

// Clone returns a deep copy so engine operations never alias the caller's
// snapshot.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = append([]Player(nil), s.Players...)
	c.UsedDrawers = append([]string(nil), s.UsedDrawers...)
	c.ChatMessages = append([]ChatMessage(nil), s.ChatMessages...)
	c.Settings.SelectedThemes = append([]string(nil), s.Settings.SelectedThemes...)
	if s.CurrentTopic != nil {
		t := *s.CurrentTopic
		t.AnswerNames = append([]string(nil), s.CurrentTopic.AnswerNames...)
		c.CurrentTopic = &t
	}
	if s.CurrentDrawing != nil {
		d := *s.CurrentDrawing
		c.CurrentDrawing = &d
	}
	return &c
}

// FindPlayer returns the player with the given id, or nil.
func (s *Session) FindPlayer(playerID string) *Player {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return &s.Players[i]
		}
	}
	return nil
}

// Host returns the current host player, or nil if the roster is empty.
func (s *Session) Host() *Player {
	for i := range s.Players {
		if s.Players[i].IsHost {
			return &s.Players[i]
		}
	}
	return nil
}

// HasDrawn reports whether the player already drew in the current round.
func (s *Session) HasDrawn(playerID string) bool {
	for _, id := range s.UsedDrawers {
		if id == playerID {
			return true
		}
	}
	return false
}

// AppendChat adds a message to the log, dropping the oldest entries beyond
// the retention cap.
func (s *Session) AppendChat(msg ChatMessage) {
	s.ChatMessages = append(s.ChatMessages, msg)
	if n := len(s.ChatMessages); n > maxChatMessages {
		s.ChatMessages = append([]ChatMessage(nil), s.ChatMessages[n-maxChatMessages:]...)
	}
}
