package game

// EventType tags a domain event emitted by the coordinator.
type EventType string

const (
	EventPlayerJoined    EventType = "playerJoined"
	EventPlayerLeft      EventType = "playerLeft"
	EventHostChanged     EventType = "hostChanged"
	EventPlayerReady     EventType = "playerReady"
	EventGameStarted     EventType = "gameStarted"
	EventTurnStarted     EventType = "turnStarted"
	EventCorrectAnswer   EventType = "correctAnswer"
	EventTurnTimeout     EventType = "turnTimeout"
	EventGameFinished    EventType = "gameFinished"
	EventSettingsUpdated EventType = "settingsUpdated"
	EventChat            EventType = "chat"
	EventDrawing         EventType = "drawing"
	EventSessionUpdated  EventType = "sessionUpdated"
	EventSessionDeleted  EventType = "sessionDeleted"
)

// Event is the closed set of session happenings delivered to subscribers.
// Session carries the snapshot after the event took effect; the remaining
// fields are set only where they apply.
type Event struct {
	Type       EventType     `json:"type"`
	Session    *Session      `json:"session,omitempty"`
	PlayerID   string        `json:"playerId,omitempty"`
	PlayerName string        `json:"playerName,omitempty"`
	Answer     string        `json:"answer,omitempty"`
	Chat       *ChatMessage  `json:"chat,omitempty"`
	Drawing    *DrawingEvent `json:"drawing,omitempty"`
}
