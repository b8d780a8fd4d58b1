// Package session binds the pure turn engine to persistence, timers, and
// change notifications for one connected player. There is no central
// arbiter: every client runs its own coordinator against the shared store
// and the store's record-replace semantics decide concurrent writers
// last-writer-wins.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/drawparty/internal/game"
	"github.com/mossy-p/drawparty/internal/store"
)

var ErrSessionNotFound = errors.New("session not found")

// turnResolveDelay is how long a resolved turn lingers before the next one
// starts, so clients can show the answer.
const turnResolveDelay = 3 * time.Second

const eventBuffer = 64

// Coordinator owns the local authoritative view of one session for one
// player. All mutations follow the same shape: compute the next snapshot
// with the engine, apply it locally, persist it as a full-record write, and
// fan the resulting events out to the local subscriber.
type Coordinator struct {
	st     store.SessionStore
	engine *game.Engine

	playerID string

	mu        sync.Mutex
	session   *game.Session
	events    chan game.Event
	timer     *time.Timer
	timerTurn int
	unsub     store.Unsubscribe
	closed    bool

	resolveDelay time.Duration
}

// Create builds a new session with the given host and registers the
// coordinator as its first client. hostID carries the identity issued at
// login so the player keeps the same id in-session.
func Create(ctx context.Context, st store.SessionStore, engine *game.Engine, hostID, hostName, sessionName, password string) (*Coordinator, error) {
	s := engine.CreateSession(hostID, hostName, sessionName, password)
	c := newCoordinator(st, engine, s, s.Players[0].ID)
	if err := st.Write(ctx, s); err != nil {
		return nil, err
	}
	if err := c.attach(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Join adds a player to an existing session and returns their coordinator.
func Join(ctx context.Context, st store.SessionStore, engine *game.Engine, sessionID, playerName, password string) (*Coordinator, error) {
	current, err := st.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrSessionNotFound
	}
	next, player, err := engine.Join(current, playerName, password)
	if err != nil {
		return nil, err
	}
	c := newCoordinator(st, engine, next, player.ID)
	if err := st.Write(ctx, next); err != nil {
		return nil, err
	}
	if err := c.attach(ctx); err != nil {
		return nil, err
	}
	c.emit(game.Event{
		Type:       game.EventPlayerJoined,
		Session:    next.Clone(),
		PlayerID:   player.ID,
		PlayerName: player.Name,
	})
	return c, nil
}

func newCoordinator(st store.SessionStore, engine *game.Engine, s *game.Session, playerID string) *Coordinator {
	return &Coordinator{
		st:           st,
		engine:       engine,
		playerID:     playerID,
		session:      s.Clone(),
		events:       make(chan game.Event, eventBuffer),
		resolveDelay: turnResolveDelay,
	}
}

// attach starts the sync bridge for this coordinator's session.
func (c *Coordinator) attach(ctx context.Context) error {
	bridge := &SyncBridge{coordinator: c}
	unsub, err := c.st.Subscribe(ctx, c.session.ID, bridge.OnChange)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.unsub = unsub
	c.mu.Unlock()
	return nil
}

// Events is the stream of domain events for the local UI. The channel is
// buffered; a subscriber that stops draining loses events rather than
// blocking the session.
func (c *Coordinator) Events() <-chan game.Event {
	return c.events
}

// Session returns a snapshot of the current local view.
func (c *Coordinator) Session() *game.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// PlayerID identifies the local player this coordinator serves.
func (c *Coordinator) PlayerID() string {
	return c.playerID
}

// ToggleReady flips the local player's readiness.
func (c *Coordinator) ToggleReady(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	next := c.engine.ToggleReady(c.session, c.playerID)
	c.session = next
	c.mu.Unlock()

	err := c.persist(ctx, next)
	c.emit(game.Event{Type: game.EventPlayerReady, Session: next.Clone(), PlayerID: c.playerID})
	return err
}

// StartGame begins play and arms the first turn timer.
func (c *Coordinator) StartGame(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	next, err := c.engine.StartGame(c.session, c.playerID)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.session = next
	c.startTurnTimerLocked()
	c.mu.Unlock()

	werr := c.persist(ctx, next)
	c.emit(game.Event{Type: game.EventGameStarted, Session: next.Clone()})
	c.emit(game.Event{Type: game.EventTurnStarted, Session: next.Clone(), PlayerID: next.CurrentDrawer})
	return werr
}

// SubmitGuess records a chat message, evaluates it as a guess, and on a
// correct answer resolves the turn: the timer is cancelled, points are
// persisted, and the next turn is scheduled after the resolve delay.
func (c *Coordinator) SubmitGuess(ctx context.Context, text string) (game.AnswerResult, error) {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return game.AnswerResult{}, ErrSessionNotFound
	}
	next, result := c.engine.CheckAnswer(c.session, c.playerID, text)

	var playerName string
	if p := next.FindPlayer(c.playerID); p != nil {
		playerName = p.Name
	}
	msg := game.ChatMessage{
		ID:         uuid.NewString(),
		PlayerID:   c.playerID,
		PlayerName: playerName,
		Message:    text,
		Timestamp:  time.Now(),
		IsCorrect:  result.Correct,
	}
	next.AppendChat(msg)
	c.session = next

	resolvedTurn := next.Turn
	if result.Correct {
		c.cancelTimerLocked()
	}
	c.mu.Unlock()

	err := c.persist(ctx, next)
	c.emit(game.Event{Type: game.EventChat, Session: next.Clone(), Chat: &msg})
	if result.Correct {
		c.emit(game.Event{
			Type:       game.EventCorrectAnswer,
			Session:    next.Clone(),
			PlayerID:   c.playerID,
			PlayerName: playerName,
			Answer:     result.AnswerName,
		})
		time.AfterFunc(c.resolveDelay, func() {
			c.advanceTurn(resolvedTurn, "")
		})
	}
	return result, err
}

// SubmitDrawing relays a canvas update through the session record.
func (c *Coordinator) SubmitDrawing(ctx context.Context, ev game.DrawingEvent) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	if c.session.GameState != game.StatePlaying || c.session.CurrentDrawer != c.playerID {
		c.mu.Unlock()
		return game.ErrNotDrawer
	}
	next := c.session.Clone()
	next.CurrentDrawing = &ev
	c.session = next
	c.mu.Unlock()

	err := c.persist(ctx, next)
	c.emit(game.Event{Type: game.EventDrawing, Session: next.Clone(), Drawing: &ev})
	return err
}

// UpdateSettings applies a host-only settings patch.
func (c *Coordinator) UpdateSettings(ctx context.Context, patch game.SettingsPatch) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return ErrSessionNotFound
	}
	next, err := c.engine.UpdateSettings(c.session, c.playerID, patch)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.session = next
	c.mu.Unlock()

	werr := c.persist(ctx, next)
	c.emit(game.Event{Type: game.EventSettingsUpdated, Session: next.Clone()})
	return werr
}

// Leave removes the local player and releases the coordinator. The last
// player out deletes the session record.
func (c *Coordinator) Leave(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		c.Close()
		return nil
	}
	oldHost := c.session.Host()
	next, deleted := c.engine.Leave(c.session, c.playerID)
	sessionID := c.session.ID
	c.session = next
	c.mu.Unlock()

	var err error
	if deleted {
		err = c.st.Remove(ctx, sessionID)
		if err != nil {
			log.Error().Err(err).Str("session", sessionID).Msg("removing empty session")
		}
	} else {
		err = c.persist(ctx, next)
		c.emit(game.Event{Type: game.EventPlayerLeft, Session: next.Clone(), PlayerID: c.playerID})
		if newHost := next.Host(); newHost != nil && oldHost != nil && newHost.ID != oldHost.ID {
			c.emit(game.Event{Type: game.EventHostChanged, Session: next.Clone(), PlayerID: newHost.ID, PlayerName: newHost.Name})
		}
	}
	c.Close()
	return err
}

// Close cancels the turn timer and releases the store subscription. Safe to
// call more than once.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelTimerLocked()
	unsub := c.unsub
	c.unsub = nil
	close(c.events)
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// persist writes the snapshot through the store. Failures are logged and
// reported to the caller; the local view keeps the applied state so the
// client degrades to cached data instead of crashing.
func (c *Coordinator) persist(ctx context.Context, s *game.Session) error {
	if err := c.st.Write(ctx, s); err != nil {
		log.Warn().Err(err).Str("session", s.ID).Msg("session write failed, continuing on cached state")
		return err
	}
	return nil
}

func (c *Coordinator) emit(ev game.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked(ev)
}

func (c *Coordinator) emitLocked(ev game.Event) {
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		log.Warn().Str("event", string(ev.Type)).Msg("event buffer full, dropping")
	}
}

// startTurnTimerLocked arms the single-shot turn timer for the current
// turn, cancelling any prior one first. At most one timer is ever in
// flight per coordinator.
func (c *Coordinator) startTurnTimerLocked() {
	c.cancelTimerLocked()
	if c.session == nil || c.session.GameState != game.StatePlaying {
		return
	}
	limit := time.Duration(c.session.Settings.TimeLimitSeconds) * time.Second
	if limit <= 0 {
		return
	}
	turn := c.session.Turn
	c.timerTurn = turn
	c.timer = time.AfterFunc(limit, func() {
		c.advanceTurn(turn, game.EventTurnTimeout)
	})
}

func (c *Coordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerTurn = 0
}

// advanceTurn moves the game to the next turn, provided the session is
// still on the turn the advance was scheduled for. A timeout or resolve
// delay that fires after the session has already moved on is a no-op, as is
// a timeout landing inside the resolve window of a turn another client
// already closed with a correct answer.
func (c *Coordinator) advanceTurn(fromTurn int, cause game.EventType) {
	c.mu.Lock()
	if c.closed || c.session == nil || c.session.GameState != game.StatePlaying || c.session.Turn != fromTurn {
		c.mu.Unlock()
		return
	}
	if cause == game.EventTurnTimeout && c.session.TurnResolved {
		c.mu.Unlock()
		return
	}
	next := c.engine.NextTurn(c.session)
	c.session = next
	if cause != "" {
		c.emitLocked(game.Event{Type: cause, Session: next.Clone()})
	}
	if next.GameState == game.StateFinished {
		c.cancelTimerLocked()
		c.emitLocked(game.Event{Type: game.EventGameFinished, Session: next.Clone()})
	} else {
		c.startTurnTimerLocked()
		c.emitLocked(game.Event{Type: game.EventTurnStarted, Session: next.Clone(), PlayerID: next.CurrentDrawer})
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.persist(ctx, next)
}
