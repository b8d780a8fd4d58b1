package game

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine holds the pure turn-rotation logic. Every operation takes a session
// snapshot and returns a new one; the engine never performs I/O. Persistence
// and timers belong to the coordinator. One engine is shared by every
// connection, so access to the rand source is serialized.
type Engine struct {
	topics TopicTable

	rngMu sync.Mutex
	rng   *rand.Rand
}

func (e *Engine) intn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

// NewEngine builds an engine over the given topic table.
func NewEngine(topics TopicTable) *Engine {
	return NewEngineSeeded(topics, time.Now().UnixNano())
}

// NewEngineSeeded builds an engine with a fixed random seed, for
// deterministic drawer and topic selection in tests.
func NewEngineSeeded(topics TopicTable, seed int64) *Engine {
	return &Engine{topics: topics, rng: rand.New(rand.NewSource(seed))}
}

// CreateSession builds a fresh session owned by a single host player. The
// host keeps the identity issued at login; an empty hostID mints one.
func (e *Engine) CreateSession(hostID, hostName, sessionName, password string) *Session {
	if hostID == "" {
		hostID = uuid.NewString()
	}
	host := Player{
		ID:     hostID,
		Name:   hostName,
		IsHost: true,
	}
	return &Session{
		ID:        uuid.NewString(),
		Name:      sessionName,
		Password:  password,
		Players:   []Player{host},
		GameState: StateWaiting,
		Settings:  DefaultSettings(),
		Round:     1,
		Turn:      1,
	}
}

// Join adds a new non-host, non-ready player to the session.
func (e *Engine) Join(s *Session, playerName, password string) (*Session, Player, error) {
	if s.Password != "" && s.Password != password {
		return nil, Player{}, ErrWrongPassword
	}
	if s.GameState == StatePlaying {
		return nil, Player{}, ErrGameInProgress
	}
	if len(s.Players) >= s.Settings.MaxPlayers {
		return nil, Player{}, ErrSessionFull
	}
	for _, p := range s.Players {
		if p.Name == playerName {
			return nil, Player{}, ErrNameTaken
		}
	}
	next := s.Clone()
	player := Player{ID: uuid.NewString(), Name: playerName}
	next.Players = append(next.Players, player)
	return next, player, nil
}

// Leave removes a player. The second return value is true when the roster
// became empty and the session must be deleted. If the host left, the first
// remaining player is promoted. If the departing player was drawing, the
// turn advances immediately; if fewer than two players remain mid-game, the
// game ends.
func (e *Engine) Leave(s *Session, playerID string) (*Session, bool) {
	idx := -1
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.Clone(), false
	}

	next := s.Clone()
	wasHost := next.Players[idx].IsHost
	next.Players = append(next.Players[:idx], next.Players[idx+1:]...)
	if len(next.Players) == 0 {
		return next, true
	}
	if wasHost {
		next.Players[0].IsHost = true
	}

	used := next.UsedDrawers[:0]
	for _, id := range next.UsedDrawers {
		if id != playerID {
			used = append(used, id)
		}
	}
	next.UsedDrawers = used

	if next.GameState == StatePlaying {
		switch {
		case len(next.Players) < 2:
			next = e.EndGame(next)
		case next.CurrentDrawer == playerID:
			next = e.NextTurn(next)
		}
	}
	return next, false
}

// ToggleReady flips a player's readiness. Unknown players are a no-op.
func (e *Engine) ToggleReady(s *Session, playerID string) *Session {
	next := s.Clone()
	if p := next.FindPlayer(playerID); p != nil {
		p.IsReady = !p.IsReady
	}
	return next
}

// StartGame begins play. Only the host may start, at least two players must
// be present, and every player must be ready. Starting from a finished
// session is a rematch: scores reset along with the round bookkeeping.
func (e *Engine) StartGame(s *Session, hostID string) (*Session, error) {
	host := s.Host()
	if host == nil || host.ID != hostID {
		return nil, ErrNotHost
	}
	if s.GameState == StatePlaying {
		return nil, ErrGameInProgress
	}
	if len(s.Players) < 2 {
		return nil, ErrNotAllReady
	}
	for _, p := range s.Players {
		if !p.IsReady {
			return nil, ErrNotAllReady
		}
	}

	next := s.Clone()
	next.GameState = StatePlaying
	next.Round = 1
	next.Turn = 1
	next.TurnResolved = false
	next.UsedDrawers = nil
	next.CurrentDrawing = nil
	for i := range next.Players {
		next.Players[i].Score = 0
	}
	if e.selectNextDrawer(next) {
		return e.EndGame(next), nil
	}
	e.selectRandomTopic(next)
	return next, nil
}

// NextTurn advances to the next drawer and topic, ending the game once the
// final round is exhausted.
func (e *Engine) NextTurn(s *Session) *Session {
	next := s.Clone()
	next.Turn++
	next.TurnResolved = false
	next.CurrentDrawing = nil
	if e.selectNextDrawer(next) {
		return e.EndGame(next)
	}
	e.selectRandomTopic(next)
	return next
}

// EndGame finishes the session. Readiness is cleared so a rematch requires
// every player to ready up again.
func (e *Engine) EndGame(s *Session) *Session {
	next := s.Clone()
	next.GameState = StateFinished
	next.CurrentDrawer = ""
	next.CurrentTopic = nil
	next.CurrentDrawing = nil
	for i := range next.Players {
		next.Players[i].IsReady = false
	}
	return next
}

// AnswerResult is the outcome of evaluating one guess.
type AnswerResult struct {
	Correct    bool
	AnswerName string
}

// CheckAnswer evaluates a guess against the current topic. Guesses are
// trimmed and lower-cased, then matched by containment in either direction
// against each accepted answer. The drawer's own messages never score. On a
// correct guess the guesser and the drawer are awarded points; the caller is
// responsible for cancelling the turn timer and scheduling the next turn.
func (e *Engine) CheckAnswer(s *Session, playerID, text string) (*Session, AnswerResult) {
	if s.GameState != StatePlaying || s.CurrentTopic == nil || s.TurnResolved {
		return s.Clone(), AnswerResult{}
	}
	if playerID == s.CurrentDrawer || s.FindPlayer(playerID) == nil {
		return s.Clone(), AnswerResult{}
	}

	guess := normalizeAnswer(text)
	if guess == "" {
		return s.Clone(), AnswerResult{}
	}
	matched := false
	for _, name := range s.CurrentTopic.AnswerNames {
		accepted := normalizeAnswer(name)
		if accepted == "" {
			continue
		}
		if strings.Contains(accepted, guess) || strings.Contains(guess, accepted) {
			matched = true
			break
		}
	}
	if !matched {
		return s.Clone(), AnswerResult{}
	}

	next := s.Clone()
	next.TurnResolved = true
	if p := next.FindPlayer(playerID); p != nil {
		p.Score += next.Settings.CorrectAnswerPoints
	}
	if d := next.FindPlayer(next.CurrentDrawer); d != nil {
		d.Score += next.Settings.DrawerPoints
	}
	return next, AnswerResult{Correct: true, AnswerName: next.CurrentTopic.DisplayName}
}

// UpdateSettings merges a partial settings patch. Host only, and never while
// a game is running.
func (e *Engine) UpdateSettings(s *Session, hostID string, patch SettingsPatch) (*Session, error) {
	host := s.Host()
	if host == nil || host.ID != hostID {
		return nil, ErrNotHost
	}
	if s.GameState == StatePlaying {
		return nil, ErrGameInProgress
	}
	next := s.Clone()
	if patch.MaxRounds != nil {
		next.Settings.MaxRounds = *patch.MaxRounds
	}
	if patch.CorrectAnswerPoints != nil {
		next.Settings.CorrectAnswerPoints = *patch.CorrectAnswerPoints
	}
	if patch.DrawerPoints != nil {
		next.Settings.DrawerPoints = *patch.DrawerPoints
	}
	if patch.SelectedThemes != nil {
		next.Settings.SelectedThemes = append([]string(nil), (*patch.SelectedThemes)...)
	}
	if patch.TimeLimitSeconds != nil {
		next.Settings.TimeLimitSeconds = *patch.TimeLimitSeconds
	}
	if patch.MaxPlayers != nil {
		next.Settings.MaxPlayers = *patch.MaxPlayers
	}
	return next, nil
}

// selectNextDrawer picks the next drawer among players who have not drawn
// this round. When everyone has drawn, the round advances and the used set
// resets; past the final round it reports true and the caller must end the
// game. Mutates s in place.
func (e *Engine) selectNextDrawer(s *Session) (finished bool) {
	candidates := make([]int, 0, len(s.Players))
	for i := range s.Players {
		if !s.HasDrawn(s.Players[i].ID) {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		s.UsedDrawers = nil
		s.Round++
		if s.Round > s.Settings.MaxRounds {
			return true
		}
		for i := range s.Players {
			candidates = append(candidates, i)
		}
	}
	pick := s.Players[candidates[e.intn(len(candidates))]]
	s.CurrentDrawer = pick.ID
	s.UsedDrawers = append(s.UsedDrawers, pick.ID)
	return false
}

// selectRandomTopic draws a topic from the selected themes. An empty pool
// leaves the topic unset; the game proceeds and guesses are simply inert.
func (e *Engine) selectRandomTopic(s *Session) {
	pool := e.topics.pool(s.Settings.SelectedThemes)
	if len(pool) == 0 {
		s.CurrentTopic = nil
		return
	}
	topic := pool[e.intn(len(pool))]
	topic.AnswerNames = append([]string(nil), topic.AnswerNames...)
	s.CurrentTopic = &topic
}

// normalizeAnswer applies the documented matching normalization: whitespace
// trim plus Unicode lower-casing. No kana or width conversion.
func normalizeAnswer(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
