package game

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTopics() TopicTable {
	return TopicTable{
		"animals": {
			{DisplayName: "cat", AnswerNames: []string{"cat", "ねこ"}},
		},
		"food": {
			{DisplayName: "pizza", AnswerNames: []string{"pizza"}},
		},
	}
}

func testEngine() *Engine {
	return NewEngineSeeded(testTopics(), 1)
}

// readyLobby builds a session with the given players, all ready, host first.
func readyLobby(e *Engine, names ...string) *Session {
	s := e.CreateSession("", names[0], "test session", "")
	for _, name := range names[1:] {
		var err error
		s, _, err = e.Join(s, name, "")
		if err != nil {
			panic(err)
		}
	}
	for _, p := range s.Players {
		s = e.ToggleReady(s, p.ID)
	}
	return s
}

func TestCreateSession(t *testing.T) {
	e := testEngine()
	s := e.CreateSession("", "Alice", "friday night", "hunter2")

	assert.Equal(t, StateWaiting, s.GameState)
	assert.Equal(t, 1, s.Round)
	assert.Equal(t, 1, s.Turn)
	assert.Empty(t, s.UsedDrawers)
	require.Len(t, s.Players, 1)
	assert.True(t, s.Players[0].IsHost)
	assert.Equal(t, "Alice", s.Players[0].Name)
	assert.False(t, s.Players[0].IsReady)
	assert.Equal(t, "hunter2", s.Password)
}

func TestJoinFailures(t *testing.T) {
	e := testEngine()

	tests := []struct {
		name    string
		setup   func() *Session
		player  string
		pass    string
		wantErr error
	}{
		{
			name:    "wrong password",
			setup:   func() *Session { return e.CreateSession("", "Alice", "s", "secret") },
			player:  "Bob",
			pass:    "wrong",
			wantErr: ErrWrongPassword,
		},
		{
			name: "game in progress",
			setup: func() *Session {
				s := readyLobby(e, "Alice", "Bob")
				s, err := e.StartGame(s, s.Host().ID)
				if err != nil {
					panic(err)
				}
				return s
			},
			player:  "Carol",
			wantErr: ErrGameInProgress,
		},
		{
			name: "session full",
			setup: func() *Session {
				s := e.CreateSession("", "Alice", "s", "")
				s.Settings.MaxPlayers = 1
				return s
			},
			player:  "Bob",
			wantErr: ErrSessionFull,
		},
		{
			name:    "name taken",
			setup:   func() *Session { return e.CreateSession("", "Alice", "s", "") },
			player:  "Alice",
			wantErr: ErrNameTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.setup()
			before := len(s.Players)
			_, _, err := e.Join(s, tt.player, tt.pass)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Len(t, s.Players, before, "failed join must not mutate the snapshot")
		})
	}
}

func TestJoinAppendsNonHostNonReadyPlayer(t *testing.T) {
	e := testEngine()
	s := e.CreateSession("", "Alice", "s", "")

	next, bob, err := e.Join(s, "Bob", "")
	require.NoError(t, err)
	require.Len(t, next.Players, 2)
	assert.False(t, bob.IsHost)
	assert.False(t, bob.IsReady)
	assert.Equal(t, 0, bob.Score)
	assert.Len(t, s.Players, 1, "join must not mutate the input snapshot")
}

func TestStartGame(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")

	started, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, started.GameState)
	assert.Len(t, started.Players, 2)
	require.NotNil(t, started.FindPlayer(started.CurrentDrawer), "drawer must be a roster member")
	assert.NotNil(t, started.CurrentTopic)
	assert.Equal(t, []string{started.CurrentDrawer}, started.UsedDrawers)
}

func TestStartGameFailures(t *testing.T) {
	e := testEngine()

	t.Run("not host", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		_, err := e.StartGame(s, s.Players[1].ID)
		assert.ErrorIs(t, err, ErrNotHost)
		assert.Equal(t, StateWaiting, s.GameState)
	})

	t.Run("single player", func(t *testing.T) {
		s := e.CreateSession("", "Alice", "s", "")
		s = e.ToggleReady(s, s.Players[0].ID)
		_, err := e.StartGame(s, s.Players[0].ID)
		assert.ErrorIs(t, err, ErrNotAllReady)
	})

	t.Run("player not ready", func(t *testing.T) {
		s := e.CreateSession("", "Alice", "s", "")
		s, _, _ = e.Join(s, "Bob", "")
		s = e.ToggleReady(s, s.Players[0].ID)
		_, err := e.StartGame(s, s.Players[0].ID)
		assert.ErrorIs(t, err, ErrNotAllReady)
		assert.Equal(t, StateWaiting, s.GameState)
	})
}

func TestRematchResetsScoresAndRequiresFreshReadiness(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")
	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)

	s.Players[0].Score = 30
	s = e.EndGame(s)
	assert.Equal(t, StateFinished, s.GameState)
	for _, p := range s.Players {
		assert.False(t, p.IsReady)
	}

	_, err = e.StartGame(s, s.Host().ID)
	assert.ErrorIs(t, err, ErrNotAllReady)

	for _, p := range s.Players {
		s = e.ToggleReady(s, p.ID)
	}
	s, err = e.StartGame(s, s.Host().ID)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, s.GameState)
	for _, p := range s.Players {
		assert.Equal(t, 0, p.Score)
	}
}

func TestTurnRotationCoversEveryPlayerPerRound(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob", "Carol")
	s.Settings.MaxRounds = 2
	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)

	seen := map[string]int{s.CurrentDrawer: 1}
	for i := 0; i < 2; i++ {
		s = e.NextTurn(s)
		require.Equal(t, StatePlaying, s.GameState)
		seen[s.CurrentDrawer]++
	}
	assert.Len(t, seen, 3, "every player draws exactly once in round one")
	assert.Equal(t, 1, s.Round)

	s = e.NextTurn(s)
	assert.Equal(t, 2, s.Round, "used drawers reset when the round completes")
	assert.Len(t, s.UsedDrawers, 1)
}

func TestGameEndsAfterMaxRounds(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")
	s.Settings.MaxRounds = 1
	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)

	s = e.NextTurn(s)
	require.Equal(t, StatePlaying, s.GameState, "second player still draws in round one")

	s = e.NextTurn(s)
	assert.Equal(t, StateFinished, s.GameState)
	assert.Empty(t, s.CurrentDrawer)
	assert.Nil(t, s.CurrentTopic)
}

func TestRoundNeverDecreases(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")
	s.Settings.MaxRounds = 3
	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)

	prev := s.Round
	for s.GameState == StatePlaying {
		s = e.NextTurn(s)
		assert.GreaterOrEqual(t, s.Round, prev)
		prev = s.Round
	}
	assert.Equal(t, StateFinished, s.GameState)
}

func TestUsedDrawersSubsetOfRoster(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob", "Carol")
	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)

	s, deleted := e.Leave(s, s.CurrentDrawer)
	require.False(t, deleted)
	for _, id := range s.UsedDrawers {
		assert.NotNil(t, s.FindPlayer(id))
	}
}

func TestCheckAnswer(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")
	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)
	s.CurrentTopic = &Topic{DisplayName: "cat", AnswerNames: []string{"cat", "ねこ"}}

	var guesser string
	for _, p := range s.Players {
		if p.ID != s.CurrentDrawer {
			guesser = p.ID
		}
	}

	tests := []struct {
		name    string
		text    string
		correct bool
	}{
		{"exact match", "cat", true},
		{"trimmed and case-folded", "  CAT  ", true},
		{"guess contains answer", "a cat!", true},
		{"answer contains guess", "ca", true},
		{"hiragana accepted answer", " ねこ ", true},
		{"katakana not folded to hiragana", " ネコ ", false},
		{"miss", "dog", false},
		{"empty after trim", "   ", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, res := e.CheckAnswer(s, guesser, tt.text)
			assert.Equal(t, tt.correct, res.Correct)
			if tt.correct {
				assert.Equal(t, "cat", res.AnswerName)
				assert.Equal(t, s.Settings.CorrectAnswerPoints, next.FindPlayer(guesser).Score)
				assert.Equal(t, s.Settings.DrawerPoints, next.FindPlayer(s.CurrentDrawer).Score)
			} else {
				assert.Equal(t, 0, next.FindPlayer(guesser).Score)
			}
		})
	}
}

func TestCheckAnswerNeverAwardsOutsidePlay(t *testing.T) {
	e := testEngine()

	t.Run("waiting session", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		_, res := e.CheckAnswer(s, s.Players[1].ID, "cat")
		assert.False(t, res.Correct)
	})

	t.Run("no current topic", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		s, err := e.StartGame(s, s.Host().ID)
		require.NoError(t, err)
		s.CurrentTopic = nil
		_, res := e.CheckAnswer(s, s.Players[1].ID, "cat")
		assert.False(t, res.Correct)
	})

	t.Run("drawer guessing own topic", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		s, err := e.StartGame(s, s.Host().ID)
		require.NoError(t, err)
		s.CurrentTopic = &Topic{DisplayName: "cat", AnswerNames: []string{"cat"}}
		next, res := e.CheckAnswer(s, s.CurrentDrawer, "cat")
		assert.False(t, res.Correct)
		assert.Equal(t, 0, next.FindPlayer(s.CurrentDrawer).Score)
	})

	t.Run("second correct guess after resolution", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob", "Carol")
		s, err := e.StartGame(s, s.Host().ID)
		require.NoError(t, err)
		s.CurrentTopic = &Topic{DisplayName: "cat", AnswerNames: []string{"cat"}}

		var guessers []string
		for _, p := range s.Players {
			if p.ID != s.CurrentDrawer {
				guessers = append(guessers, p.ID)
			}
		}
		s, res := e.CheckAnswer(s, guessers[0], "cat")
		require.True(t, res.Correct)
		next, res := e.CheckAnswer(s, guessers[1], "cat")
		assert.False(t, res.Correct, "turn already resolved")
		assert.Equal(t, 0, next.FindPlayer(guessers[1]).Score)
	})

	t.Run("unknown player", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		s, err := e.StartGame(s, s.Host().ID)
		require.NoError(t, err)
		_, res := e.CheckAnswer(s, "nobody", "cat")
		assert.False(t, res.Correct)
	})
}

func TestEmptyTopicPoolLeavesTopicUnset(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")
	s.Settings.SelectedThemes = []string{"no-such-theme"}

	s, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, s.GameState)
	assert.Nil(t, s.CurrentTopic)

	_, res := e.CheckAnswer(s, s.Players[1].ID, "cat")
	assert.False(t, res.Correct)
}

func TestLeaveSession(t *testing.T) {
	e := testEngine()

	t.Run("host leaving promotes next in roster order", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob", "Carol")
		hostID := s.Host().ID
		next, deleted := e.Leave(s, hostID)
		require.False(t, deleted)
		require.Len(t, next.Players, 2)
		assert.True(t, next.Players[0].IsHost)
		assert.Equal(t, "Bob", next.Players[0].Name)
		hosts := 0
		for _, p := range next.Players {
			if p.IsHost {
				hosts++
			}
		}
		assert.Equal(t, 1, hosts)
	})

	t.Run("last player leaving deletes the session", func(t *testing.T) {
		s := e.CreateSession("", "Alice", "s", "")
		next, deleted := e.Leave(s, s.Players[0].ID)
		assert.True(t, deleted)
		assert.Empty(t, next.Players)
	})

	t.Run("leaving twice is a no-op the second time", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		gone := s.Players[1].ID
		next, deleted := e.Leave(s, gone)
		require.False(t, deleted)
		again, deleted := e.Leave(next, gone)
		assert.False(t, deleted)
		assert.Equal(t, next.Players, again.Players)
	})

	t.Run("drawer leaving mid-game advances the turn", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob", "Carol")
		s, err := e.StartGame(s, s.Host().ID)
		require.NoError(t, err)
		drawer := s.CurrentDrawer
		turn := s.Turn
		next, deleted := e.Leave(s, drawer)
		require.False(t, deleted)
		assert.Equal(t, StatePlaying, next.GameState)
		assert.NotEqual(t, drawer, next.CurrentDrawer)
		assert.Equal(t, turn+1, next.Turn)
	})

	t.Run("dropping below two players ends the game", func(t *testing.T) {
		s := readyLobby(e, "Alice", "Bob")
		s, err := e.StartGame(s, s.Host().ID)
		require.NoError(t, err)
		next, deleted := e.Leave(s, s.Players[1].ID)
		require.False(t, deleted)
		assert.Equal(t, StateFinished, next.GameState)
	})
}

func TestToggleReadyUnknownPlayerIsNoOp(t *testing.T) {
	e := testEngine()
	s := e.CreateSession("", "Alice", "s", "")
	next := e.ToggleReady(s, "nobody")
	assert.Equal(t, s.Players, next.Players)
}

func TestUpdateSettings(t *testing.T) {
	e := testEngine()
	s := readyLobby(e, "Alice", "Bob")

	rounds := 5
	themes := []string{"food"}
	next, err := e.UpdateSettings(s, s.Host().ID, SettingsPatch{
		MaxRounds:      &rounds,
		SelectedThemes: &themes,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, next.Settings.MaxRounds)
	assert.Equal(t, []string{"food"}, next.Settings.SelectedThemes)
	assert.Equal(t, s.Settings.MaxPlayers, next.Settings.MaxPlayers, "unpatched fields keep their values")

	_, err = e.UpdateSettings(s, s.Players[1].ID, SettingsPatch{MaxRounds: &rounds})
	assert.ErrorIs(t, err, ErrNotHost)

	playing, err := e.StartGame(s, s.Host().ID)
	require.NoError(t, err)
	_, err = e.UpdateSettings(playing, playing.Host().ID, SettingsPatch{MaxRounds: &rounds})
	assert.ErrorIs(t, err, ErrGameInProgress)
}

func TestAppendChatCapsRetention(t *testing.T) {
	s := &Session{}
	for i := 0; i < 130; i++ {
		s.AppendChat(ChatMessage{Message: "msg"})
	}
	assert.Len(t, s.ChatMessages, 100)
}

func TestConcurrentSessionsShareOneEngine(t *testing.T) {
	e := testEngine()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := readyLobby(e, "Alice", "Bob", "Cara")
			s, err := e.StartGame(s, s.Host().ID)
			if err != nil {
				t.Error(err)
				return
			}
			for s.GameState == StatePlaying {
				s = e.NextTurn(s)
			}
			assert.Equal(t, StateFinished, s.GameState)
		}()
	}
	wg.Wait()
}

func TestCreateSessionKeepsIssuedHostID(t *testing.T) {
	e := testEngine()

	s := e.CreateSession("issued-at-login", "Alice", "s", "")
	assert.Equal(t, "issued-at-login", s.Players[0].ID)

	minted := e.CreateSession("", "Alice", "s", "")
	assert.NotEmpty(t, minted.Players[0].ID)
}
