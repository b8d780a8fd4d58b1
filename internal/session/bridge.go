package session

import (
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/mossy-p/drawparty/internal/game"
)

// SyncBridge reconciles store change notifications into the coordinator's
// local session view. The store is the single source of truth: when a
// remote snapshot disagrees on game state, roster, or turn/round counters,
// it replaces the local view wholesale. Chat and drawing updates are
// accepted append-style without triggering a full replace.
type SyncBridge struct {
	coordinator *Coordinator
}

// OnChange handles one notification. A nil snapshot means the session was
// deleted.
func (b *SyncBridge) OnChange(remote *game.Session) {
	c := b.coordinator

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if remote == nil {
		log.Info().Str("player", c.playerID).Msg("session deleted remotely")
		c.cancelTimerLocked()
		c.session = nil
		c.emitLocked(game.Event{Type: game.EventSessionDeleted})
		c.mu.Unlock()
		return
	}

	local := c.session
	if local == nil {
		c.mu.Unlock()
		return
	}

	// Surface chat and drawing before deciding on a replace, so write
	// echoes and remote-only updates both reach the UI exactly once.
	newChats := unseenChats(local, remote)
	drawingChanged := remote.CurrentDrawing != nil && !sameDrawing(local.CurrentDrawing, remote.CurrentDrawing)

	if structurallyDiffers(local, remote) {
		replacement := remote.Clone()
		// The remote state is authoritative: a timer armed for a turn the
		// session has moved past is stale and must not fire, and a resolved
		// turn is waiting on the resolver's delay rather than a timeout.
		rearm := remote.GameState == game.StatePlaying && !remote.TurnResolved &&
			(local.GameState != game.StatePlaying || local.Turn != remote.Turn)
		if remote.GameState != game.StatePlaying || remote.TurnResolved || rearm {
			c.cancelTimerLocked()
		}
		c.session = replacement
		if rearm {
			c.startTurnTimerLocked()
		}
		c.emitLocked(game.Event{Type: game.EventSessionUpdated, Session: remote.Clone()})
	} else {
		// Same structure: fold in the append-style fields only.
		merged := local.Clone()
		merged.ChatMessages = append([]game.ChatMessage(nil), remote.ChatMessages...)
		merged.CurrentDrawing = remote.CurrentDrawing
		if remote.CurrentDrawing != nil {
			d := *remote.CurrentDrawing
			merged.CurrentDrawing = &d
		}
		c.session = merged
	}

	for i := range newChats {
		c.emitLocked(game.Event{Type: game.EventChat, Session: remote.Clone(), Chat: &newChats[i]})
	}
	if drawingChanged {
		d := *remote.CurrentDrawing
		c.emitLocked(game.Event{Type: game.EventDrawing, Session: remote.Clone(), Drawing: &d})
	}
	c.mu.Unlock()
}

// structurallyDiffers reports whether the remote snapshot disagrees with
// the local view on the fields that force a full replacement. Settings and
// the session name count: a merge that kept a stale copy of either would
// write it back on the peer's next mutation, silently undoing the host's
// update.
func structurallyDiffers(local, remote *game.Session) bool {
	if local.GameState != remote.GameState ||
		local.Name != remote.Name ||
		local.Round != remote.Round ||
		local.Turn != remote.Turn ||
		local.CurrentDrawer != remote.CurrentDrawer ||
		local.TurnResolved != remote.TurnResolved ||
		!sameSettings(local.Settings, remote.Settings) ||
		len(local.Players) != len(remote.Players) {
		return true
	}
	for i := range local.Players {
		lp, rp := local.Players[i], remote.Players[i]
		if lp.ID != rp.ID || lp.Score != rp.Score || lp.IsReady != rp.IsReady || lp.IsHost != rp.IsHost {
			return true
		}
	}
	return false
}

// unseenChats returns remote messages not yet present locally. Messages the
// local player submitted are already in the local log, so write echoes do
// not re-emit them.
func unseenChats(local, remote *game.Session) []game.ChatMessage {
	seen := make(map[string]struct{}, len(local.ChatMessages))
	for _, msg := range local.ChatMessages {
		seen[msg.ID] = struct{}{}
	}
	var fresh []game.ChatMessage
	for _, msg := range remote.ChatMessages {
		if _, ok := seen[msg.ID]; !ok {
			fresh = append(fresh, msg)
		}
	}
	return fresh
}

func sameSettings(a, b game.Settings) bool {
	return a.MaxRounds == b.MaxRounds &&
		a.CorrectAnswerPoints == b.CorrectAnswerPoints &&
		a.DrawerPoints == b.DrawerPoints &&
		a.TimeLimitSeconds == b.TimeLimitSeconds &&
		a.MaxPlayers == b.MaxPlayers &&
		slices.Equal(a.SelectedThemes, b.SelectedThemes)
}

func sameDrawing(a, b *game.DrawingEvent) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
