// Package store provides the session persistence capability: a keyed record
// per session with overwrite semantics, a 24-hour inactivity TTL, and change
// notifications so every connected client can follow remote writes.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/mossy-p/drawparty/internal/game"
)

// SessionTTL is how long a session stays valid after its last write.
const SessionTTL = 24 * time.Hour

// ErrUnavailable wraps transport or storage failures. Callers degrade to
// cached state instead of treating it as fatal.
var ErrUnavailable = errors.New("session store unavailable")

// Unsubscribe releases a change subscription.
type Unsubscribe func()

// SessionStore is the durable shared storage for session records. Write is
// an idempotent full-record overwrite; it is the only mutual-exclusion
// mechanism the design has, so concurrent writers race last-writer-wins.
type SessionStore interface {
	Write(ctx context.Context, session *game.Session) error
	// Read returns nil with no error when the session is absent or expired.
	Read(ctx context.Context, sessionID string) (*game.Session, error)
	Remove(ctx context.Context, sessionID string) error
	// ListIDs returns ids of valid, non-expired sessions only.
	ListIDs(ctx context.Context) ([]string, error)
	// Subscribe delivers every subsequent write for the session, nil when
	// the session is removed. The returned Unsubscribe must be called when
	// the subscriber leaves the session.
	Subscribe(ctx context.Context, sessionID string, onChange func(*game.Session)) (Unsubscribe, error)
}
