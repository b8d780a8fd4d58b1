package store

import (
	"context"
	"sync"
	"time"

	"github.com/mossy-p/drawparty/internal/game"
)

// MemoryStore is the local-only fallback store. It keeps sessions in
// process memory with the same overwrite, TTL, and notification semantics
// as the Redis store, and doubles as the store used in tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	subs    map[string]map[int]func(*game.Session)
	nextSub int
	now     func() time.Time
}

type memoryEntry struct {
	session   *game.Session
	writtenAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		subs:    make(map[string]map[int]func(*game.Session)),
		now:     time.Now,
	}
}

func (m *MemoryStore) Write(_ context.Context, session *game.Session) error {
	m.mu.Lock()
	m.entries[session.ID] = &memoryEntry{session: session.Clone(), writtenAt: m.now()}
	handlers := m.snapshotSubs(session.ID)
	m.mu.Unlock()

	for _, onChange := range handlers {
		onChange(session.Clone())
	}
	return nil
}

func (m *MemoryStore) Read(_ context.Context, sessionID string) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[sessionID]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(entry.writtenAt) > SessionTTL {
		delete(m.entries, sessionID)
		return nil, nil
	}
	return entry.session.Clone(), nil
}

func (m *MemoryStore) Remove(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.entries, sessionID)
	handlers := m.snapshotSubs(sessionID)
	m.mu.Unlock()

	for _, onChange := range handlers {
		onChange(nil)
	}
	return nil
}

func (m *MemoryStore) ListIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.entries))
	for id, entry := range m.entries {
		if m.now().Sub(entry.writtenAt) > SessionTTL {
			delete(m.entries, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryStore) Subscribe(_ context.Context, sessionID string, onChange func(*game.Session)) (Unsubscribe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs[sessionID] == nil {
		m.subs[sessionID] = make(map[int]func(*game.Session))
	}
	id := m.nextSub
	m.nextSub++
	m.subs[sessionID][id] = onChange

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[sessionID], id)
	}, nil
}

// snapshotSubs copies the handler list so notifications run outside the lock.
func (m *MemoryStore) snapshotSubs(sessionID string) []func(*game.Session) {
	handlers := make([]func(*game.Session), 0, len(m.subs[sessionID]))
	for _, h := range m.subs[sessionID] {
		handlers = append(handlers, h)
	}
	return handlers
}
