package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/drawparty/internal/game"
)

const (
	sessionKeyPrefix  = "session:"
	sessionChanSuffix = ":changes"
	sessionIndexKey   = "sessions"

	// tombstone is published on the change channel when a session is removed.
	tombstone = "null"
)

// RedisStore keeps each session as a JSON blob with a TTL refreshed on every
// write, and broadcasts changes over a per-session pub/sub channel.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Close releases the underlying Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func sessionKey(id string) string  { return sessionKeyPrefix + id }
func sessionChan(id string) string { return sessionKeyPrefix + id + sessionChanSuffix }

func (r *RedisStore) Write(ctx context.Context, session *game.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", session.ID, err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, sessionKey(session.ID), data, SessionTTL)
	pipe.SAdd(ctx, sessionIndexKey, session.ID)
	pipe.Publish(ctx, sessionChan(session.ID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: write session %s: %v", ErrUnavailable, session.ID, err)
	}
	return nil
}

func (r *RedisStore) Read(ctx context.Context, sessionID string) (*game.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read session %s: %v", ErrUnavailable, sessionID, err)
	}
	var session game.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (r *RedisStore) Remove(ctx context.Context, sessionID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(sessionID))
	pipe.SRem(ctx, sessionIndexKey, sessionID)
	pipe.Publish(ctx, sessionChan(sessionID), tombstone)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: remove session %s: %v", ErrUnavailable, sessionID, err)
	}
	return nil
}

// ListIDs filters the index through EXISTS so ids whose records hit the TTL
// are dropped, and prunes them from the index as a side effect.
func (r *RedisStore) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: list sessions: %v", ErrUnavailable, err)
	}
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		n, err := r.client.Exists(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: list sessions: %v", ErrUnavailable, err)
		}
		if n == 0 {
			r.client.SRem(ctx, sessionIndexKey, id)
			continue
		}
		valid = append(valid, id)
	}
	return valid, nil
}

func (r *RedisStore) Subscribe(ctx context.Context, sessionID string, onChange func(*game.Session)) (Unsubscribe, error) {
	pubsub := r.client.Subscribe(ctx, sessionChan(sessionID))
	// Force the subscription to be established before returning so callers
	// cannot miss writes that follow.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("%w: subscribe session %s: %v", ErrUnavailable, sessionID, err)
	}

	go func() {
		for msg := range pubsub.Channel() {
			if msg.Payload == tombstone {
				onChange(nil)
				continue
			}
			var session game.Session
			if err := json.Unmarshal([]byte(msg.Payload), &session); err != nil {
				log.Error().Err(err).Str("session", sessionID).Msg("dropping malformed session update")
				continue
			}
			onChange(&session)
		}
	}()

	return func() {
		if err := pubsub.Close(); err != nil {
			log.Warn().Err(err).Str("session", sessionID).Msg("closing session subscription")
		}
	}, nil
}
