package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/bantay/core"
)

var _ core.SessionStorage = (*SessionStore)(nil)

// SessionStore keeps each session as a JSON string that Redis expires at the
// session's ExpiresAt. A set per user indexes that user's token hashes.
type SessionStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewSessionStore(rdb redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{rdb: rdb, prefix: prefixOr(prefix), now: time.Now}
}

func (s *SessionStore) key(tokenHash string) string {
	return s.prefix + ":session:" + tokenHash
}

func (s *SessionStore) userKey(userID string) string {
	return s.prefix + ":user-sessions:" + userID
}

func (s *SessionStore) CreateSession(ctx context.Context, session *core.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(session.TokenHash), data, ttl)
		pipe.SAdd(ctx, s.userKey(session.UserID), session.TokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSessionByHash(ctx context.Context, tokenHash string) (*core.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	session := &core.Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	// the hash is the key and is never serialized
	session.TokenHash = tokenHash
	return session, nil
}

// UpdateSession overwrites an existing session and keeps its expiry.
func (s *SessionStore) UpdateSession(ctx context.Context, session *core.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	err = s.rdb.SetArgs(ctx, s.key(session.TokenHash), data, redis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return core.ErrSessionNotFound
		}
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteSessionByHash(ctx context.Context, tokenHash string) error {
	session, err := s.GetSessionByHash(ctx, tokenHash)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(tokenHash))
		pipe.SRem(ctx, s.userKey(session.UserID), tokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions removes every live session indexed for userID and the
// index itself. A session created concurrently may survive until it expires.
func (s *SessionStore) DeleteUserSessions(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	hashes, err := s.rdb.SMembers(ctx, userKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read user sessions: %w", err)
	}

	keys := make([]string, 0, len(hashes))
	for _, h := range hashes {
		keys = append(keys, s.key(h))
	}

	var deleted *redis.IntCmd
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}

	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// DeleteExpiredSessions prunes user index entries whose session Redis has
// already expired and returns how many were pruned. Session values
// themselves are expired by Redis.
func (s *SessionStore) DeleteExpiredSessions(ctx context.Context) (int, error) {
	pruned := 0
	iter := s.rdb.Scan(ctx, 0, s.userKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()

		hashes, err := s.rdb.SMembers(ctx, userKey).Result()
		if err != nil {
			return pruned, fmt.Errorf("failed to read %s: %w", userKey, err)
		}

		var stale []any
		for _, h := range hashes {
			n, err := s.rdb.Exists(ctx, s.key(h)).Result()
			if err != nil {
				return pruned, fmt.Errorf("failed to check session: %w", err)
			}
			if n == 0 {
				stale = append(stale, h)
			}
		}
		if len(stale) == 0 {
			continue
		}

		n, err := s.rdb.SRem(ctx, userKey, stale...).Result()
		if err != nil {
			return pruned, fmt.Errorf("failed to prune %s: %w", userKey, err)
		}
		pruned += int(n)
	}
	if err := iter.Err(); err != nil {
		return pruned, fmt.Errorf("failed to scan user sessions: %w", err)
	}
	return pruned, nil
}
