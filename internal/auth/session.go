package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore tracks live sessions. A token is only accepted while its
// session entry exists, so RevokeAll implements sign-out for every
// outstanding token of a user.
type SessionStore interface {
	Record(ctx context.Context, userID, sessionID string, ttl time.Duration) error
	IsLive(ctx context.Context, userID, sessionID string) (bool, error)
	RevokeAll(ctx context.Context, userID string) error
}

// RedisSessionStore keeps sessions under <namespace>:<userID>:<sessionID>
// keys with the token TTL. Sign-out deletes every key in the user's
// namespace.
type RedisSessionStore struct {
	client    *redis.Client
	namespace string
}

// NewRedisSessionStore builds a store over the shared Redis client.
func NewRedisSessionStore(client *redis.Client, namespace string) *RedisSessionStore {
	if namespace == "" {
		namespace = "helpdesk:session"
	}
	return &RedisSessionStore{client: client, namespace: namespace}
}

func (s *RedisSessionStore) key(userID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", s.namespace, userID, sessionID)
}

// Record registers the session for the token lifetime.
func (s *RedisSessionStore) Record(ctx context.Context, userID, sessionID string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(userID, sessionID), "1", ttl).Err()
}

// IsLive reports whether the session has not been revoked or expired.
func (s *RedisSessionStore) IsLive(ctx context.Context, userID, sessionID string) (bool, error) {
	count, err := s.client.Exists(ctx, s.key(userID, sessionID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RevokeAll deletes every session key in the user's namespace.
func (s *RedisSessionStore) RevokeAll(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("%s:%s:*", s.namespace, userID)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}
