package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lshigami/Margays/config"
	"github.com/redis/go-redis/v9"
)

// PresenceStore mirrors the latest activity heartbeat into Redis under a TTL,
// so "is the student still there" reads never touch Postgres. The key expiring
// is itself the signal that the student went quiet.
type PresenceStore interface {
	Refresh(ctx context.Context, attemptID uint, at time.Time) error
	LastSeen(ctx context.Context, attemptID uint) (time.Time, bool, error)
	Clear(ctx context.Context, attemptID uint) error
}

type redisPresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(cfg *config.Config, client *redis.Client) PresenceStore {
	return &redisPresenceStore{client: client, ttl: cfg.Proctor.PresenceTTL}
}

func presenceKey(attemptID uint) string {
	return fmt.Sprintf("margays:attempt:%d:presence", attemptID)
}

func (s *redisPresenceStore) Refresh(ctx context.Context, attemptID uint, at time.Time) error {
	return s.client.Set(ctx, presenceKey(attemptID), at.UTC().Format(time.RFC3339Nano), s.ttl).Err()
}

func (s *redisPresenceStore) LastSeen(ctx context.Context, attemptID uint) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, presenceKey(attemptID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (s *redisPresenceStore) Clear(ctx context.Context, attemptID uint) error {
	return s.client.Del(ctx, presenceKey(attemptID)).Err()
}
