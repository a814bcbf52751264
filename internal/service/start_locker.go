package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lshigami/Margays/config"
	"github.com/redis/go-redis/v9"
)

// StartLocker serializes concurrent start requests for one identity triple.
// The database unique index is the hard guarantee; the lock turns a racing
// double-click into a clean single winner instead of a constraint error.
type StartLocker interface {
	Acquire(ctx context.Context, studentID, examID, sessionID uint) (bool, error)
	Release(ctx context.Context, studentID, examID, sessionID uint) error
}

type redisStartLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStartLocker(cfg *config.Config, client *redis.Client) StartLocker {
	return &redisStartLocker{client: client, ttl: cfg.Proctor.StartLockTTL}
}

func startLockKey(studentID, examID, sessionID uint) string {
	return fmt.Sprintf("margays:start:%d:%d:%d", studentID, examID, sessionID)
}

func (l *redisStartLocker) Acquire(ctx context.Context, studentID, examID, sessionID uint) (bool, error) {
	return l.client.SetNX(ctx, startLockKey(studentID, examID, sessionID), 1, l.ttl).Result()
}

func (l *redisStartLocker) Release(ctx context.Context, studentID, examID, sessionID uint) error {
	return l.client.Del(ctx, startLockKey(studentID, examID, sessionID)).Err()
}
