package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/worldvpn/broker/internal/shared/logger"
)

// AbuseStore tracks per-user rate windows and temporary bans. Byte and
// connect counters use minute buckets with short TTLs; a window reading sums
// the current and previous bucket, which bounds the error of a fixed-window
// counter without per-event sorted sets.
type AbuseStore interface {
	RecordBytes(ctx context.Context, userID uint, bytes uint64) error
	RecordConnect(ctx context.Context, userID uint) error
	BytesInWindow(ctx context.Context, userID uint) (uint64, error)
	ConnectsInWindow(ctx context.Context, userID uint) (int64, error)

	Ban(ctx context.Context, userID uint, duration time.Duration, reason string) error
	IsBanned(ctx context.Context, userID uint) (bool, string, error)
	Unban(ctx context.Context, userID uint) error
}

type RedisAbuseStore struct {
	client *redis.Client
	logger logger.Interface
}

func NewRedisAbuseStore(client *redis.Client, logger logger.Interface) AbuseStore {
	return &RedisAbuseStore{
		client: client,
		logger: logger,
	}
}

func (s *RedisAbuseStore) RecordBytes(ctx context.Context, userID uint, bytes uint64) error {
	if bytes == 0 {
		return nil
	}
	return s.bump(ctx, bytesBucketKey(userID, time.Now().UTC()), safeUint64ToInt64(bytes))
}

func (s *RedisAbuseStore) RecordConnect(ctx context.Context, userID uint) error {
	return s.bump(ctx, connectBucketKey(userID, time.Now().UTC()), 1)
}

func (s *RedisAbuseStore) bump(ctx context.Context, key string, delta int64) error {
	pipe := s.client.Pipeline()
	pipe.IncrBy(ctx, key, delta)
	pipe.Expire(ctx, key, 3*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Errorw("failed to bump abuse counter", "key", key, "error", err)
		return fmt.Errorf("failed to bump abuse counter: %w", err)
	}
	return nil
}

func (s *RedisAbuseStore) BytesInWindow(ctx context.Context, userID uint) (uint64, error) {
	now := time.Now().UTC()
	total, err := s.sumBuckets(ctx,
		bytesBucketKey(userID, now),
		bytesBucketKey(userID, now.Add(-time.Minute)))
	if err != nil {
		return 0, err
	}
	if total < 0 {
		total = 0
	}
	return uint64(total), nil
}

func (s *RedisAbuseStore) ConnectsInWindow(ctx context.Context, userID uint) (int64, error) {
	now := time.Now().UTC()
	return s.sumBuckets(ctx,
		connectBucketKey(userID, now),
		connectBucketKey(userID, now.Add(-time.Minute)))
}

func (s *RedisAbuseStore) sumBuckets(ctx context.Context, keys ...string) (int64, error) {
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read abuse counters: %w", err)
	}
	var total int64
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		n, _ := strconv.ParseInt(str, 10, 64)
		total += n
	}
	return total, nil
}

// Ban flags the user for the duration. The reason survives with the flag so
// rejections can explain themselves.
func (s *RedisAbuseStore) Ban(ctx context.Context, userID uint, duration time.Duration, reason string) error {
	if err := s.client.Set(ctx, banKey(userID), reason, duration).Err(); err != nil {
		s.logger.Errorw("failed to set ban flag", "user_id", userID, "error", err)
		return fmt.Errorf("failed to set ban flag: %w", err)
	}
	s.logger.Warnw("user banned", "user_id", userID, "duration", duration, "reason", reason)
	return nil
}

func (s *RedisAbuseStore) IsBanned(ctx context.Context, userID uint) (bool, string, error) {
	reason, err := s.client.Get(ctx, banKey(userID)).Result()
	if err == redis.Nil {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("failed to read ban flag: %w", err)
	}
	return true, reason, nil
}

func (s *RedisAbuseStore) Unban(ctx context.Context, userID uint) error {
	if err := s.client.Del(ctx, banKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to clear ban flag: %w", err)
	}
	return nil
}

func bytesBucketKey(userID uint, t time.Time) string {
	return fmt.Sprintf("abuse:bytes:%d:%d", userID, t.Unix()/60)
}

func connectBucketKey(userID uint, t time.Time) string {
	return fmt.Sprintf("abuse:connects:%d:%d", userID, t.Unix()/60)
}

func banKey(userID uint) string {
	return fmt.Sprintf("abuse:ban:%d", userID)
}
