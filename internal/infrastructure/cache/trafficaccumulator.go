// Package cache holds the Redis-backed hot paths: the relay traffic
// accumulator that batches per-node byte deltas before they hit the
// database, and the abuse guard's sliding windows and ban flags.
package cache

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/worldvpn/broker/internal/domain/node"
	"github.com/worldvpn/broker/internal/shared/logger"
)

// TrafficAccumulator batches relay byte deltas per node so every traffic
// report does not turn into a database write. Flush drains the pending
// deltas into the nodes' daily counters.
type TrafficAccumulator interface {
	Accumulate(ctx context.Context, nodeID uint, bytes uint64) error
	Pending(ctx context.Context, nodeID uint) (uint64, error)
	Flush(ctx context.Context) error
}

type RedisTrafficAccumulator struct {
	client   *redis.Client
	nodeRepo node.NodeRepository
	logger   logger.Interface
}

func NewRedisTrafficAccumulator(
	client *redis.Client,
	nodeRepo node.NodeRepository,
	logger logger.Interface,
) TrafficAccumulator {
	return &RedisTrafficAccumulator{
		client:   client,
		nodeRepo: nodeRepo,
		logger:   logger,
	}
}

// Accumulate atomically adds a byte delta to the node's pending bucket. The
// key expires after 24 hours so abandoned buckets cannot leak.
func (c *RedisTrafficAccumulator) Accumulate(ctx context.Context, nodeID uint, bytes uint64) error {
	if bytes == 0 {
		return nil
	}
	key := trafficKey(nodeID)

	pipe := c.client.Pipeline()
	pipe.IncrBy(ctx, key, safeUint64ToInt64(bytes))
	pipe.Expire(ctx, key, 24*time.Hour)

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Errorw("failed to accumulate traffic in redis",
			"node_id", nodeID, "bytes", bytes, "error", err)
		return fmt.Errorf("failed to accumulate traffic: %w", err)
	}
	return nil
}

// Pending returns the node's unflushed byte count.
func (c *RedisTrafficAccumulator) Pending(ctx context.Context, nodeID uint) (uint64, error) {
	value, err := c.client.Get(ctx, trafficKey(nodeID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get pending traffic: %w", err)
	}
	pending, _ := strconv.ParseUint(value, 10, 64)
	return pending, nil
}

// Flush drains every pending bucket into the nodes' daily counters. A bucket
// is read with GETDEL so a delta arriving mid-flush lands in a fresh bucket
// instead of being lost; on a database failure the amount is re-credited.
func (c *RedisTrafficAccumulator) Flush(ctx context.Context) error {
	flushedCount := 0
	errorCount := 0

	iter := c.client.Scan(ctx, 0, "node:*:traffic", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		nodeID, err := parseNodeIDFromKey(key)
		if err != nil {
			c.logger.Warnw("failed to parse node id from key", "key", key, "error", err)
			continue
		}

		value, err := c.client.GetDel(ctx, key).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			c.logger.Errorw("failed to drain traffic bucket", "key", key, "error", err)
			errorCount++
			continue
		}

		pending, _ := strconv.ParseUint(value, 10, 64)
		if pending == 0 {
			continue
		}

		if err := c.nodeRepo.AddDailyTraffic(ctx, nodeID, pending); err != nil {
			c.logger.Errorw("failed to flush traffic to database",
				"node_id", nodeID, "bytes", pending, "error", err)
			errorCount++
			// Put the amount back so the next flush retries it.
			if recreditErr := c.Accumulate(ctx, nodeID, pending); recreditErr != nil {
				c.logger.Errorw("failed to re-credit traffic after flush failure",
					"node_id", nodeID, "bytes", pending, "error", recreditErr)
			}
			continue
		}

		flushedCount++
	}

	if err := iter.Err(); err != nil {
		c.logger.Errorw("error during redis scan", "error", err)
		return fmt.Errorf("scan error: %w", err)
	}

	c.logger.Infow("traffic flush completed",
		"flushed_count", flushedCount, "error_count", errorCount)
	return nil
}

func trafficKey(nodeID uint) string {
	return fmt.Sprintf("node:%d:traffic", nodeID)
}

// parseNodeIDFromKey extracts the node ID from a bucket key.
// Example: "node:123:traffic" -> 123
func parseNodeIDFromKey(key string) (uint, error) {
	var nodeID uint
	_, err := fmt.Sscanf(key, "node:%d:traffic", &nodeID)
	if err != nil {
		return 0, fmt.Errorf("invalid key format: %s", key)
	}
	return nodeID, nil
}

func safeUint64ToInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
