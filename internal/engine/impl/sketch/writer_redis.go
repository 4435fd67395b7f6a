package sketch

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/model"
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisWriter publishes the latest snapshot of every counter to Redis: a
// sorted set "<prefix>:<task>:top" scored by count and a hash
// "<prefix>:<task>:meta" with the sketch metrics.
type RedisWriter struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	interval time.Duration
	topK     int
}

// NewRedisWriter creates a writer for the configured Redis server.
func NewRedisWriter(cfg config.RedisConfig, interval time.Duration, topK int) (*RedisWriter, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("no address for redis")
	}
	var ttl time.Duration
	if cfg.TTL != "" {
		var err error
		if ttl, err = time.ParseDuration(cfg.TTL); err != nil {
			return nil, fmt.Errorf("invalid redis ttl: %w", err)
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisWriter(client, cfg.KeyPrefix, ttl, interval, topK), nil
}

func newRedisWriter(client *redis.Client, prefix string, ttl, interval time.Duration, topK int) *RedisWriter {
	return &RedisWriter{client: client, prefix: prefix, ttl: ttl, interval: interval, topK: topK}
}

func (w *RedisWriter) GetInterval() time.Duration {
	return w.interval
}

func (w *RedisWriter) TopK() int {
	return w.topK
}

func (w *RedisWriter) Close() error {
	return w.client.Close()
}

func (w *RedisWriter) topKey(task string) string {
	return fmt.Sprintf("%s:%s:top", w.prefix, task)
}

func (w *RedisWriter) metaKey(task string) string {
	return fmt.Sprintf("%s:%s:meta", w.prefix, task)
}

// Write replaces the stored snapshot of the task in one MULTI/EXEC pipeline.
func (w *RedisWriter) Write(ctx context.Context, snapshot *model.Snapshot) error {
	topKey := w.topKey(snapshot.TaskName)
	metaKey := w.metaKey(snapshot.TaskName)

	members := make([]redis.Z, len(snapshot.Records))
	for i, r := range snapshot.Records {
		members[i] = redis.Z{Score: float64(r.Count), Member: r.Item}
	}

	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, topKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, topKey, members...)
		}
		pipe.HSet(ctx, metaKey, map[string]any{
			"snapshot_id": snapshot.ID,
			"timestamp":   snapshot.Timestamp.Format(time.RFC3339),
			"capacity":    snapshot.Capacity,
			"size":        snapshot.Size,
			"minimum":     snapshot.Minimum,
			"observed":    snapshot.Observed,
			"evictions":   snapshot.Evictions,
		})
		if w.ttl > 0 {
			pipe.Expire(ctx, topKey, w.ttl)
			pipe.Expire(ctx, metaKey, w.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot to redis: %w", err)
	}
	return nil
}
