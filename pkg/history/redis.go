package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// DefaultRedisKey is the sorted set holding shared history.
const DefaultRedisKey = "pi:history"

// RedisSource reads history from a Redis sorted set scored by record id.
// Several inspectors can share one proxy's history this way.
type RedisSource struct {
	client *redis.Client
	key    string
	logger zerolog.Logger
}

// NewRedisSource creates a source on key. An empty key selects
// DefaultRedisKey.
func NewRedisSource(client *redis.Client, key string, logger zerolog.Logger) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{
		client: client,
		key:    key,
		logger: logger.With().Str("component", "history-redis").Str("key", key).Logger(),
	}
}

// Name implements Source.
func (s *RedisSource) Name() string {
	return "redis"
}

// FetchSince implements Source.
func (s *RedisSource) FetchSince(ctx context.Context, lastID uint64) ([]Record, error) {
	members, err := s.client.ZRangeByScore(ctx, s.key, &redis.ZRangeBy{
		Min: fmt.Sprintf("(%d", lastID),
		Max: "+inf",
	}).Result()
	if err != nil {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("redis zrangebyscore: %v", err)
	}

	out := make([]Record, 0, len(members))
	for _, m := range members {
		if !gjson.Valid(m) {
			s.logger.Warn().Msg("Skipping undecodable history member")
			continue
		}
		out = append(out, decodeRecord(gjson.Parse(m)))
	}

	historyFetchesTotal.WithLabelValues(s.Name(), "ok").Inc()
	return out, nil
}

// Append publishes records to the sorted set.
func (s *RedisSource) Append(ctx context.Context, records ...Record) error {
	if len(records) == 0 {
		return nil
	}

	members := make([]redis.Z, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record %d: %w", r.ID, err)
		}
		members = append(members, redis.Z{Score: float64(r.ID), Member: data})
	}

	if err := s.client.ZAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}
