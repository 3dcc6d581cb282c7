package metrics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a SnapshotStore backed by Redis, for deployments where
// several API instances share one metric cache. Keys carry no TTL; the
// aggregator decides staleness when it reads.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Get returns the stored snapshot, or nil when the key does not exist.
func (s *RedisStore) Get(ctx context.Context, metricType MetricType, period Period) (*Snapshot, error) {
	raw, err := s.client.Get(ctx, redisKey(metricType, period)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read snapshot")
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return &snap, nil
}

// Put serializes and stores the snapshot under its key.
func (s *RedisStore) Put(ctx context.Context, snapshot Snapshot) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "encode snapshot")
	}
	return errors.Wrap(
		s.client.Set(ctx, redisKey(snapshot.MetricType, snapshot.Period), raw, 0).Err(),
		"write snapshot")
}

func redisKey(metricType MetricType, period Period) string {
	return fmt.Sprintf("metrics:%s:%s", metricType, period)
}
