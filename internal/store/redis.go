package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"quester/config"
	"quester/internal/workflow"
)

const runKeyPrefix = "quester:run:"

// RedisStore keeps run snapshots as JSON blobs with an optional TTL. It does
// not persist episodes; pair it with the bleve episode store.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ workflow.SnapshotStore = (*RedisStore)(nil)

// NewRedis connects and pings a Redis server from config.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: pinging redis: %w", err)
	}
	return &RedisStore{rdb: rdb, ttl: cfg.TTL}, nil
}

// Client exposes the underlying connection for auxiliary uses such as the
// janitor lock.
func (r *RedisStore) Client() *redis.Client { return r.rdb }

func (r *RedisStore) SaveSnapshot(ctx context.Context, snap workflow.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encoding snapshot: %w", err)
	}
	if err := r.rdb.Set(ctx, runKeyPrefix+snap.RunID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store: saving snapshot: %w", err)
	}
	return nil
}

func (r *RedisStore) GetSnapshot(ctx context.Context, runID string) (workflow.Snapshot, bool, error) {
	raw, err := r.rdb.Get(ctx, runKeyPrefix+runID).Bytes()
	if err == redis.Nil {
		return workflow.Snapshot{}, false, nil
	}
	if err != nil {
		return workflow.Snapshot{}, false, fmt.Errorf("store: loading snapshot: %w", err)
	}
	var snap workflow.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return workflow.Snapshot{}, false, fmt.Errorf("store: decoding snapshot: %w", err)
	}
	return snap, true, nil
}
