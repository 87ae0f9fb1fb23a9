package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

var _ Store = (*RedisStore)(nil)

// RedisStore keeps the latest snapshot of each project under a plain key and
// the series in a sorted set scored by Unix milliseconds.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	retention time.Duration
	logger    *zap.Logger
}

func NewRedisStore(client *redis.Client, keyPrefix string, retention time.Duration, logger *zap.Logger) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		retention: retention,
		logger:    logger,
	}
}

func (r *RedisStore) currentKey(projectID string) string {
	return r.keyPrefix + "pue:current:" + projectID
}

func (r *RedisStore) historyKey(projectID string) string {
	return r.keyPrefix + "pue:history:" + projectID
}

func (r *RedisStore) Record(ctx context.Context, s Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	score := s.Timestamp.UnixMilli()
	cutoff := s.Timestamp.Add(-r.retention).UnixMilli()
	key := r.historyKey(s.ProjectID)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.currentKey(s.ProjectID), data, r.retention)
		pipe.ZAdd(ctx, key, &redis.Z{Score: float64(score), Member: data})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.Expire(ctx, key, r.retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording PUE snapshot: %w", err)
	}

	r.logger.Debug("Recorded PUE snapshot",
		zap.String("project", s.ProjectID),
		zap.Time("timestamp", s.Timestamp))
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, projectID string) error {
	if err := r.client.Del(ctx, r.currentKey(projectID), r.historyKey(projectID)).Err(); err != nil {
		return fmt.Errorf("deleting PUE history: %w", err)
	}
	r.logger.Debug("Deleted PUE history", zap.String("project", projectID))
	return nil
}

func (r *RedisStore) Current(ctx context.Context, projectID string) (Snapshot, error) {
	data, err := r.client.Get(ctx, r.currentKey(projectID)).Bytes()
	if err == redis.Nil {
		return Snapshot{}, fmt.Errorf("project %s: %w", projectID, ErrNoHistory)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading PUE snapshot: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decoding PUE snapshot: %w", err)
	}
	return s, nil
}

func (r *RedisStore) Since(ctx context.Context, projectID string, since time.Time) ([]Snapshot, error) {
	members, err := r.client.ZRangeByScore(ctx, r.historyKey(projectID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading PUE history: %w", err)
	}

	out := make([]Snapshot, 0, len(members))
	for _, m := range members {
		var s Snapshot
		if err := json.Unmarshal([]byte(m), &s); err != nil {
			r.logger.Warn("Skipping undecodable PUE snapshot",
				zap.String("project", projectID),
				zap.Error(err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
