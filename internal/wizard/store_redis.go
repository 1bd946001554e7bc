package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	dErrors "flightclaim/pkg/domain-errors"
)

var slotWriteDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "flightclaim_snapshot_write_duration_ms",
	Help:    "Latency of durable snapshot slot writes in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const (
	slotKeyPrefix   = "wizard:slot:"
	sharedKeyPrefix = "wizard:shared:"
)

// RedisSnapshotStore is the production SnapshotStore. Snapshots are JSON
// values under per-session keys with a sliding TTL, so abandoned sessions
// age out on their own.
type RedisSnapshotStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSnapshotStore wraps a connected client. A zero ttl means keys
// never expire.
func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

func slotKey(sessionID string, slot Slot) string {
	return slotKeyPrefix + sessionID + ":" + string(slot)
}

func sharedKey(sessionID, key string) string {
	return sharedKeyPrefix + sessionID + ":" + key
}

func (s *RedisSnapshotStore) SaveSlot(ctx context.Context, sessionID string, slot Slot, snap Snapshot) error {
	start := time.Now()
	defer func() {
		slotWriteDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	raw, err := json.Marshal(snap)
	if err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "encode snapshot", err)
	}
	return s.client.Set(ctx, slotKey(sessionID, slot), raw, s.ttl).Err()
}

func (s *RedisSnapshotStore) LoadSlot(ctx context.Context, sessionID string, slot Slot) (Snapshot, error) {
	raw, err := s.client.Get(ctx, slotKey(sessionID, slot)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, dErrors.Wrap(dErrors.CodeInternal, "decode snapshot", err)
	}
	return snap, nil
}

func (s *RedisSnapshotStore) DeleteSlot(ctx context.Context, sessionID string, slot Slot) error {
	return s.client.Del(ctx, slotKey(sessionID, slot)).Err()
}

func (s *RedisSnapshotStore) SaveShared(ctx context.Context, sessionID, key, value string) error {
	return s.client.Set(ctx, sharedKey(sessionID, key), value, s.ttl).Err()
}

func (s *RedisSnapshotStore) LoadShared(ctx context.Context, sessionID, key string) (string, error) {
	v, err := s.client.Get(ctx, sharedKey(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

// PurgeExcept deletes all phase slots except the final one plus every shared
// key outside the allow-list, using a pipeline so the purge lands as one
// round trip.
func (s *RedisSnapshotStore) PurgeExcept(ctx context.Context, sessionID string, keep []string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}

	pipe := s.client.Pipeline()
	for _, slot := range []Slot{SlotPhase1, SlotPhase2, SlotPhase3, SlotPhase4} {
		pipe.Del(ctx, slotKey(sessionID, slot))
	}

	// Shared keys are enumerated by scan since collaborators may have left
	// keys this package does not know about.
	iter := s.client.Scan(ctx, 0, sharedKeyPrefix+sessionID+":*", 0).Iterator()
	prefix := sharedKey(sessionID, "")
	for iter.Next(ctx) {
		full := iter.Val()
		name := full[len(prefix):]
		if !keepSet[name] {
			pipe.Del(ctx, full)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan shared keys: %w", err)
	}

	_, err := pipe.Exec(ctx)
	return err
}
