package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmoerman/quadbot/internal/domain"
)

// PauseRegistry keeps the temporary trading pauses imposed after execution
// failures. Each pause is a key "pause:{exchange}/{market}/{coin}" holding
// the reason, with the cooldown as its TTL; expiry lifts the pause without
// any bookkeeping. Redis makes pauses survive restarts, so a leg paused for
// two hours stays paused across a redeploy.
type PauseRegistry struct {
	rdb *redis.Client
}

// NewPauseRegistry creates a PauseRegistry backed by the given Client.
func NewPauseRegistry(c *Client) *PauseRegistry {
	return &PauseRegistry{rdb: c.Underlying()}
}

func pauseKey(key domain.LegKey) string {
	return "pause:" + key.String()
}

// Pause imposes a pause on the combination for the given duration. A
// combination already paused keeps the longer of the two remaining times.
func (r *PauseRegistry) Pause(ctx context.Context, key domain.LegKey, d time.Duration, reason string) error {
	k := pauseKey(key)

	remaining, err := r.rdb.TTL(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("redis: pause ttl %s: %w", key, err)
	}
	if remaining >= d {
		return nil
	}

	if err := r.rdb.Set(ctx, k, reason, d).Err(); err != nil {
		return fmt.Errorf("redis: pause %s: %w", key, err)
	}
	return nil
}

// IsPaused reports whether the combination is currently paused.
func (r *PauseRegistry) IsPaused(ctx context.Context, key domain.LegKey) (bool, error) {
	n, err := r.rdb.Exists(ctx, pauseKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: pause exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Active returns the set of currently paused combinations. The scheduler
// fetches this once per round and checks paths against the set locally.
func (r *PauseRegistry) Active(ctx context.Context) (map[domain.LegKey]struct{}, error) {
	paused := make(map[domain.LegKey]struct{})

	iter := r.rdb.Scan(ctx, 0, "pause:*", 0).Iterator()
	for iter.Next(ctx) {
		parts := strings.Split(strings.TrimPrefix(iter.Val(), "pause:"), "/")
		if len(parts) != 3 {
			continue
		}
		paused[domain.LegKey{Exchange: parts[0], Market: parts[1], Coin: parts[2]}] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan pauses: %w", err)
	}
	return paused, nil
}
