package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/pmoerman/quadbot/internal/domain"
)

// MinimumSizeCache stores the per-exchange minimum order sizes as a hash at
// "minsize:{exchange}" with fields "{market}/{coin}". The sizes come from
// exchange metadata endpoints and change rarely, so they are loaded once per
// scheduler round rather than per check.
type MinimumSizeCache struct {
	rdb *redis.Client
}

// NewMinimumSizeCache creates a MinimumSizeCache backed by the given Client.
func NewMinimumSizeCache(c *Client) *MinimumSizeCache {
	return &MinimumSizeCache{rdb: c.Underlying()}
}

func minSizeKey(exchange string) string {
	return "minsize:" + exchange
}

// Set records the minimum order size for one exchange/market/coin.
func (mc *MinimumSizeCache) Set(ctx context.Context, key domain.LegKey, size float64) error {
	field := key.Market + "/" + key.Coin
	value := strconv.FormatFloat(size, 'f', -1, 64)
	if err := mc.rdb.HSet(ctx, minSizeKey(key.Exchange), field, value).Err(); err != nil {
		return fmt.Errorf("redis: set minimum size %s: %w", key, err)
	}
	return nil
}

// Load returns all recorded minimum sizes for the exchange. An exchange with
// no recorded sizes yields an empty map, which the checks treat as
// unrestricted.
func (mc *MinimumSizeCache) Load(ctx context.Context, exchange string) (domain.MinimumSizes, error) {
	vals, err := mc.rdb.HGetAll(ctx, minSizeKey(exchange)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load minimum sizes %s: %w", exchange, err)
	}

	sizes := make(domain.MinimumSizes, len(vals))
	for field, raw := range vals {
		parts := strings.Split(field, "/")
		if len(parts) != 2 {
			continue
		}
		size, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: parse minimum size %s/%s: %w", exchange, field, err)
		}
		sizes[domain.LegKey{Exchange: exchange, Market: parts[0], Coin: parts[1]}] = size
	}
	return sizes, nil
}
