package ban

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachePrefix is the Redis key prefix for cached active bans:
//
//	Key:   ban:<userID>:<banType>
//	Value: JSON-encoded Ban
//	TTL:   remaining ban duration (none for permanent bans)
const CachePrefix = "ban:"

// Cache keeps active bans in Redis so the hot gate path can answer
// IsUserBanned without touching Postgres. Entries for temporary bans carry a
// TTL equal to the remaining duration, so expiry happens in Redis for free.
// The cache is strictly best effort: Postgres stays the source of truth.
type Cache struct {
	client *redis.Client
}

// NewCache creates a ban cache using the provided Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func cacheKey(userID string, banType BanType) string {
	return CachePrefix + userID + ":" + string(banType)
}

// Get returns the cached ban for (user, type), or nil on a miss.
func (c *Cache) Get(ctx context.Context, userID string, banType BanType) (*Ban, error) {
	data, err := c.client.Get(ctx, cacheKey(userID, banType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ban: cache get: %w", err)
	}

	var b Ban
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("ban: cache decode: %w", err)
	}
	return &b, nil
}

// Set stores an active ban with TTL equal to its remaining duration.
// Permanent bans are stored without expiry and removed on lift.
func (c *Cache) Set(ctx context.Context, b *Ban) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("ban: cache encode: %w", err)
	}

	var ttl time.Duration
	if b.Severity != BanPermanent {
		ttl = b.Remaining(time.Now())
		if ttl <= 0 {
			// Already expired, nothing worth caching.
			return nil
		}
	}
	return c.client.Set(ctx, cacheKey(b.UserID, b.BanType), data, ttl).Err()
}

// Del drops the cached entry for (user, type).
func (c *Cache) Del(ctx context.Context, userID string, banType BanType) error {
	return c.client.Del(ctx, cacheKey(userID, banType)).Err()
}
