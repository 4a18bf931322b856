package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"reimbursement-service/internal/models"
)

const statsKey = "claims:stats"
const statsTTL = 5 * time.Minute

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// GetStats returns cached claim stats, if present.
func (c *Client) GetStats(ctx context.Context) ([]models.ClaimStats, bool) {
	data, err := c.rdb.Get(ctx, statsKey).Bytes()
	if err != nil {
		return nil, false
	}
	var stats []models.ClaimStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false
	}
	return stats, true
}

// SetStats caches claim stats with a short TTL.
func (c *Client) SetStats(ctx context.Context, stats []models.ClaimStats) {
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, statsKey, data, statsTTL).Err()
}

// InvalidateStats drops the cached stats after a write.
func (c *Client) InvalidateStats(ctx context.Context) {
	_ = c.rdb.Del(ctx, statsKey).Err()
}
