package crawlstate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pathfinder/internal/config"
	"pathfinder/pkg/models"
)

// RedisMirror keeps one Redis set of known identifiers per source
type RedisMirror struct {
	client *redis.Client
	prefix string
}

// NewRedisMirror creates a mirror from the redis configuration section
func NewRedisMirror(cfg *config.Config) (*RedisMirror, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}

	timeout := cfg.Redis.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout

	return newRedisMirror(redis.NewClient(opts), cfg.Redis.KeyPrefix), nil
}

func newRedisMirror(client *redis.Client, prefix string) *RedisMirror {
	if prefix == "" {
		prefix = "pathfinder"
	}
	return &RedisMirror{client: client, prefix: prefix}
}

// Ping tests the Redis connection
func (m *RedisMirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (m *RedisMirror) Close() error {
	return m.client.Close()
}

// Members returns every identifier mirrored for src
func (m *RedisMirror) Members(ctx context.Context, src models.Source) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.key(src)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read known ids: %w", err)
	}
	return ids, nil
}

// Add mirrors identifiers of src
func (m *RedisMirror) Add(ctx context.Context, src models.Source, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := m.client.SAdd(ctx, m.key(src), members...).Err(); err != nil {
		return fmt.Errorf("failed to add known ids: %w", err)
	}
	return nil
}

func (m *RedisMirror) key(src models.Source) string {
	return fmt.Sprintf("%s:known:%s", m.prefix, src.Slug())
}
