package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"typed-todo/internal/models"
	"typed-todo/pkg/logger"
)

const todosCacheKey = "todos:all"

// TodoKey returns the cache key of a single todo.
func TodoKey(id int64) string {
	return "todo:" + strconv.FormatInt(id, 10)
}

// NewClient parses a redis:// URL, sizes the pool and pings the server.
func NewClient(ctx context.Context, url string, poolSize int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	if poolSize > 0 {
		opts.PoolSize = poolSize
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info(ctx, "Redis client initialized", "pool_size", opts.PoolSize)
	return client, nil
}

// TodoCache is a cache-aside layer for the list and single-todo reads. Every
// failure is a miss; a nil TodoCache or client disables caching.
type TodoCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New returns a cache writing entries with the given TTL.
func New(client *redis.Client, ttl time.Duration) *TodoCache {
	return &TodoCache{client: client, ttl: ttl}
}

func (c *TodoCache) enabled() bool {
	return c != nil && c.client != nil
}

// GetTodos reads the todos list. Returns (nil, false) on miss or error.
func (c *TodoCache) GetTodos(ctx context.Context) ([]models.Todo, bool) {
	var todos []models.Todo
	if !c.get(ctx, todosCacheKey, &todos) {
		return nil, false
	}
	return todos, true
}

// SetTodos stores the todos list.
func (c *TodoCache) SetTodos(ctx context.Context, todos []models.Todo) {
	c.set(ctx, todosCacheKey, todos)
}

// GetTodo reads a single todo. Returns (nil, false) on miss or error.
func (c *TodoCache) GetTodo(ctx context.Context, id int64) (*models.Todo, bool) {
	var t models.Todo
	if !c.get(ctx, TodoKey(id), &t) {
		return nil, false
	}
	return &t, true
}

// SetTodo stores a single todo.
func (c *TodoCache) SetTodo(ctx context.Context, t *models.Todo) {
	if t == nil {
		return
	}
	c.set(ctx, TodoKey(t.ID), t)
}

// Invalidate drops the list and the given todos so the next read goes to the DB.
func (c *TodoCache) Invalidate(ctx context.Context, ids ...int64) {
	if !c.enabled() {
		return
	}
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, todosCacheKey)
	for _, id := range ids {
		keys = append(keys, TodoKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		logger.Warn(ctx, "Redis invalidate failed", "error", err, "keys", keys)
	}
}

func (c *TodoCache) get(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.Debug(ctx, "Redis get failed", "error", err, "key", key)
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		logger.Debug(ctx, "Redis unmarshal failed", "error", err, "key", key)
		return false
	}
	return true
}

func (c *TodoCache) set(ctx context.Context, key string, v any) {
	if !c.enabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		logger.Debug(ctx, "Marshal for cache failed", "error", err, "key", key)
		return
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logger.Debug(ctx, "Redis set failed", "error", err, "key", key)
	}
}
