package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mmeshcher/food-ordering-system/internal/model"
)

const generationKey = "menu:gen"

// RedisMenuCache хранит страницы меню в Redis.
// Ключи включают номер поколения; Invalidate увеличивает его, и старые ключи доживают до TTL.
type RedisMenuCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func NewRedisMenuCache(client *redis.Client) *RedisMenuCache {
	return &RedisMenuCache{
		client:  client,
		baseTTL: 5 * time.Minute,
	}
}

// Generation возвращает текущее поколение; отсутствующий ключ означает нулевое.
func (c *RedisMenuCache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	return gen, nil
}

func (c *RedisMenuCache) Get(ctx context.Context, gen int64, f model.MenuFilter) (*model.MenuPage, error) {
	data, err := c.client.Get(ctx, key(gen, f)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var page model.MenuPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("unmarshal menu page failed: %w", err)
	}
	return &page, nil
}

func (c *RedisMenuCache) Set(ctx context.Context, gen int64, f model.MenuFilter, page *model.MenuPage) error {
	data, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("marshal menu page failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(60)) * time.Second
	if err := c.client.Set(ctx, key(gen, f), data, c.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RedisMenuCache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		return fmt.Errorf("redis incr failed: %w", err)
	}
	return nil
}

func key(gen int64, f model.MenuFilter) string {
	return fmt.Sprintf("menu:%d:%s", gen, FilterKey(f))
}
