package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"balcaopos/backend/internal/domain"
)

type RedisDraftCache struct {
	client *redis.Client
}

func NewRedisDraftCache(addr string, password string, db int) *RedisDraftCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisDraftCache{client: client}
}

func (c *RedisDraftCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisDraftCache) Close() error {
	return c.client.Close()
}

func draftKey(terminalID string) string {
	return "sale-draft:" + terminalID
}

func (c *RedisDraftCache) Get(ctx context.Context, terminalID string) (*domain.SaleSessionView, bool, error) {
	val, err := c.client.Get(ctx, draftKey(terminalID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var draft domain.SaleSessionView
	if err := json.Unmarshal([]byte(val), &draft); err != nil {
		return nil, false, err
	}
	return &draft, true, nil
}

func (c *RedisDraftCache) Set(ctx context.Context, terminalID string, draft *domain.SaleSessionView, ttl time.Duration) error {
	if draft == nil {
		return nil
	}
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, draftKey(terminalID), payload, ttl).Err()
}

func (c *RedisDraftCache) Delete(ctx context.Context, terminalID string) error {
	return c.client.Del(ctx, draftKey(terminalID)).Err()
}
