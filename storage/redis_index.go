package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"yelp-scraper/models"
)

// RedisIndex remembers which listings were already scraped, as two Redis
// sets "<prefix>:ids" and "<prefix>:urls". It stores no record data.
type RedisIndex struct {
	client *redis.Client
	prefix string
}

// NewRedisIndex connects to addr and checks the server answers.
func NewRedisIndex(ctx context.Context, addr, prefix string) (*RedisIndex, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return newRedisIndex(rdb, prefix), nil
}

func newRedisIndex(client *redis.Client, prefix string) *RedisIndex {
	return &RedisIndex{client: client, prefix: prefix}
}

func (r *RedisIndex) idsKey() string  { return r.prefix + ":ids" }
func (r *RedisIndex) urlsKey() string { return r.prefix + ":urls" }

func (r *RedisIndex) Insert(ctx context.Context, records []models.NormalizedRecord) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]interface{}, 0, len(records))
	urls := make([]interface{}, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.BusinessID)
		urls = append(urls, rec.URL)
	}

	if err := r.client.SAdd(ctx, r.idsKey(), ids...).Err(); err != nil {
		return fmt.Errorf("redis: sadd ids: %w", err)
	}
	if err := r.client.SAdd(ctx, r.urlsKey(), urls...).Err(); err != nil {
		return fmt.Errorf("redis: sadd urls: %w", err)
	}
	return nil
}

func (r *RedisIndex) KnownIdentifiers(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: smembers ids: %w", err)
	}
	return ids, nil
}

func (r *RedisIndex) KnownURLs(ctx context.Context) ([]string, error) {
	urls, err := r.client.SMembers(ctx, r.urlsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: smembers urls: %w", err)
	}
	return urls, nil
}

func (r *RedisIndex) Close() error {
	return r.client.Close()
}
