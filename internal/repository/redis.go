package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisUsage keeps one hash per user (usage:<userID>) mapping coupon code
// to redemption count. HIncrBy gives the atomic increment; reads of absent
// fields are zero.
type RedisUsage struct {
	client *redis.Client
}

func NewRedisUsage(client *redis.Client) *RedisUsage {
	return &RedisUsage{client: client}
}

func usageHash(userID string) string {
	return "usage:" + userID
}

func (r *RedisUsage) Count(ctx context.Context, userID, code string) (int, error) {
	val, err := r.client.HGet(ctx, usageHash(userID), code).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("usage count %s/%s: %w", userID, code, err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("usage count %s/%s: %w", userID, code, err)
	}
	return n, nil
}

func (r *RedisUsage) Increment(ctx context.Context, userID, code string) error {
	if err := r.client.HIncrBy(ctx, usageHash(userID), code, 1).Err(); err != nil {
		return fmt.Errorf("usage increment %s/%s: %w", userID, code, err)
	}
	return nil
}

func (r *RedisUsage) CountsFor(ctx context.Context, userID string) (map[string]int, error) {
	fields, err := r.client.HGetAll(ctx, usageHash(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("usage counts %s: %w", userID, err)
	}
	out := make(map[string]int, len(fields))
	for code, val := range fields {
		n, err := strconv.Atoi(val)
		if err != nil {
			return nil, fmt.Errorf("usage counts %s: %w", userID, err)
		}
		out[code] = n
	}
	return out, nil
}
