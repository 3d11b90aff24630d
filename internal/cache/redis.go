package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/fjod/go_food/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseTTL = 15 * time.Minute
	maxJitter      = 5 * time.Minute
	// generationTTL outlives any cart entry.
	generationTTL = 24 * time.Hour
)

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: defaultBaseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// Get reads the entry and its generation in one round trip.
func (r *RedisCache) Get(ctx context.Context, userID string) (*domain.Cart, Generation, error) {
	values, err := r.client.MGet(ctx, cacheKey(userID), generationKey(userID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis get failed: %w", err)
	}

	gen, err := parseGeneration(values[1])
	if err != nil {
		return nil, 0, err
	}
	raw, ok := values[0].(string)
	if !ok {
		return nil, gen, ErrCacheMiss
	}

	var cart domain.Cart
	if err := json.Unmarshal([]byte(raw), &cart); err != nil {
		return nil, gen, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, gen, nil
}

// Set stores the cart with a jittered TTL so entries written together do not
// expire together. The write runs under WATCH on the generation key, so an
// Invalidate that lands between the check and the write aborts it.
func (r *RedisCache) Set(ctx context.Context, userID string, cart *domain.Cart, gen Generation) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	genKey := generationKey(userID)
	ttl := r.baseTTL + time.Duration(rand.Int64N(int64(maxJitter)))
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		currentGen, err := parseGeneration(current)
		if err != nil {
			return err
		}
		if currentGen != gen {
			return ErrStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(userID), data, ttl)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) || errors.Is(err, ErrStale) {
		return ErrStale
	}
	if err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Invalidate bumps the generation and drops the entry atomically.
func (r *RedisCache) Invalidate(ctx context.Context, userID string) error {
	genKey := generationKey(userID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, cacheKey(userID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate failed: %w", err)
	}
	return nil
}

func parseGeneration(v any) (Generation, error) {
	var s string
	switch v := v.(type) {
	case nil:
		return 0, nil
	case string:
		s = v
	default:
		return 0, fmt.Errorf("unexpected generation type %T", v)
	}
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cart generation: %w", err)
	}
	return Generation(n), nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}

func generationKey(userID string) string {
	return fmt.Sprintf("cart:%s:gen", userID)
}
