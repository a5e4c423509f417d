package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/boddenberg/boleto-pix-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

func activeKey(boletoID int64) string {
	return "pix:active:" + strconv.FormatInt(boletoID, 10)
}

// MemoryActiveCodes keeps active codes in process memory.
type MemoryActiveCodes struct {
	items *InMemory[domain.PixCharge]
}

// NewMemoryActiveCodes returns an in-memory active code cache. sweep is how often
// expired codes are purged.
func NewMemoryActiveCodes(sweep time.Duration) *MemoryActiveCodes {
	return &MemoryActiveCodes{items: New[domain.PixCharge](sweep)}
}

func (m *MemoryActiveCodes) GetActive(_ context.Context, boletoID int64) (*domain.PixCharge, bool, error) {
	c, ok := m.items.Get(activeKey(boletoID))
	if !ok {
		return nil, false, nil
	}
	return &c, true, nil
}

func (m *MemoryActiveCodes) PutActive(_ context.Context, boletoID int64, charge *domain.PixCharge, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.items.SetWithTTL(activeKey(boletoID), *charge, ttl)
	return nil
}

// Ping always succeeds.
func (m *MemoryActiveCodes) Ping(context.Context) error { return nil }

// RedisActiveCodes shares active codes between replicas through Redis.
type RedisActiveCodes struct {
	rdb *redis.Client
}

// NewRedisActiveCodes wraps an existing client.
func NewRedisActiveCodes(rdb *redis.Client) *RedisActiveCodes {
	return &RedisActiveCodes{rdb: rdb}
}

func (r *RedisActiveCodes) GetActive(ctx context.Context, boletoID int64) (*domain.PixCharge, bool, error) {
	raw, err := r.rdb.Get(ctx, activeKey(boletoID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var c domain.PixCharge
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, false, fmt.Errorf("decoding cached code: %w", err)
	}
	return &c, true, nil
}

func (r *RedisActiveCodes) PutActive(ctx context.Context, boletoID int64, charge *domain.PixCharge, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(charge)
	if err != nil {
		return fmt.Errorf("encoding code: %w", err)
	}
	if err := r.rdb.Set(ctx, activeKey(boletoID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *RedisActiveCodes) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// NewRedisClient builds the client shared by the Redis-backed caches.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}
