package service

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	idempotentKeyPrefix = "idempotent-key:"

	// A reservation covers one in-flight checkout. It expires on its own if
	// the process dies between reserve and confirm.
	idempotentReserveTTL = time.Minute
	idempotentKeyTTL     = 24 * time.Hour
)

// idempotencyKeys guards Idempotent-Key values around checkout. Reserve is
// atomic: of two concurrent checkouts carrying the same key, exactly one
// gets true. A reservation is confirmed after the order commits and
// released when the attempt fails, so a retry after an infrastructure
// failure is not blocked by its own earlier attempt.
type idempotencyKeys interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Confirm(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type redisIdempotency struct {
	rdb *redis.Client
}

func (r *redisIdempotency) Reserve(ctx context.Context, key string) (bool, error) {
	return r.rdb.SetNX(ctx, idempotentKeyPrefix+key, "pending", idempotentReserveTTL).Result()
}

func (r *redisIdempotency) Confirm(ctx context.Context, key string) error {
	return r.rdb.Set(ctx, idempotentKeyPrefix+key, "exists", idempotentKeyTTL).Err()
}

func (r *redisIdempotency) Release(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, idempotentKeyPrefix+key).Err()
}
