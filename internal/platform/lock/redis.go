package lock

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

const (
	defaultKeyPrefix = "linkage:lock:"
	defaultTTL       = 10 * time.Second
	defaultWait      = 5 * time.Second
	maxBackoff       = 200 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Redis is a cross-process identifier lock built on SET NX PX. Identifier
// values are hashed with BLAKE2b so no email or phone number is written to Redis.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	wait      time.Duration
	logger    *slog.Logger
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets the lease on each key. A crashed holder frees its keys after ttl.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithWait bounds how long Lock keeps retrying a contended key.
func WithWait(wait time.Duration) RedisOption {
	return func(r *Redis) {
		if wait > 0 {
			r.wait = wait
		}
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// WithLogger sets the logger used for release failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRedis constructs a Redis-backed locker.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       defaultTTL,
		wait:      defaultWait,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Lock(ctx context.Context, keys []string) (func(), error) {
	token := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	held := make([]string, 0, len(keys))
	for _, key := range normalizeKeys(keys) {
		redisKey := r.redisKey(key)
		if err := r.acquire(ctx, redisKey, token); err != nil {
			r.release(held, token)
			return nil, err
		}
		held = append(held, redisKey)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		r.release(held, token)
	}, nil
}

func (r *Redis) acquire(ctx context.Context, key, token string) error {
	backoff := 5 * time.Millisecond
	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctxErr)
			}
			return fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w: %w", ErrLockNotAcquired, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// release runs on a fresh context so a cancelled request still frees its keys.
func (r *Redis) release(keys []string, token string) {
	if len(keys) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		n, err := releaseScript.Run(ctx, r.client, []string{keys[i]}, token).Int64()
		switch {
		case err != nil && !errors.Is(err, redis.Nil):
			r.logger.WarnContext(ctx, "failed to release identifier lock", "error", err)
		case n == 0:
			r.logger.WarnContext(ctx, "identifier lock expired before release")
		}
	}
}

func (r *Redis) redisKey(key string) string {
	sum := blake2b.Sum256([]byte(key))
	return r.keyPrefix + hex.EncodeToString(sum[:])
}
