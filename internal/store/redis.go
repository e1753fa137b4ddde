package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rohmanhakim/page-tracker/internal/metadata"
)

const backendRedis = "redis"

type RedisParam struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore maps the Store port onto INCR, GET and SET EX.
// Every process pointing at the same server shares counters and results.
type RedisStore struct {
	client       redis.UniversalClient
	metadataSink metadata.MetadataSink
}

func NewRedisStore(metadataSink metadata.MetadataSink, param RedisParam) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     param.Addr,
		Password: param.Password,
		DB:       param.DB,
	})
	return NewRedisStoreFromClient(metadataSink, client)
}

// NewRedisStoreFromClient wraps an existing client. The store takes
// ownership and closes it on Close.
func NewRedisStoreFromClient(metadataSink metadata.MetadataSink, client redis.UniversalClient) *RedisStore {
	if metadataSink == nil {
		metadataSink = &metadata.NoopSink{}
	}
	return &RedisStore{
		client:       client,
		metadataSink: metadataSink,
	}
}

func (r *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, r.fail("RedisStore.Incr", key, err)
	}
	return n, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, r.fail("RedisStore.Get", key, err)
	}
	return val, true, nil
}

func (r *RedisStore) SetEx(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		// go-redis reads 0 as "no expiry" and -1 as KEEPTTL
		return r.fail("RedisStore.SetEx", key, fmt.Errorf("invalid expire time %v", ttl))
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return r.fail("RedisStore.SetEx", key, err)
	}
	return nil
}

// Ping checks that the server is reachable. Used at startup so a
// misconfigured address fails fast instead of on the first request.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return r.fail("RedisStore.Ping", "", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) fail(action string, key string, err error) error {
	storeErr := classifyRedisError(err)
	recordStoreError(r.metadataSink, backendRedis, action, key, storeErr)
	return storeErr
}

func classifyRedisError(err error) *StoreError {
	msg := err.Error()

	var netErr net.Error
	switch {
	case strings.Contains(msg, "not an integer"):
		return &StoreError{Message: msg, Cause: ErrCauseNotAnInteger, Err: err}
	case strings.Contains(msg, "overflow"):
		return &StoreError{Message: msg, Cause: ErrCauseValueOutOfRange, Err: err}
	case errors.As(err, &netErr), errors.Is(err, io.EOF), errors.Is(err, redis.ErrClosed):
		return &StoreError{Message: msg, Retryable: true, Cause: ErrCauseUnavailable, Err: err}
	default:
		return &StoreError{Message: msg, Cause: ErrCauseCommandFailed, Err: err}
	}
}
