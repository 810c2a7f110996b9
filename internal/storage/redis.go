// redis.go - Redis cache backend (JSON values, WATCH/MULTI merge)

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bosocmputer/product_identify/pkg/models"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "product_cache:"

// RedisStore implements CacheStore on Redis. ttl <= 0 stores without expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// ConnectRedis creates a client and checks the connection with PING
func ConnectRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logrus.Infof("✅ Connected to Redis (%s, db %d)", addr, db)
	return NewRedisStore(rdb, ttl), nil
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(fingerprint string) string {
	return redisKeyPrefix + fingerprint
}

// Get loads an entry by fingerprint
func (s *RedisStore) Get(ctx context.Context, fingerprint string) (*models.CacheEntry, error) {
	return getRedisEntry(ctx, s.client, fingerprint)
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRedisEntry(ctx context.Context, c redisGetter, fingerprint string) (*models.CacheEntry, error) {
	data, err := c.Get(ctx, redisKey(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read product cache: %w", err)
	}

	var entry models.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt product cache entry %s: %w", fingerprint, err)
	}
	return &entry, nil
}

// Put merges inside an optimistic transaction; a concurrent write to the same
// key aborts the transaction and the merge is retried.
func (s *RedisStore) Put(ctx context.Context, fingerprint string, entry models.CacheEntry) error {
	key := redisKey(fingerprint)

	txf := func(tx *redis.Tx) error {
		existing, err := getRedisEntry(ctx, tx, fingerprint)
		if err != nil && !errors.Is(err, ErrCacheMiss) {
			return err
		}

		merged, changed := MergeEntry(fingerprint, existing, entry)
		if !changed {
			return nil
		}
		data, err := json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode product cache entry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxMergeAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("product cache entry %s: too much write contention", fingerprint)
}
