package config

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	rdb       *redis.Client
	locker    *redislock.Client
	keyPrefix = redisKeyPrefix()
)

// REDIS_KEY_PREFIX namespaces every cache, lock and deny-list key so several
// environments can share one instance.
func redisKeyPrefix() string {
	if v, ok := os.LookupEnv("REDIS_KEY_PREFIX"); ok {
		return strings.TrimSpace(v)
	}
	return "pipeworks:"
}

// RedisKey applies the key prefix.
func RedisKey(key string) string {
	return keyPrefix + key
}

// GetRedisDB returns nil until ConnectRedisWithRetry succeeds; every helper
// below treats a nil client as "cache disabled".
func GetRedisDB() *redis.Client {
	return rdb
}

func GetRedisLock() *redislock.Client {
	return locker
}

func getRaw(key string) (string, bool, error) {
	if rdb == nil {
		return "", false, nil
	}
	val, err := rdb.Get(context.Background(), RedisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func GetRedisObject(key string, dest interface{}) (bool, error) {
	val, ok, err := getRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func GetRedisValue(key string) (string, bool, error) {
	return getRaw(key)
}

func SetRedisObject(key string, obj interface{}, exp time.Duration) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return SetRedisValue(key, string(data), exp)
}

func SetRedisValue(key string, value string, exp time.Duration) error {
	if rdb == nil {
		return nil
	}
	return rdb.Set(context.Background(), RedisKey(key), value, exp).Err()
}

func RemoveRedisKey(keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = RedisKey(k)
	}
	return rdb.Del(context.Background(), prefixed...).Err()
}

// ConnectRedisWithRetry keeps dialing REDIS_ADDRESS until it answers or ctx
// ends, then installs the client and the lock client.
func ConnectRedisWithRetry(ctx context.Context) {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		addr = "localhost:6379"
		log.Printf("REDIS_ADDRESS not set; defaulting to %s", addr)
	}

	for attempt := 1; ; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       IntFromEnv("REDIS_DB", 0),
			PoolSize: 50,
		})
		err := client.Ping(ctx).Err()
		if err == nil {
			rdb = client
			locker = redislock.New(rdb)
			log.Printf("connected to redis (attempt=%d addr=%s)", attempt, addr)
			return
		}
		_ = client.Close()

		sleep := retryDelay(attempt)
		log.Printf("failed to connect redis (attempt=%d addr=%s): %v; retrying in %s", attempt, addr, err, sleep)
		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}
	}
}
