package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil || lifespan <= 0 {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

func GetTypeName[T any]() string {
	var v T
	return reflect.TypeOf(v).Name()
}

// StoreRedis caches a single value of type T under "Type".
func StoreRedis[T any](obj *T) error {
	return config.SetRedisObject(GetTypeName[T](), obj, GetCacheLifespan())
}

// RetrieveRedis returns nil when the value is not cached (or Redis is down).
func RetrieveRedis[T any]() (*T, error) {
	var result *T
	exists, err := config.GetRedisObject(GetTypeName[T](), &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func RemoveRedis[T any]() error {
	return config.RemoveRedisKey(GetTypeName[T]())
}

// store list, TypeList
func StoreRedisList[T any](list []*T) error {
	return config.SetRedisObject(GetTypeName[T]()+"List", &list, GetCacheLifespan())
}

// retrieve a list, nil if not cached
func RetrieveRedisList[T any]() ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(GetTypeName[T]()+"List", &result)
	if err != nil || !exists {
		return nil, err
	}
	return result, nil
}

func RemoveRedisList[T any]() error {
	return config.RemoveRedisKey(GetTypeName[T]() + "List")
}

/* logout deny-list */

func revokedTokenKey(tokenId string) string {
	return "RevokedToken:" + tokenId
}

func RevokeToken(tokenId string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return config.SetRedisValue(revokedTokenKey(tokenId), "1", ttl)
}

func IsTokenRevoked(tokenId string) (bool, error) {
	_, exists, err := config.GetRedisValue(revokedTokenKey(tokenId))
	return exists, err
}
