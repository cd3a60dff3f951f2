package utils

import (
	"os"
	"reflect"
	"strconv"
	"time"

	"bitbucket.org/agrifocus/plantation_backend/config"
)

func GetCacheLifespan() time.Duration {
	lifespan, err := strconv.Atoi(os.Getenv("CACHE_LIFESPAN"))
	if err != nil {
		lifespan = 1
	}
	return time.Duration(lifespan) * time.Hour
}

// get type name of struct
func GetTypeName[T any]() string {
	var v T
	typeOfT := reflect.TypeOf(v)
	return typeOfT.Name()
}

// StoreRedisList caches a per-business list under TypeList:$business_id.
// Master lists are cached this way so registry prefetch skips the database
// on repeat imports.
func StoreRedisList[T any](obj any, businessId string) error {
	return config.SetRedisObject(listKey[T](businessId), &obj, GetCacheLifespan())
}

// RetrieveRedisList returns nil when the list has not been cached.
func RetrieveRedisList[T any](businessId string) ([]*T, error) {
	var result []*T
	exists, err := config.GetRedisObject(listKey[T](businessId), &result)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return result, nil
}

// RemoveRedisList invalidates the cached list after masters change.
func RemoveRedisList[T any](businessId string) error {
	return config.RemoveRedisKey(listKey[T](businessId))
}

func listKey[T any](businessId string) string {
	if businessId == "" {
		return GetTypeName[T]() + "List"
	}
	return GetTypeName[T]() + "List:" + businessId
}
