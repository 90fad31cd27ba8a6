package checkpoint

import (
	"context"
	"fmt"

	redis "gopkg.in/redis.v5"
)

type redisStore struct {
	rc     *redis.Client
	prefix string
}

/*
NewRedisStore builds a Store backed by a redis DB, keeping each
checkpoint as a plain value under its prefixed key. The store owns the
client and closes it on Close.
*/
func NewRedisStore(rc *redis.Client, prefix string) Store {
	return &redisStore{rc, prefix}
}

func (rs *redisStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := rs.rc.Set(rs.keyFor(key), data, 0).Result()
	if err != nil {
		return fmt.Errorf("saving checkpoint %q in redis: %v", key, err)
	}
	return nil
}

func (rs *redisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := rs.rc.Get(rs.keyFor(key)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("loading checkpoint %q from redis: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %q from redis: %v", key, err)
	}
	return data, nil
}

func (rs *redisStore) Delete(ctx context.Context, key string) error {
	_, err := rs.rc.Del(rs.keyFor(key)).Result()
	if err != nil {
		return fmt.Errorf("deleting checkpoint %q from redis: %v", key, err)
	}
	return nil
}

func (rs *redisStore) Close(ctx context.Context) error {
	return rs.rc.Close()
}

func (rs *redisStore) keyFor(key string) string {
	return fmt.Sprintf("%s:%s", rs.prefix, key)
}
