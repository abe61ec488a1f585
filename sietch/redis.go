package sietch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConnector stores items as JSON strings, one key per item.
type RedisConnector[T any, ID comparable] struct {
	client     *redis.Client
	defaultTTL time.Duration
	getID      func(*T) ID
	keyFunc    func(ID) string
}

var _ Repository[struct{}, int] = (*RedisConnector[struct{}, int])(nil)

// NewRedisConnector writes keys with defaultTTL; zero means no expiry.
func NewRedisConnector[T any, ID comparable](client *redis.Client, defaultTTL time.Duration, getID func(*T) ID, keyFunc func(ID) string) *RedisConnector[T, ID] {
	return &RedisConnector[T, ID]{client, defaultTTL, getID, keyFunc}
}

func (r *RedisConnector[T, ID]) Create(ctx context.Context, item *T) error {
	key, data, err := r.encode(item)
	if err != nil {
		return err
	}

	created, err := r.client.SetNX(ctx, key, data, r.defaultTTL).Result()
	if err != nil {
		return err
	}
	if !created {
		return ErrItemExists
	}
	return nil
}

func (r *RedisConnector[T, ID]) Get(ctx context.Context, id ID) (*T, error) {
	data, err := r.client.Get(ctx, r.keyFunc(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrItemNotFound
		}
		return nil, err
	}

	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *RedisConnector[T, ID]) Upsert(ctx context.Context, item *T) error {
	key, data, err := r.encode(item)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, r.defaultTTL).Err()
}

func (r *RedisConnector[T, ID]) Delete(ctx context.Context, id ID) error {
	n, err := r.client.Del(ctx, r.keyFunc(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *RedisConnector[T, ID]) Exists(ctx context.Context, id ID) (bool, error) {
	n, err := r.client.Exists(ctx, r.keyFunc(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisConnector[T, ID]) encode(item *T) (string, []byte, error) {
	if item == nil {
		return "", nil, ErrNilItem
	}
	data, err := json.Marshal(item)
	if err != nil {
		return "", nil, err
	}
	return r.keyFunc(r.getID(item)), data, nil
}
