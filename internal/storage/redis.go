package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/voice-ledger/internal/domain"
	redis "github.com/redis/go-redis/v9"
)

// Redis keeps the ledger under a single key of a (local) Redis server.
// Durability is whatever the server's persistence is configured for.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis wraps an existing client. key defaults to DocumentKey.
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DocumentKey
	}
	return &Redis{client: client, key: key}
}

// DialRedis connects and pings the server.
func DialRedis(ctx context.Context, addr, password string, db int, key string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("DialRedis: ping %s: %w", addr, err)
	}
	return NewRedis(client, key), nil
}

func (r *Redis) Load(ctx context.Context) (*domain.LedgerDocument, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Redis.Load: %w", err)
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, doc *domain.LedgerDocument) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("Redis.Save: %w", err)
	}
	return nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("Redis.Clear: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

var _ Store = (*Redis)(nil)
