package mirror

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/scribe/internal/model"
)

// Redis keeps the list as one string value.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects using a redis:// URL and checks the connection.
func NewRedis(ctx context.Context, url, key string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisWithClient(client, key), nil
}

func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Driver() string { return "redis" }

func (r *Redis) Load(ctx context.Context) ([]*model.PatientRecord, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror: %w", err)
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, records []*model.PatientRecord) error {
	data, err := encode(records)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write mirror: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
