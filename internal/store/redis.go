package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMappingKey is the hash holding one field per saved search.
const DefaultMappingKey = "contentmapper:mappings"

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL string

	// Key overrides DefaultMappingKey.
	Key string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// RedisStore implements MappingStore on a Redis hash.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = DefaultMappingKey
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, key: opts.Key}, nil
}

func (s *RedisStore) Lookup(ctx context.Context, searchTitle string) (*Mapping, error) {
	data, err := s.client.HGet(ctx, s.key, searchTitle).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode mapping: %w", err)
	}
	return &m, nil
}

func (s *RedisStore) Save(ctx context.Context, m Mapping) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, m.SearchTitle, data).Err(); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, searchTitle string) error {
	n, err := s.client.HDel(ctx, s.key, searchTitle).Result()
	if err != nil {
		return fmt.Errorf("failed to delete mapping: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all mappings ordered by search title. Undecodable entries are
// skipped.
func (s *RedisStore) List(ctx context.Context) ([]Mapping, error) {
	all, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}

	out := make([]Mapping, 0, len(all))
	for _, raw := range all {
		var m Mapping
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	sortMappings(out)
	return out, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
