package prompts

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store keeps edited prompt templates in Redis and falls back to the
// compiled-in defaults for anything unset.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewStoreWithClient(redis.NewClient(opts)), nil
}

func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{client: client, prefix: "prompt:"}
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

// Get returns the stored template for name, or the default when none has
// been saved. Unknown names are an error.
func (s *Store) Get(ctx context.Context, name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	template, err := s.client.Get(ctx, s.key(name)).Result()
	if errors.Is(err, redis.Nil) {
		return Default(name)
	}
	if err != nil {
		return "", fmt.Errorf("get prompt %s: %w", name, err)
	}
	return template, nil
}

// Set stores an edited template. Templates persist without expiry.
func (s *Store) Set(ctx context.Context, name, template string) error {
	if !ValidName(name) {
		return fmt.Errorf("unknown prompt template %q", name)
	}
	if err := s.client.Set(ctx, s.key(name), template, 0).Err(); err != nil {
		return fmt.Errorf("set prompt %s: %w", name, err)
	}
	return nil
}

// Reset drops an edited template so Get serves the default again.
func (s *Store) Reset(ctx context.Context, name string) error {
	if !ValidName(name) {
		return fmt.Errorf("unknown prompt template %q", name)
	}
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("reset prompt %s: %w", name, err)
	}
	return nil
}

// All returns every template, stored or default, keyed by name.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(Names))
	for _, name := range Names {
		template, err := s.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = template
	}
	return out, nil
}
