package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gomodule/redigo/redis"
)

// KeyValueStore keeps JSON values under plain string keys of one logical DB.
type KeyValueStore struct {
	client *Client
}

func NewKeyValueStore(client *Client) *KeyValueStore {
	return &KeyValueStore{client: client}
}

// Store overwrites key unconditionally.
func (s *KeyValueStore) Store(ctx context.Context, key string, value interface{}) error {
	if key == "" {
		return ErrInvalidKey
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cannot marshal value for %s to JSON: %w", key, err)
	}

	_, err = s.client.do(ctx, "SET", key, data)
	return err
}

// Retrieve decodes the value at key into dst. A missing key is reported
// as found=false with a nil error.
func (s *KeyValueStore) Retrieve(ctx context.Context, key string, dst interface{}) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	data, found, err := s.client.fetch(ctx, "GET", key)
	if err != nil || !found {
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("%w: key %s: %w", ErrCorrupt, key, err)
	}
	return true, nil
}

func (s *KeyValueStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	_, err := s.client.do(ctx, "DEL", key)
	return err
}

func (s *KeyValueStore) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	return redis.Bool(s.client.do(ctx, "EXISTS", key))
}

// Clear runs FLUSHDB: every key of the configured DB is removed, whatever
// its prefix, including hashes written by SwapStore on the same DB.
// Only use it for tests and resets.
func (s *KeyValueStore) Clear(ctx context.Context) error {
	_, err := s.client.do(ctx, "FLUSHDB")
	return err
}

// Close releases the underlying client; it is idempotent.
func (s *KeyValueStore) Close() error {
	return s.client.Close()
}
