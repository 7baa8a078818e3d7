package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to the redis
// backend of a RedisVault.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisVault stores the sealed session record under a device-scoped key
// in a local redis instance. It exists for kiosk fleets where several
// lanes share one on-premise redis; the record is sealed with the same
// AEAD as the file vault, so redis only ever sees ciphertext.
type RedisVault struct {
	client *redis.Client
	prefix string
	device string
	box    *cipherBox
}

// NewRedisVault creates a vault keyed by deviceID. prefix namespaces the
// keys ("et" when empty).
func NewRedisVault(client *redis.Client, prefix, deviceID string, key []byte) (*RedisVault, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	if deviceID == "" {
		return nil, errors.New("device id required")
	}
	if prefix == "" {
		prefix = "et"
	}
	box, err := newCipherBox(key)
	if err != nil {
		return nil, err
	}
	return &RedisVault{client: client, prefix: prefix, device: deviceID, box: box}, nil
}

func (v *RedisVault) key() string {
	return v.prefix + ":session:" + v.device
}

// Save seals and stores the record. No TTL is set; validity is decided by
// the validator, not by redis expiry.
func (v *RedisVault) Save(ctx context.Context, s *Session) error {
	blob, err := v.box.seal(s)
	if err != nil {
		return err
	}
	if err := v.client.Set(ctx, v.key(), blob, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Load fetches and opens the sealed record. A missing key or an
// unreadable blob yields (nil, nil).
func (v *RedisVault) Load(ctx context.Context) (*Session, error) {
	blob, err := v.client.Get(ctx, v.key()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s, err := v.box.open(blob)
	if err != nil {
		_ = v.Clear(ctx)
		return nil, nil
	}
	return s, nil
}

// Clear deletes the record. Deleting an absent key is a no-op.
func (v *RedisVault) Clear(ctx context.Context) error {
	if err := v.client.Del(ctx, v.key()).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
