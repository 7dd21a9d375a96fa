package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-revocation/internal/core/port"
)

const defaultDurablePrefix = "revoked"

const scanBatchSize = 200

// DurableTier is the authoritative storage tier backed by Redis. It survives
// process restarts and is shared across service instances; Redis enforces TTL
// natively so nothing here ever needs sweeping.
type DurableTier struct {
	client *red.Client
	prefix string
}

// NewDurableTier wires a Redis client into the durable revocation tier.
func NewDurableTier(client *red.Client, keyPrefix string) *DurableTier {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultDurablePrefix
	}

	return &DurableTier{client: client, prefix: prefix}
}

// Get fetches the payload and its remaining lifetime in one round trip.
func (t *DurableTier) Get(ctx context.Context, key string) (*port.TierEntry, error) {
	fullKey := t.key(key)
	if fullKey == "" {
		return nil, errors.New("key is required")
	}

	pipe := t.client.Pipeline()
	getCmd := pipe.Get(ctx, fullKey)
	ttlCmd := pipe.PTTL(ctx, fullKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, red.Nil) {
		return nil, fmt.Errorf("redis get revocation entry: %w", err)
	}

	value, err := getCmd.Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get revocation entry: %w", err)
	}

	entry := &port.TierEntry{Value: value}
	if remaining := ttlCmd.Val(); remaining > 0 {
		entry.ExpiresAt = time.Now().UTC().Add(remaining)
	}
	return entry, nil
}

// Put stores the payload with the supplied TTL.
func (t *DurableTier) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	fullKey := t.key(key)
	if fullKey == "" {
		return errors.New("key is required")
	}
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}

	if err := t.client.Set(ctx, fullKey, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revocation entry: %w", err)
	}
	return nil
}

// Delete removes the key when present.
func (t *DurableTier) Delete(ctx context.Context, key string) error {
	fullKey := t.key(key)
	if fullKey == "" {
		return errors.New("key is required")
	}

	if err := t.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("redis delete revocation entry: %w", err)
	}
	return nil
}

// DeleteMatching removes every key matching the glob-style pattern via SCAN,
// deleting in batches to bound round trips.
func (t *DurableTier) DeleteMatching(ctx context.Context, pattern string) error {
	fullPattern := t.key(pattern)
	if fullPattern == "" {
		return errors.New("pattern is required")
	}

	iter := t.client.Scan(ctx, 0, fullPattern, scanBatchSize).Iterator()
	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize {
			if err := t.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete matching keys: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan matching keys: %w", err)
	}
	if len(batch) > 0 {
		if err := t.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete matching keys: %w", err)
		}
	}
	return nil
}

func (t *DurableTier) key(k string) string {
	trimmed := strings.TrimSpace(k)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", t.prefix, trimmed)
}

var _ port.Tier = (*DurableTier)(nil)
