package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"agegate/internal/document"
	"agegate/pkg/platform/sentinel"
)

// KeyPrefix namespaces card records in Redis.
const KeyPrefix = "agegate:card:"

// RedisRegistry keeps cards as JSON strings under KeyPrefix+cardID.
type RedisRegistry struct {
	client redis.UniversalClient
}

func NewRedisRegistry(client redis.UniversalClient) *RedisRegistry {
	return &RedisRegistry{client: client}
}

func (r *RedisRegistry) Put(ctx context.Context, cardID string, record document.IdentityRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	if err := r.client.Set(ctx, KeyPrefix+cardID, payload, 0).Err(); err != nil {
		return fmt.Errorf("store card: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Resolve(ctx context.Context, cardID string) (*document.IdentityRecord, error) {
	payload, err := r.client.Get(ctx, KeyPrefix+cardID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get card: %w", err)
	}
	var record document.IdentityRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("decode card: %w", err)
	}
	return &record, nil
}

// Delete removes a card. Deleting an unknown card is not an error.
func (r *RedisRegistry) Delete(ctx context.Context, cardID string) error {
	if err := r.client.Del(ctx, KeyPrefix+cardID).Err(); err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}
