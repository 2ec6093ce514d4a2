package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const awaitingKeyPrefix = "assistant:awaiting_cancel:"

// AwaitingStore tracks which callers owe the assistant a cancellation id.
// Redis holds the flag so it survives restarts and is shared across replicas;
// GETDEL makes consumption atomic, so two concurrent messages from the same
// caller cannot both claim the pending cancellation.
type AwaitingStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewAwaitingStore creates the store. A non-positive ttl defaults to 10 minutes.
func NewAwaitingStore(client redis.Cmdable, ttl time.Duration) *AwaitingStore {
	if client == nil {
		panic("assistant: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &AwaitingStore{client: client, ttl: ttl}
}

// MarkAwaitingCancellation flags the caller as owing an appointment id.
// The flag expires on its own if the caller never follows up.
func (s *AwaitingStore) MarkAwaitingCancellation(ctx context.Context, userID string) error {
	if err := s.client.Set(ctx, awaitingKeyPrefix+userID, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("assistant: set awaiting flag failed: %w", err)
	}
	return nil
}

// ConsumeAwaitingCancellation atomically reads and clears the caller's flag,
// reporting whether it was set.
func (s *AwaitingStore) ConsumeAwaitingCancellation(ctx context.Context, userID string) (bool, error) {
	err := s.client.GetDel(ctx, awaitingKeyPrefix+userID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("assistant: consume awaiting flag failed: %w", err)
	}
	return true, nil
}
