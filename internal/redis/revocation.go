package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList remembers signed-out session ids until their token would have expired anyway.
type RevocationList struct {
	client redis.UniversalClient
}

func NewRevocationList(client redis.UniversalClient) *RevocationList {
	return &RevocationList{client: client}
}

func revokedKey(id string) string {
	return "session:revoked:" + id
}

// Revoke marks id as revoked until expiresAt. Already expired sessions are ignored.
func (r *RevocationList) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(id), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (r *RevocationList) IsRevoked(ctx context.Context, id string) (bool, error) {
	err := r.client.Get(ctx, revokedKey(id)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return true, nil
}
