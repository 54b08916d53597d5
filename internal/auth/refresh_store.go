package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshStore keeps one active refresh token per identity in Redis.
// Rotating the token on every refresh invalidates the previous one.
type RefreshStore struct {
	client *redis.Client
}

// NewRefreshStore constructs a RefreshStore.
func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client}
}

func refreshKey(userID int64) string {
	return fmt.Sprintf("refresh_token:%d", userID)
}

// Save stores the active refresh token for the identity.
func (s *RefreshStore) Save(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKey(userID), token, ttl).Err()
}

// Matches reports whether token is the currently active refresh token for
// the identity.
func (s *RefreshStore) Matches(ctx context.Context, userID int64, token string) (bool, error) {
	stored, err := s.client.Get(ctx, refreshKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return stored == token, nil
}

// Delete drops the stored refresh token, ending the refresh chain.
func (s *RefreshStore) Delete(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, refreshKey(userID)).Err()
}
