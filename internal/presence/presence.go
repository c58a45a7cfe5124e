package presence

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const onlineTTL = 24 * time.Hour

// Store keeps user online/offline flags in Redis so presence survives a
// process restart and can be read by other services.
type Store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(userID string) string {
	return s.prefix + ":presence:" + userID
}

func (s *Store) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, s.key(userID), "1", onlineTTL).Err()
}

func (s *Store) SetOffline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, s.key(userID), "0", onlineTTL).Err()
}

// IsOnline reports whether userID currently holds a live socket connection.
// An absent key reads as offline.
func (s *Store) IsOnline(ctx context.Context, userID string) (bool, error) {
	v, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "1", nil
}
