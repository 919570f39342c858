package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// CredentialStore хранит токен backend строкой под одним ключом без TTL:
// срок жизни токена определяет backend, а не витрина.
type CredentialStore struct {
	db  *redis.Client
	key string
}

// NewCredentialStore создаёт хранилище токена под ключом key.
func NewCredentialStore(c *Cache, key string) *CredentialStore {
	return &CredentialStore{db: c.Db, key: key}
}

func (s *CredentialStore) Get(ctx context.Context) (string, bool, error) {
	const op = "cache.CredentialStore.Get"
	token, err := s.db.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return token, token != "", nil
}

func (s *CredentialStore) Set(ctx context.Context, token string) error {
	const op = "cache.CredentialStore.Set"
	if err := s.db.Set(ctx, s.key, token, 0).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	const op = "cache.CredentialStore.Clear"
	if err := s.db.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
