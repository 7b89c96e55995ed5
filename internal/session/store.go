// Package session tracks the one active login per user in redis.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrSuperseded = errors.New("session superseded")

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(userID uint) string {
	return fmt.Sprintf("session:user:%d", userID)
}

// Start opens a new session for userID, replacing any previous one.
func (s *Store) Start(ctx context.Context, userID uint, ttl time.Duration) (string, error) {
	sid := uuid.NewString()
	if err := s.rdb.Set(ctx, key(userID), sid, ttl).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return sid, nil
}

// Validate reports ErrSuperseded when sid is no longer the user's active session.
func (s *Store) Validate(ctx context.Context, userID uint, sid string) error {
	current, err := s.rdb.Get(ctx, key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrSuperseded
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if current != sid {
		return ErrSuperseded
	}
	return nil
}

// End deletes the session if sid is still the active one.
func (s *Store) End(ctx context.Context, userID uint, sid string) error {
	if err := s.Validate(ctx, userID, sid); err != nil {
		if errors.Is(err, ErrSuperseded) {
			return nil
		}
		return err
	}
	return s.rdb.Del(ctx, key(userID)).Err()
}

// Revoke drops whatever session the user has, used when an account is disabled.
func (s *Store) Revoke(ctx context.Context, userID uint) error {
	return s.rdb.Del(ctx, key(userID)).Err()
}
