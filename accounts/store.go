// Package accounts validates relay logins against stored bcrypt hashes.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cyberinferno/galaxy-relay/safemap"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrNoAccount is returned when no account exists under the name.
	ErrNoAccount = errors.New("no such account")

	// ErrExists is returned when creating an account whose name is taken.
	ErrExists = errors.New("account already exists")
)

// Account is one registered player.
type Account struct {
	Name    string    `json:"name"`
	Hash    []byte    `json:"hash"`
	Created time.Time `json:"created"`
}

// Store persists accounts by name.
type Store interface {
	// Get returns the account or ErrNoAccount.
	Get(ctx context.Context, name string) (Account, error)

	// Create adds a new account or fails with ErrExists.
	Create(ctx context.Context, a Account) error

	// Delete removes the account. Deleting a missing account is not an error.
	Delete(ctx context.Context, name string) error
}

// MemoryStore keeps accounts in process memory.
type MemoryStore struct {
	accounts *safemap.SafeMap[string, Account]
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: safemap.NewSafeMap[string, Account]()}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, name string) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	a, ok := s.accounts.Load(name)
	if !ok {
		return Account{}, ErrNoAccount
	}

	return a, nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, a Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, loaded := s.accounts.LoadOrStore(a.Name, a); loaded {
		return ErrExists
	}

	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.accounts.Delete(name)
	return nil
}

// Len returns the number of stored accounts.
func (s *MemoryStore) Len() int {
	return s.accounts.Len()
}

// RedisStore keeps accounts as JSON values under a key prefix, so several
// relays can share one account table.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a Redis client.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := NewRedisStore(client, "galaxy:account:")
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, name string) (Account, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Account{}, ErrNoAccount
	}
	if err != nil {
		return Account{}, fmt.Errorf("redis get error: %w", err)
	}

	var a Account
	if err := json.Unmarshal(val, &a); err != nil {
		return Account{}, fmt.Errorf("failed to unmarshal account %s: %w", name, err)
	}

	return a, nil
}

// Create implements Store. SETNX keeps concurrent registrations of the
// same name from overwriting each other.
func (s *RedisStore) Create(ctx context.Context, a Account) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	created, err := s.client.SetNX(ctx, s.key(a.Name), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx error: %w", err)
	}
	if !created {
		return ErrExists
	}

	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.key(name)).Err(); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	return nil
}
