package accounts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/relay"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var _ relay.Authenticator = (*Service)(nil)

type countingStore struct {
	*MemoryStore
	gets  atomic.Int32
	delay time.Duration
}

func (s *countingStore) Get(ctx context.Context, name string) (Account, error) {
	s.gets.Add(1)
	time.Sleep(s.delay)
	return s.MemoryStore.Get(ctx, name)
}

// vanishingStore never finds an account but refuses to create one, like a
// Redis key evicted between SETNX and GET.
type vanishingStore struct {
	*MemoryStore
	gets atomic.Int32
}

func (s *vanishingStore) Get(context.Context, string) (Account, error) {
	s.gets.Add(1)
	return Account{}, ErrNoAccount
}

func (s *vanishingStore) Create(context.Context, Account) error {
	return ErrExists
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Cost = bcrypt.MinCost
	return cfg
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	t.Run("missing accounts report ErrNoAccount", func(t *testing.T) {
		_, err := s.Get(ctx, "alice")
		assert.ErrorIs(t, err, ErrNoAccount)
	})

	t.Run("create refuses a taken name", func(t *testing.T) {
		require.NoError(t, s.Create(ctx, Account{Name: "alice", Hash: []byte("x")}))
		assert.ErrorIs(t, s.Create(ctx, Account{Name: "alice", Hash: []byte("y")}), ErrExists)

		a, err := s.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), a.Hash)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, "alice"))
		require.NoError(t, s.Delete(ctx, "alice"))
		assert.Equal(t, 0, s.Len())
	})

	t.Run("cancelled context fails fast", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Get(cctx, "alice")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestService(t *testing.T) {
	ctx := context.Background()

	t.Run("first login registers the name", func(t *testing.T) {
		store := NewMemoryStore()
		svc := NewService(store, testConfig(), logger.Nop())

		require.NoError(t, svc.Authenticate(ctx, "alice", "secret"))
		assert.Equal(t, 1, store.Len())
		require.NoError(t, svc.Authenticate(ctx, "alice", "secret"))
		assert.ErrorIs(t, svc.Authenticate(ctx, "alice", "wrong"), ErrBadPassword)
	})

	t.Run("unknown users are refused without auto-registration", func(t *testing.T) {
		cfg := testConfig()
		cfg.AutoRegister = false
		svc := NewService(NewMemoryStore(), cfg, logger.Nop())

		assert.ErrorIs(t, svc.Authenticate(ctx, "bob", "pw"), ErrUnknownUser)

		require.NoError(t, svc.Register(ctx, "bob", "pw"))
		assert.NoError(t, svc.Authenticate(ctx, "bob", "pw"))
		assert.ErrorIs(t, svc.Register(ctx, "bob", "other"), ErrExists)
	})

	t.Run("a registration race is retried only once", func(t *testing.T) {
		store := &vanishingStore{MemoryStore: NewMemoryStore()}
		svc := NewService(store, testConfig(), logger.Nop())

		assert.ErrorIs(t, svc.Authenticate(ctx, "dora", "pw"), ErrExists)
		assert.EqualValues(t, 2, store.gets.Load())
	})

	t.Run("lookups are cached", func(t *testing.T) {
		store := &countingStore{MemoryStore: NewMemoryStore()}
		svc := NewService(store, testConfig(), logger.Nop())
		require.NoError(t, svc.Register(ctx, "carol", "pw"))

		for i := 0; i < 3; i++ {
			require.NoError(t, svc.Authenticate(ctx, "carol", "pw"))
		}
		assert.EqualValues(t, 1, store.gets.Load())
	})

	t.Run("forget drops the cached copy", func(t *testing.T) {
		cfg := testConfig()
		cfg.AutoRegister = false
		svc := NewService(NewMemoryStore(), cfg, logger.Nop())
		require.NoError(t, svc.Register(ctx, "dave", "pw"))
		require.NoError(t, svc.Authenticate(ctx, "dave", "pw"))

		require.NoError(t, svc.Forget(ctx, "dave"))
		assert.ErrorIs(t, svc.Authenticate(ctx, "dave", "pw"), ErrUnknownUser)
	})

	t.Run("concurrent lookups share one store read", func(t *testing.T) {
		store := &countingStore{MemoryStore: NewMemoryStore(), delay: 20 * time.Millisecond}
		svc := NewService(store, testConfig(), logger.Nop())
		require.NoError(t, svc.Register(ctx, "erin", "pw"))

		var wg sync.WaitGroup
		errs := make([]error, 8)
		for i := range errs {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = svc.lookup(ctx, "erin")
			}()
		}
		wg.Wait()

		for _, err := range errs {
			require.NoError(t, err)
		}
		assert.Less(t, store.gets.Load(), int32(8))
	})
}

func TestRedisStore(t *testing.T) {
	t.Run("store errors are wrapped, not reported as missing", func(t *testing.T) {
		client := redis.NewClient(&redis.Options{
			Addr:        "127.0.0.1:1",
			DialTimeout: 100 * time.Millisecond,
			MaxRetries:  -1,
		})
		defer client.Close()

		s := NewRedisStore(client, "test:")
		_, err := s.Get(context.Background(), "alice")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoAccount)
		assert.Contains(t, err.Error(), "redis get error")
	})

	t.Run("keys carry the prefix", func(t *testing.T) {
		s := NewRedisStore(nil, "galaxy:account:")
		assert.Equal(t, "galaxy:account:alice", s.key("alice"))
	})
}
