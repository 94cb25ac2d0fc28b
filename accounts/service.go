package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnknownUser is returned for a login under an unregistered name
	// when auto-registration is off.
	ErrUnknownUser = errors.New("unknown user")

	// ErrBadPassword is returned when the password does not match.
	ErrBadPassword = errors.New("incorrect password")
)

// Config tunes the Service.
type Config struct {
	// AutoRegister creates an account on the first login under a new name.
	AutoRegister bool

	// CacheTTL is how long a looked-up account stays cached.
	CacheTTL time.Duration

	// CleanupInterval is how often expired cache entries are purged.
	CleanupInterval time.Duration

	// Cost is the bcrypt cost for new hashes.
	Cost int
}

// DefaultConfig returns a Config that registers new names on first login.
func DefaultConfig() Config {
	return Config{
		AutoRegister:    true,
		CacheTTL:        5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
		Cost:            bcrypt.DefaultCost,
	}
}

// Service checks relay logins. It implements relay.Authenticator.
//
// Lookups go through a go-cache layer, and concurrent lookups of the same
// name share one store read through a singleflight group.
type Service struct {
	store Store
	cfg   Config
	log   logger.Logger
	cache *cache.Cache
	group singleflight.Group
}

// NewService creates a Service over store.
//
// Parameters:
//   - store: Where accounts are kept
//   - cfg: Registration and cache settings
//   - log: Logger for registrations and store failures
//
// Returns:
//   - A new *Service
func NewService(store Store, cfg Config, log logger.Logger) *Service {
	if cfg.Cost == 0 {
		cfg.Cost = bcrypt.DefaultCost
	}

	return &Service{
		store: store,
		cfg:   cfg,
		log:   log,
		cache: cache.New(cfg.CacheTTL, cfg.CleanupInterval),
	}
}

// Authenticate checks password against the stored hash for user,
// registering user first when auto-registration is on.
func (s *Service) Authenticate(ctx context.Context, user, password string) error {
	return s.authenticate(ctx, user, password, true)
}

func (s *Service) authenticate(ctx context.Context, user, password string, retry bool) error {
	acct, err := s.lookup(ctx, user)
	if errors.Is(err, ErrNoAccount) {
		if !s.cfg.AutoRegister {
			return ErrUnknownUser
		}

		err = s.Register(ctx, user, password)
		if errors.Is(err, ErrExists) && retry {
			// Lost a registration race; check against the winner once.
			return s.authenticate(ctx, user, password, false)
		}

		return err
	}
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword(acct.Hash, []byte(password)); err != nil {
		return ErrBadPassword
	}

	return nil
}

// Register creates an account for user.
//
// Parameters:
//   - ctx: Context for the store write
//   - user: Account name
//   - password: Plain password, stored only as a bcrypt hash
//
// Returns:
//   - ErrExists if the name is taken, or a hashing or store error
func (s *Service) Register(ctx context.Context, user, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.Cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.Create(ctx, Account{Name: user, Hash: hash, Created: time.Now()}); err != nil {
		return err
	}

	s.cache.Delete(user)
	s.log.Info("account registered", logger.Field{Key: "user", Value: user})
	return nil
}

// Forget removes user's account and its cached copy.
func (s *Service) Forget(ctx context.Context, user string) error {
	s.cache.Delete(user)
	return s.store.Delete(ctx, user)
}

// lookup reads an account through the cache. Misses are not cached so a
// fresh registration is visible at once.
func (s *Service) lookup(ctx context.Context, user string) (Account, error) {
	if val, found := s.cache.Get(user); found {
		return val.(Account), nil
	}

	val, err, _ := s.group.Do(user, func() (interface{}, error) {
		if cached, found := s.cache.Get(user); found {
			return cached, nil
		}

		acct, err := s.store.Get(ctx, user)
		if err != nil {
			if !errors.Is(err, ErrNoAccount) {
				s.log.Error("account lookup failed", logger.Field{Key: "user", Value: user}, logger.Err(err))
			}
			return nil, err
		}

		s.cache.Set(user, acct, s.cfg.CacheTTL)
		return acct, nil
	})
	if err != nil {
		return Account{}, err
	}

	return val.(Account), nil
}
