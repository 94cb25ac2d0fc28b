// Package config assembles relay settings from command-line flags, RELAY_*
// environment variables and .env files, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/cyberinferno/galaxy-relay/accounts"
	"github.com/cyberinferno/galaxy-relay/httpgate"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/relay"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/urfave/cli"
)

// Prefix is prepended to every environment variable name.
const Prefix = "RELAY_"

// EnvFileVar lists the .env files to load, comma separated.
const EnvFileVar = Prefix + "ENV_FILE"

// Config is everything cmd/relayd needs to start.
type Config struct {
	Relay    relay.Config
	HTTP     httpgate.Config
	Accounts accounts.Config

	// RedisAddr selects the Redis account store; empty keeps accounts in memory.
	RedisAddr   string
	RedisPrefix string

	// Auth turns on password checks at login.
	Auth bool

	Rules    string
	LogLevel zerolog.Level
	LogDir   string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Relay:       relay.DefaultConfig(),
		HTTP:        httpgate.DefaultConfig(":8080"),
		Accounts:    accounts.DefaultConfig(),
		RedisPrefix: "galaxy:account:",
		Rules:       "rftg",
		LogLevel:    zerolog.InfoLevel,
	}
}

// EnvFiles returns the files named by RELAY_ENV_FILE, or ".env" when it is
// unset.
func EnvFiles() []string {
	v, ok := os.LookupEnv(EnvFileVar)
	if !ok {
		return []string{".env"}
	}

	return lo.Compact(lo.Map(strings.Split(v, ","), func(f string, _ int) string {
		return strings.TrimSpace(f)
	}))
}

// LoadEnvFiles reads the given .env files into the process environment
// without overriding variables already set. Files that do not exist are
// skipped. Call it before the flags are parsed.
//
// Parameters:
//   - files: .env file paths, earlier files taking precedence
//
// Returns:
//   - An error for a file that exists but cannot be read or parsed
func LoadEnvFiles(files ...string) error {
	var present []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			present = append(present, f)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file %s: %w", f, err)
		}
	}

	if len(present) == 0 {
		return nil
	}

	if err := godotenv.Load(present...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}

	return nil
}

// Binder ties a Config to command-line flags. Each flag falls back to its
// RELAY_* variable and then to Default.
type Binder struct {
	cfg        Config
	maxPayload uint
	logLevel   string
	origins    cli.StringSlice
}

// NewBinder returns a Binder holding the defaults.
func NewBinder() *Binder {
	cfg := Default()
	return &Binder{
		cfg:        cfg,
		maxPayload: uint(cfg.Relay.MaxPayload),
		logLevel:   cfg.LogLevel.String(),
	}
}

func envVar(name string) string {
	return Prefix + name
}

// Flags returns the flags to install on a cli.App. Parsing them fills the
// Binder; read the result with Config.
func (b *Binder) Flags() []cli.Flag {
	c := &b.cfg
	return []cli.Flag{
		cli.StringFlag{
			Name:        "addr",
			Usage:       "TCP `address` for relay clients",
			EnvVar:      envVar("ADDR"),
			Value:       c.Relay.Addr,
			Destination: &c.Relay.Addr,
		},
		cli.StringFlag{
			Name:        "protocol-version",
			Usage:       "Protocol `version` LOGIN must carry; empty accepts any",
			EnvVar:      envVar("PROTOCOL_VERSION"),
			Value:       c.Relay.ProtocolVersion,
			Destination: &c.Relay.ProtocolVersion,
		},
		cli.UintFlag{
			Name:        "max-payload",
			Usage:       "Largest inbound payload in `bytes`",
			EnvVar:      envVar("MAX_PAYLOAD"),
			Value:       b.maxPayload,
			Destination: &b.maxPayload,
		},
		cli.IntFlag{
			Name:        "max-name-length",
			Usage:       "Longest accepted login name",
			EnvVar:      envVar("MAX_NAME_LENGTH"),
			Value:       c.Relay.MaxNameLength,
			Destination: &c.Relay.MaxNameLength,
		},
		cli.IntFlag{
			Name:        "event-queue",
			Usage:       "Pending events the relay loop buffers",
			EnvVar:      envVar("EVENT_QUEUE"),
			Value:       c.Relay.EventQueue,
			Destination: &c.Relay.EventQueue,
		},
		cli.DurationFlag{
			Name:        "auth-timeout",
			Usage:       "Time allowed for one password check",
			EnvVar:      envVar("AUTH_TIMEOUT"),
			Value:       c.Relay.AuthTimeout,
			Destination: &c.Relay.AuthTimeout,
		},
		cli.IntFlag{
			Name:        "outbound-queue",
			Usage:       "Pending writes per client before it is dropped",
			EnvVar:      envVar("OUTBOUND_QUEUE"),
			Value:       c.Relay.OutboundQueue,
			Destination: &c.Relay.OutboundQueue,
		},
		cli.IntFlag{
			Name:        "min-seats",
			Usage:       "Fewest seats a session may have",
			EnvVar:      envVar("MIN_SEATS"),
			Value:       c.Relay.Lobby.MinSeats,
			Destination: &c.Relay.Lobby.MinSeats,
		},
		cli.IntFlag{
			Name:        "max-seats",
			Usage:       "Most seats a session may have",
			EnvVar:      envVar("MAX_SEATS"),
			Value:       c.Relay.Lobby.MaxSeats,
			Destination: &c.Relay.Lobby.MaxSeats,
		},
		cli.IntFlag{
			Name:        "history-limit",
			Usage:       "Chat and log lines kept per session",
			EnvVar:      envVar("HISTORY_LIMIT"),
			Value:       c.Relay.Lobby.HistoryLimit,
			Destination: &c.Relay.Lobby.HistoryLimit,
		},
		cli.StringFlag{
			Name:        "http-addr",
			Usage:       "HTTP `address` for websockets and metrics",
			EnvVar:      envVar("HTTP_ADDR"),
			Value:       c.HTTP.Addr,
			Destination: &c.HTTP.Addr,
		},
		cli.StringSliceFlag{
			Name:   "origins",
			Usage:  "Extra websocket `origin` patterns; may be repeated",
			EnvVar: envVar("ORIGINS"),
			Value:  &b.origins,
		},
		cli.BoolFlag{
			Name:        "auth",
			Usage:       "Check passwords at login",
			EnvVar:      envVar("AUTH"),
			Destination: &c.Auth,
		},
		cli.BoolTFlag{
			Name:        "auto-register",
			Usage:       "Create an account on first login",
			EnvVar:      envVar("AUTO_REGISTER"),
			Destination: &c.Accounts.AutoRegister,
		},
		cli.DurationFlag{
			Name:        "account-cache-ttl",
			Usage:       "How long account lookups are cached",
			EnvVar:      envVar("ACCOUNT_CACHE_TTL"),
			Value:       c.Accounts.CacheTTL,
			Destination: &c.Accounts.CacheTTL,
		},
		cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis `address` for accounts; empty keeps them in memory",
			EnvVar:      envVar("REDIS_ADDR"),
			Value:       c.RedisAddr,
			Destination: &c.RedisAddr,
		},
		cli.StringFlag{
			Name:        "redis-prefix",
			Usage:       "Key `prefix` for stored accounts",
			EnvVar:      envVar("REDIS_PREFIX"),
			Value:       c.RedisPrefix,
			Destination: &c.RedisPrefix,
		},
		cli.StringFlag{
			Name:        "rules",
			Usage:       "Registered rules engine `name`",
			EnvVar:      envVar("RULES"),
			Value:       c.Rules,
			Destination: &c.Rules,
		},
		cli.StringFlag{
			Name:        "log-level,l",
			Usage:       "Log `level` for output",
			EnvVar:      envVar("LOG_LEVEL"),
			Value:       b.logLevel,
			Destination: &b.logLevel,
		},
		cli.StringFlag{
			Name:        "log-dir",
			Usage:       "Also write daily log files to `DIR`",
			EnvVar:      envVar("LOG_DIR"),
			Value:       c.LogDir,
			Destination: &c.LogDir,
		},
	}
}

// Config returns the parsed settings.
//
// Returns:
//   - The Config built from flags, environment and defaults
//   - An error for a value out of range or inconsistent settings
func (b *Binder) Config() (Config, error) {
	cfg := b.cfg

	if b.maxPayload > math.MaxUint32 {
		return Config{}, fmt.Errorf("%sMAX_PAYLOAD: %d is out of range", Prefix, b.maxPayload)
	}
	cfg.Relay.MaxPayload = uint32(b.maxPayload)

	if origins := lo.Compact([]string(b.origins)); len(origins) > 0 {
		cfg.HTTP.OriginPatterns = origins
	}

	level, err := logger.ParseLevel(b.logLevel)
	if err != nil {
		return Config{}, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err)
	}
	cfg.LogLevel = level

	return cfg, cfg.Validate()
}

// Validate reports settings the relay cannot run with.
func (c Config) Validate() error {
	l := c.Relay.Lobby
	switch {
	case l.MinSeats < 1:
		return fmt.Errorf("%sMIN_SEATS must be at least 1", Prefix)
	case l.MaxSeats < l.MinSeats:
		return fmt.Errorf("%sMAX_SEATS %d is below %sMIN_SEATS %d", Prefix, l.MaxSeats, Prefix, l.MinSeats)
	case c.Relay.MaxNameLength < 1:
		return fmt.Errorf("%sMAX_NAME_LENGTH must be positive", Prefix)
	case c.Relay.EventQueue < 1:
		return fmt.Errorf("%sEVENT_QUEUE must be positive", Prefix)
	}

	return nil
}
