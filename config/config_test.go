package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

func parse(t *testing.T, args ...string) (Config, error) {
	t.Helper()

	b := NewBinder()
	app := cli.NewApp()
	app.Writer = io.Discard
	app.ErrWriter = io.Discard
	app.Flags = b.Flags()

	var cfg Config
	app.Action = func(*cli.Context) error {
		var err error
		cfg, err = b.Config()
		return err
	}

	err := app.Run(append([]string{"relayd"}, args...))
	return cfg, err
}

func TestBinder(t *testing.T) {
	t.Run("nothing set yields the defaults", func(t *testing.T) {
		cfg, err := parse(t)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
		assert.Equal(t, ":16309", cfg.Relay.Addr)
	})

	t.Run("variables override each field", func(t *testing.T) {
		for k, v := range map[string]string{
			"RELAY_ADDR":             "127.0.0.1:7000",
			"RELAY_PROTOCOL_VERSION": "0.9.5",
			"RELAY_MAX_PAYLOAD":      "4096",
			"RELAY_AUTH_TIMEOUT":     "2s",
			"RELAY_MAX_SEATS":        "4",
			"RELAY_HTTP_ADDR":        ":9000",
			"RELAY_ORIGINS":          "example.com, *.example.org",
			"RELAY_AUTH":             "true",
			"RELAY_AUTO_REGISTER":    "false",
			"RELAY_REDIS_ADDR":       "redis:6379",
			"RELAY_LOG_LEVEL":        "debug",
		} {
			t.Setenv(k, v)
		}

		cfg, err := parse(t)
		require.NoError(t, err)

		assert.Equal(t, "127.0.0.1:7000", cfg.Relay.Addr)
		assert.Equal(t, "0.9.5", cfg.Relay.ProtocolVersion)
		assert.EqualValues(t, 4096, cfg.Relay.MaxPayload)
		assert.Equal(t, 2*time.Second, cfg.Relay.AuthTimeout)
		assert.Equal(t, 4, cfg.Relay.Lobby.MaxSeats)
		assert.Equal(t, ":9000", cfg.HTTP.Addr)
		assert.Equal(t, []string{"example.com", "*.example.org"}, cfg.HTTP.OriginPatterns)
		assert.True(t, cfg.Auth)
		assert.False(t, cfg.Accounts.AutoRegister)
		assert.Equal(t, "redis:6379", cfg.RedisAddr)
		assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	})

	t.Run("flags take precedence over variables", func(t *testing.T) {
		t.Setenv("RELAY_ADDR", ":7000")
		t.Setenv("RELAY_RULES", "practice")

		cfg, err := parse(t, "--addr", ":7100", "-l", "warn")
		require.NoError(t, err)
		assert.Equal(t, ":7100", cfg.Relay.Addr)
		assert.Equal(t, "practice", cfg.Rules)
		assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel)
	})

	t.Run("malformed variables name the setting", func(t *testing.T) {
		for name, tc := range map[string]struct{ val, want string }{
			"RELAY_MAX_SEATS":    {"six", "max-seats"},
			"RELAY_AUTH_TIMEOUT": {"soon", "auth-timeout"},
			"RELAY_AUTH":         {"maybe", "flag auth"},
			"RELAY_MAX_PAYLOAD":  {"-1", "max-payload"},
			"RELAY_LOG_LEVEL":    {"loud", "RELAY_LOG_LEVEL"},
		} {
			t.Run(name, func(t *testing.T) {
				t.Setenv(name, tc.val)
				_, err := parse(t)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.want)
			})
		}
	})

	t.Run("a payload limit beyond 32 bits is rejected", func(t *testing.T) {
		_, err := parse(t, "--max-payload", "4294967296")
		assert.ErrorContains(t, err, "RELAY_MAX_PAYLOAD")
	})

	t.Run("inconsistent seat bounds are rejected", func(t *testing.T) {
		_, err := parse(t, "--min-seats", "5", "--max-seats", "3")
		assert.ErrorContains(t, err, "RELAY_MAX_SEATS")

		_, err = parse(t, "--min-seats", "0")
		assert.ErrorContains(t, err, "RELAY_MIN_SEATS")
	})
}

func TestEnvFiles(t *testing.T) {
	t.Run("defaults to .env", func(t *testing.T) {
		t.Setenv(EnvFileVar, "")
		require.NoError(t, os.Unsetenv(EnvFileVar))
		assert.Equal(t, []string{".env"}, EnvFiles())
	})

	t.Run("splits the variable", func(t *testing.T) {
		t.Setenv(EnvFileVar, "a.env, ,b.env")
		assert.Equal(t, []string{"a.env", "b.env"}, EnvFiles())
	})
}

func TestLoadEnvFiles(t *testing.T) {
	t.Run("env files fill unset variables only", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, ".env")
		require.NoError(t, os.WriteFile(path, []byte("RELAY_RULES=practice\nRELAY_HTTP_ADDR=:7001\n"), 0o600))

		t.Setenv("RELAY_HTTP_ADDR", ":7002")
		t.Setenv("RELAY_RULES", "")
		require.NoError(t, os.Unsetenv("RELAY_RULES"))

		require.NoError(t, LoadEnvFiles(filepath.Join(dir, "missing.env"), path))

		cfg, err := parse(t)
		require.NoError(t, err)
		assert.Equal(t, "practice", cfg.Rules)
		assert.Equal(t, ":7002", cfg.HTTP.Addr)
	})

	t.Run("a malformed file is reported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.env")
		require.NoError(t, os.WriteFile(path, []byte("RELAY_RULES='unterminated\n"), 0o600))

		assert.Error(t, LoadEnvFiles(path))
	})
}
