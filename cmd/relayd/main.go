// Command relayd runs the game relay: TCP clients on the relay address and
// websocket clients, metrics and health checks on the HTTP address.
//
// Every setting is a flag with a RELAY_* variable behind it; .env files
// named by RELAY_ENV_FILE (default .env) fill variables that are unset.
// Rules engines register themselves with the engine package; link the one
// named by RELAY_RULES into this binary with a blank import.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cyberinferno/galaxy-relay/accounts"
	"github.com/cyberinferno/galaxy-relay/config"
	"github.com/cyberinferno/galaxy-relay/engine"
	"github.com/cyberinferno/galaxy-relay/httpgate"
	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/metrics"
	"github.com/cyberinferno/galaxy-relay/relay"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"
)

const serviceName = "relayd"

func main() {
	if err := config.LoadEnvFiles(config.EnvFiles()...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	binder := config.NewBinder()

	app := cli.NewApp()
	app.Name = serviceName
	app.Usage = "relay Race for the Galaxy games between networked players"
	app.Version = "0.9.5"
	app.Flags = binder.Flags()
	app.Action = func(c *cli.Context) error {
		cfg, err := binder.Config()
		if err != nil {
			return err
		}

		return run(cfg)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	rules, err := engine.Lookup(cfg.Rules)
	if err != nil {
		return fmt.Errorf("%w (registered: %v)", err, engine.Names())
	}
	if err := rules.ReadCards(); err != nil {
		return fmt.Errorf("read cards: %w", err)
	}

	m := metrics.New()
	opts := []relay.Option{relay.WithMetrics(m)}
	if cfg.Auth {
		opts = append(opts, relay.WithAuthenticator(accounts.NewService(newStore(cfg, log), cfg.Accounts, log)))
	}

	server := relay.NewServer(cfg.Relay, rules, log, opts...)
	gateway := httpgate.New(cfg.HTTP, server.Transport(), m.Handler(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.ListenAndServe(gctx) })
	g.Go(func() error { return gateway.ListenAndServe(gctx) })

	log.Info("relay started",
		logger.Field{Key: "addr", Value: cfg.Relay.Addr},
		logger.Field{Key: "http", Value: cfg.HTTP.Addr},
		logger.Field{Key: "rules", Value: cfg.Rules},
	)

	return g.Wait()
}

func newLogger(cfg config.Config) (logger.Logger, error) {
	if cfg.LogDir == "" {
		return logger.NewZerologLogger(os.Stdout, serviceName, cfg.LogLevel), nil
	}

	return logger.NewZerologFileLogger(serviceName, cfg.LogDir, cfg.LogLevel)
}

func newStore(cfg config.Config, log logger.Logger) accounts.Store {
	if cfg.RedisAddr == "" {
		log.Warn("accounts kept in memory; they are lost on restart")
		return accounts.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return accounts.NewRedisStore(client, cfg.RedisPrefix)
}
