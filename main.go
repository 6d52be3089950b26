package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/zlnvch/notesync/cache/redis"
	"github.com/zlnvch/notesync/client"
	"github.com/zlnvch/notesync/config"
	"github.com/zlnvch/notesync/hooks"
	"github.com/zlnvch/notesync/logging"
	"github.com/zlnvch/notesync/session"
	"github.com/zlnvch/notesync/session/dynamo"
	sessionredis "github.com/zlnvch/notesync/session/redis"
	"github.com/zlnvch/notesync/worker"
)

const usage = `usage: notesync [global flags] <command> [args]

commands:
  serve                         run the local UI server
  register -email E -password P create an account
  login -email E -password P    sign in and persist the session
  logout                        sign out
  whoami                        show the signed-in user
  account -email E -password P  update the signed-in user
  notes <list|create|show|edit|delete> [-team ID]
  teams <list|create|show|delete|members|add-member|remove-member>

Run "notesync -h" for global flags.`

// app holds everything a command needs.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	sessions *session.Store
	client   *client.Client
	hookOpts hooks.Options
}

func main() {
	cfg, args, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	a, err := newApp(shutdownCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start")
	}

	if err := a.run(shutdownCtx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	persister, err := newPersister(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	sessions := session.NewStore(persister, logger)
	if err := sessions.Init(ctx); err != nil {
		return nil, err
	}

	c := client.New(cfg.API.BaseURL, sessions, client.Options{
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout},
		Navigator: client.NavigatorFunc(func(path string) {
			if path == client.LoginRoute {
				fmt.Fprintln(os.Stderr, "Session expired, run 'notesync login' to sign in again.")
			}
		}),
		Logger:    logger,
		RateLimit: rate.Limit(cfg.API.RateLimit),
		Burst:     cfg.API.Burst,
	})

	hookOpts := hooks.Options{Logger: logger}
	if cfg.Sync.RedisEndpoint != "" {
		bus, err := redis.NewRedisBus(ctx, cfg.DevMode, cfg.Sync.RedisEndpoint, logger)
		if err != nil {
			return nil, fmt.Errorf("create redis bus: %w", err)
		}
		hookOpts.Bus = bus
	}

	return &app{cfg: cfg, logger: logger, sessions: sessions, client: c, hookOpts: hookOpts}, nil
}

func newPersister(ctx context.Context, cfg *config.Config) (session.Persister, error) {
	switch cfg.Session.Backend {
	case config.SessionMemory:
		return session.NewMemoryPersister(), nil
	case config.SessionFile:
		return session.NewFilePersister(cfg.Session.Path), nil
	case config.SessionRedis:
		return sessionredis.NewRedisSessionPersister(ctx, cfg.DevMode, cfg.Session.RedisEndpoint, cfg.Session.Profile)
	case config.SessionDynamo:
		return dynamo.NewDynamoSessionPersister(ctx, cfg.DevMode, cfg.Session.DynamoEndpoint, cfg.Session.DynamoTable, cfg.Session.Profile)
	}
	return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
}

// startRefresher gives the hooks a batcher that coalesces invalidations
// arriving from other processes.
func (a *app) startRefresher(shutdownCtx context.Context) {
	batcher := worker.NewRefreshBatcher(int(a.cfg.Sync.RefreshTick/time.Millisecond), a.logger)
	go batcher.Run(shutdownCtx)
	a.hookOpts.Refresher = batcher
}

func (a *app) listen(shutdownCtx context.Context, name string, l interface {
	Listen(ctx context.Context) error
}) {
	if a.hookOpts.Bus == nil {
		return
	}
	if err := l.Listen(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Str("hook", name).Msg("Failed to subscribe to invalidations")
	}
}
