// Package app composes the sync engine and its collaborators for one profile.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/matheus3301/matchchat/internal/api"
	"github.com/matheus3301/matchchat/internal/attachment"
	"github.com/matheus3301/matchchat/internal/bus"
	"github.com/matheus3301/matchchat/internal/config"
	"github.com/matheus3301/matchchat/internal/conversations"
	"github.com/matheus3301/matchchat/internal/logging"
	"github.com/matheus3301/matchchat/internal/outbox"
	"github.com/matheus3301/matchchat/internal/poll"
	"github.com/matheus3301/matchchat/internal/receipts"
	"github.com/matheus3301/matchchat/internal/session"
	"github.com/matheus3301/matchchat/internal/status"
	"github.com/matheus3301/matchchat/internal/store"
	intsync "github.com/matheus3301/matchchat/internal/sync"
	"github.com/matheus3301/matchchat/internal/thread"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile passed to the fx module.
type Params struct {
	Profile string
	// ConfigPath overrides the global config file; empty uses the default.
	ConfigPath string
	// Exclusive takes the profile lock. Long-running modes set it so only one
	// process polls a profile.
	Exclusive bool
	// WatchList starts polling the conversation list once the app has started.
	WatchList bool
	// Quiet keeps log output off the terminal.
	Quiet bool
}

// Module returns the fx module for a profile, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("matchchat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideClient,
			provideClock,
			providePipeline,
			provideConversations,
			provideThreads,
			provideTracker,
			provideQueue,
			provideScheduler,
			provideEngine,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = session.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	if cfg.User.ID == "" {
		return nil, errors.New("user.id is not set; run 'matchchat config init'")
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	var opts []logging.Option
	if p.Quiet {
		opts = append(opts, logging.FileOnly())
	}
	return logging.New(session.LogPath(p.Profile), p.Profile, cfg.Log.Level, opts...)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

// provideLock returns nil when the profile is opened without the lock.
func provideLock(p Params, logger *zap.Logger) (*session.Lock, error) {
	if !p.Exclusive {
		return nil, nil
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := session.AcquireLock(p.Profile)
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	if err := session.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	dbPath := session.CachePath(p.Profile)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Debug("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("cache opened", zap.String("path", dbPath))
	return db, nil
}

func provideClient(cfg *config.Config, logger *zap.Logger) (*api.Client, error) {
	return api.New(api.Options{
		BaseURL:  cfg.API.BaseURL,
		Token:    cfg.API.Token,
		Timeout:  cfg.API.Timeout.Duration,
		RetryMax: cfg.API.RetryMax,
	}, logger)
}

func provideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

func providePipeline(c *api.Client, logger *zap.Logger) *attachment.Pipeline {
	return attachment.NewPipeline(c, logger)
}

func provideConversations(c *api.Client, b *bus.Bus, logger *zap.Logger) *conversations.Store {
	return conversations.NewStore(c, b, logger)
}

func provideThreads(c *api.Client, logger *zap.Logger) *thread.Store {
	return thread.NewStore(c, logger)
}

func provideTracker(c *api.Client, threads *thread.Store, list *conversations.Store, cfg *config.Config, b *bus.Bus, logger *zap.Logger) *receipts.Tracker {
	return receipts.NewTracker(c, threads, list, cfg.User.ID, b, logger)
}

func provideQueue(c *api.Client, pipeline *attachment.Pipeline, threads *thread.Store, list *conversations.Store, db *store.DB, cfg *config.Config, b *bus.Bus, clock clockwork.Clock, logger *zap.Logger) *outbox.Queue {
	return outbox.NewQueue(outbox.Deps{
		Sender:   c,
		Uploader: pipeline,
		Thread:   threads,
		List:     list,
		Journal:  db,
		SelfID:   cfg.User.ID,
		Bus:      b,
		Logger:   logger,
		Clock:    clock,
	})
}

func provideScheduler(clock clockwork.Clock, logger *zap.Logger) *poll.Scheduler {
	return poll.NewScheduler(clock, logger)
}

type engineParams struct {
	fx.In

	Config    *config.Config
	List      *conversations.Store
	Threads   *thread.Store
	Tracker   *receipts.Tracker
	Queue     *outbox.Queue
	Pipeline  *attachment.Pipeline
	Scheduler *poll.Scheduler
	Machine   *status.Machine
	Store     *store.DB
	Bus       *bus.Bus
	Logger    *zap.Logger
}

func provideEngine(p engineParams) *intsync.Engine {
	return intsync.NewEngine(intsync.Deps{
		SelfID:         p.Config.User.ID,
		List:           p.List,
		Threads:        p.Threads,
		Tracker:        p.Tracker,
		Queue:          p.Queue,
		Pipeline:       p.Pipeline,
		Scheduler:      p.Scheduler,
		Machine:        p.Machine,
		Reconciler:     intsync.NewReconciler(p.Store, p.Logger),
		Bus:            p.Bus,
		Logger:         p.Logger,
		ListInterval:   p.Config.Polling.ListInterval.Duration,
		ThreadInterval: p.Config.Polling.ThreadInterval.Duration,
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, engine *intsync.Engine, db *store.DB, lk *session.Lock, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := engine.Hydrate(); err != nil {
				logger.Warn("cache hydration failed", zap.Error(err))
			}
			if p.WatchList {
				go func() {
					if err := engine.FocusList(context.Background()); err != nil {
						logger.Warn("initial list refresh failed", zap.Error(err))
					}
				}()
			}
			logger.Info("profile started", zap.String("profile", p.Profile))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := engine.Close(ctx); err != nil {
				logger.Warn("engine did not drain", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing cache", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("profile stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
