package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/citycycle/internal/config"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/redisstore"
	"github.com/roach88/citycycle/internal/store"
	"github.com/roach88/citycycle/internal/table"
)

// openedStore is a table.Store that can list its collections and must be
// closed.
type openedStore interface {
	table.Store
	io.Closer
	collections(ctx context.Context) ([]string, error)
}

type sqliteStore struct{ *store.Store }

func (s sqliteStore) collections(ctx context.Context) ([]string, error) {
	return s.Collections(ctx)
}

type redisStore struct{ *redisstore.Store }

func (s redisStore) collections(ctx context.Context) ([]string, error) {
	return s.Collections(ctx)
}

type memoryStore struct{ *table.Memory }

func (memoryStore) Close() error { return nil }

func (s memoryStore) collections(context.Context) ([]string, error) {
	return s.Collections(), nil
}

// openStore opens the store the config selects.
func openStore(ctx context.Context, cfg *config.Config) (openedStore, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
		return sqliteStore{st}, nil

	case config.DriverRedis:
		rc := cfg.Store.Redis
		st, err := redisstore.New(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		}, rc.Namespace)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		if err := st.Ping(ctx); err != nil {
			_ = st.Close()
			return nil, WrapExitError(ExitCommandError, fmt.Sprintf("redis %s unreachable", rc.Addr), err)
		}
		return redisStore{st}, nil

	case config.DriverMemory:
		return memoryStore{table.NewMemory()}, nil
	}
	return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown store driver %q", cfg.Store.Driver))
}

// collectionsFromConfig maps the configured collection names onto the
// engine's.
func collectionsFromConfig(cfg *config.Config) engine.Collections {
	return engine.Collections{
		Arcs:      cfg.Collections.ArcLedger,
		Hooks:     cfg.Collections.Hooks,
		Archive:   cfg.ArchiveCollection(),
		Cooldowns: cfg.Collections.Cooldowns,
		CycleLog:  cfg.Collections.CycleLog,
	}
}

// engineOptions builds the engine options a config implies. extra options
// are applied last.
func engineOptions(cfg *config.Config, logger *slog.Logger, extra ...engine.Option) []engine.Option {
	opts := []engine.Option{
		engine.WithCollections(collectionsFromConfig(cfg)),
		engine.WithThresholds(cfg.ThresholdSet()),
		engine.WithCooldownPolicy(engine.CooldownPolicy{
			PriorityDomains: cfg.Cooldowns.PriorityDomains,
			LongDomains:     cfg.Cooldowns.LongDomains,
			Rules:           cfg.Cooldowns.Rules,
		}),
		engine.WithStrict(cfg.Executor.Strict),
		engine.WithLogger(logger),
	}
	if cfg.Hooks.ExpiresAfter > 0 {
		opts = append(opts, engine.WithHookExpiry(cfg.Hooks.ExpiresAfter))
	}
	if cfg.Executor.MaxIntents > 0 {
		opts = append(opts, engine.WithMaxIntents(cfg.Executor.MaxIntents))
	}
	return append(opts, extra...)
}

// calendarFlags holds the calendar context flags shared by run and replay.
type calendarFlags struct {
	cooldown.Calendar
}

func (c *calendarFlags) register(fs interface {
	StringVar(p *string, name, value, usage string)
	BoolVar(p *bool, name string, value bool, usage string)
}) {
	fs.StringVar(&c.Holiday, "holiday", "", "holiday in effect this cycle")
	fs.StringVar(&c.HolidayPriority, "holiday-priority", "", "priority of the holiday (major|minor|...)")
	fs.BoolVar(&c.IsFirstFriday, "first-friday", false, "cycle falls on a first Friday")
	fs.BoolVar(&c.IsCreationDay, "creation-day", false, "cycle falls on creation day")
	fs.StringVar(&c.SportsSeason, "sports-season", "", "active sports season")
	fs.StringVar(&c.Season, "season", "", "calendar season")
}
