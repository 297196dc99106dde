package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"raaibar/backend/internal/config"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Stores bundles the configured backends and everything that must be closed
// on shutdown.
type Stores struct {
	Conversations ConversationStore
	Graph         GraphStore

	closers []func() error
}

// Open connects the backends named in cfg, runs migrations where needed and
// verifies connectivity.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger) (*Stores, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	render := TimeRenderer{Layout: cfg.TimeLayout, Location: loc}
	stores := &Stores{}

	var db *gorm.DB
	if cfg.MessageStore == config.DriverPostgres || cfg.GraphStore == config.DriverPostgres {
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres pool: %w", err)
		}
		stores.closers = append(stores.closers, sqlDB.Close)
		if err := Migrate(db); err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		log.Info("postgres connected, migrations complete")
	}

	switch cfg.MessageStore {
	case config.DriverPostgres:
		stores.Conversations = NewPostgresConversationStore(db, log, render)
	case config.DriverBadger:
		bdb, err := badger.Open(badger.DefaultOptions(cfg.BadgerPath).WithLoggingLevel(badger.WARNING))
		if err != nil {
			_ = stores.Close()
			return nil, fmt.Errorf("open badger: %w", err)
		}
		bstore, err := NewBadgerConversationStore(bdb, log, render)
		if err != nil {
			_ = bdb.Close()
			_ = stores.Close()
			return nil, err
		}
		// Release the sequence before closing the database.
		stores.closers = append(stores.closers, bdb.Close, bstore.Close)
		stores.Conversations = bstore
		log.Info("badger opened", "path", cfg.BadgerPath)
	default:
		stores.Conversations = NewMemoryConversationStore(render)
	}

	switch cfg.GraphStore {
	case config.DriverPostgres:
		stores.Graph = NewPostgresGraphStore(db, log)
	case config.DriverRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			_ = rdb.Close()
			_ = stores.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		stores.closers = append(stores.closers, rdb.Close)
		stores.Graph = NewRedisGraphStore(rdb, log)
		log.Info("redis connected", "addr", cfg.RedisAddr)
	default:
		stores.Graph = NewMemoryGraphStore()
	}

	log.Info("stores ready", "messages", cfg.MessageStore, "graph", cfg.GraphStore)
	return stores, nil
}

// Close releases backends in reverse order of opening.
func (s *Stores) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
