// Package backend picks and connects the storage adapter named in the
// configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CatalogBot/internal/config"
	"CatalogBot/internal/database"
	"CatalogBot/internal/metrics"
	"CatalogBot/internal/storage"
	"CatalogBot/internal/storage/memory"
	mongostore "CatalogBot/internal/storage/mongo"
	redisstore "CatalogBot/internal/storage/redis"

	"go.uber.org/zap"
)

const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
	DriverMySQL  = "mysql"
)

var ErrUnknownDriver = errors.New("unknown storage driver")

type Backend struct {
	Driver     string
	Categories storage.CategoryStore
	Chains     storage.ChainStore

	stats   func(ctx context.Context) map[string]interface{}
	purge   func(ctx context.Context) (int64, error)
	closers []func(ctx context.Context) error
	logger  *zap.Logger
}

// Open connects the configured driver. When collector is non-nil both stores
// are instrumented.
func Open(ctx context.Context, cfg config.Storage, collector *metrics.Collector, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Backend{Driver: cfg.Driver, logger: logger}

	var both interface {
		storage.CategoryStore
		storage.ChainStore
	}

	switch cfg.Driver {
	case DriverMemory:
		s, err := memory.New(cfg.ChainTTL, logger)
		if err != nil {
			return nil, err
		}
		both = s
		b.stats = func(context.Context) map[string]interface{} { return s.Stats() }
		b.purge = func(context.Context) (int64, error) {
			s.CleanupExpired()
			return 0, nil
		}
		b.closers = append(b.closers, func(context.Context) error {
			s.Close()
			return nil
		})

	case DriverMongo:
		conn := NewMongoConnection(cfg.Mongo)
		client, err := conn.Connect(ctx)
		if err != nil {
			return nil, err
		}
		s, err := mongostore.New(ctx, client.Database(conn.Database), cfg.Prefix, cfg.ChainTTL, logger)
		if err != nil {
			client.Disconnect(ctx)
			return nil, err
		}
		both = s
		b.closers = append(b.closers, client.Disconnect)

	case DriverRedis:
		client, err := NewRedisConnection(cfg.Redis).Connect(ctx)
		if err != nil {
			return nil, err
		}
		both = redisstore.New(client, cfg.Prefix, cfg.ChainTTL, logger)
		b.closers = append(b.closers, func(context.Context) error { return client.Close() })

	case DriverMySQL:
		db, err := database.Connect(ctx, NewMySQLConnection(cfg.MySQL), logger)
		if err != nil {
			return nil, err
		}
		s := database.New(db, cfg.ChainTTL, logger)
		if err := s.AutoMigrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		both = s
		b.stats = s.Stats
		b.purge = s.PurgeExpired
		b.closers = append(b.closers, func(context.Context) error { return s.Close() })

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	b.Categories, b.Chains = both, both
	if collector != nil {
		b.Categories = metrics.NewCategoryStore(both, collector, cfg.Driver)
		b.Chains = metrics.NewChainStore(both, collector, cfg.Driver)
	}

	logger.Info("storage backend ready",
		zap.String("driver", cfg.Driver),
		zap.String("prefix", cfg.Prefix),
		zap.Duration("chain_ttl", cfg.ChainTTL))
	return b, nil
}

// Stats reports adapter statistics where the adapter keeps any.
func (b *Backend) Stats(ctx context.Context) map[string]interface{} {
	if b.stats == nil {
		return map[string]interface{}{"driver": b.Driver}
	}
	stats := b.stats(ctx)
	stats["driver"] = b.Driver
	return stats
}

// PurgeExpired removes expired capture segments for adapters that do not
// expire them on their own.
func (b *Backend) PurgeExpired(ctx context.Context) (int64, error) {
	if b.purge == nil {
		return 0, nil
	}
	return b.purge(ctx)
}

func (b *Backend) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
