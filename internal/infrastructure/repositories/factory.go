package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"
	"streamgate/internal/infrastructure/ratelimit"
	"streamgate/internal/infrastructure/repositories/memory"
	"streamgate/internal/infrastructure/repositories/postgres"
	redisrepo "streamgate/internal/infrastructure/repositories/redis"
	"streamgate/pkg/config"
	"streamgate/pkg/distributed"
)

// RepositoryFactory owns the record store backend and the optional Redis connection.
type RepositoryFactory struct {
	cfg         *config.Config
	pool        *pgxpool.Pool
	redisClient *redis.Client
	store       *ports.RecordStore
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects the configured backends. A configured Postgres that cannot be
// reached is fatal; an unreachable Redis falls back to process-local rate limiting.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Database.Enabled {
		pool, err := postgres.NewPool(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("record store: %w", err)
		}
		factory.pool = pool
		factory.store = postgres.NewRecordStore(pool)
		logger.Info("using postgres record store")
	} else {
		store, profiles := memory.NewRecordStore()
		for _, subject := range cfg.Identity.AdminSubjects {
			profiles.Put(domain.Profile{
				ID:        domain.UserID(subject),
				Role:      domain.RoleAdmin,
				CreatedAt: time.Now().UTC(),
			})
		}
		factory.store = store
		logger.Warnw("using memory record store, data is lost on restart",
			"seeded_admins", len(cfg.Identity.AdminSubjects),
		)
	}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(ctx, cfg, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory rate limiting",
				"error", err,
			)
		} else {
			factory.redisClient = client
		}
	}

	return factory, nil
}

func (f *RepositoryFactory) RecordStore() *ports.RecordStore {
	return f.store
}

// CreateGrantLimiter returns the per-user grant limiter, shared through Redis when available.
func (f *RepositoryFactory) CreateGrantLimiter() ratelimit.Limiter {
	limit := f.cfg.RateLimiting.Grants.Limit
	window := f.cfg.RateLimiting.Grants.Window
	if f.redisClient != nil {
		return ratelimit.NewRedisLimiter(f.redisClient, limit, window)
	}
	return ratelimit.NewMemoryLimiter(limit, window)
}

// CreateSweepLock returns a Redis lease for the enrollment sweeper, or nil without Redis.
func (f *RepositoryFactory) CreateSweepLock(ttl time.Duration) *distributed.Lock {
	if f.redisClient == nil {
		return nil
	}
	return distributed.NewLock(f.redisClient, "streamgate:locks:enrollment-sweep", ttl)
}

// HealthCheck pings every connected backend.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.pool != nil {
		if err := f.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

func (f *RepositoryFactory) Close() error {
	if f.pool != nil {
		f.pool.Close()
	}
	return redisrepo.CloseRedisClient(f.redisClient)
}
