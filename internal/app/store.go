package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
)

// openStore returns the backend named by cfg.Driver.
func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := connectPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return postgres.NewStore(pool, logger), nil
	case config.DriverMemory, "":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// connectPostgres dials until the database answers, up to ConnectRetries
// attempts within ConnectTimeout.
func connectPostgres(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (*postgres.Pool, error) {
	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.InitialInterval = 500 * time.Millisecond
	backoffPolicy.MaxInterval = 5 * time.Second

	notify := func(err error, duration time.Duration) {
		logger.Warn("Postgres not ready, retrying", zap.Error(err), zap.Duration("backoff", duration))
	}

	operation := func() (*postgres.Pool, error) {
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL, logger)
		if errors.Is(err, postgres.ErrInvalidDSN) {
			return nil, backoff.Permanent(err)
		}
		return pool, err
	}

	tries := cfg.ConnectRetries
	if tries == 0 {
		tries = 1
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = config.DefaultConnectTimeout
	}

	pool, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoffPolicy),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(notify))
	if err != nil {
		logger.Error("Could not connect to postgres", zap.Uint("attempts", tries), zap.Error(err))
		return nil, err
	}
	return pool, nil
}
