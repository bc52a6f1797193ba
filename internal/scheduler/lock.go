package scheduler

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rxledger/statements/internal/config"
	ierr "github.com/rxledger/statements/internal/errors"
	"github.com/rxledger/statements/internal/logger"
)

// processingLockKey guards processing passes across service instances
const processingLockKey = "lock:statements:processing"

// RunLock serializes processing passes. Acquire returns a release func, or an
// invalid operation error when another holder owns the lock.
type RunLock interface {
	Acquire(ctx context.Context) (release func(context.Context), err error)
}

// NewRunLock returns a redis backed lock when redis is enabled and a no-op
// lock otherwise. The processor's own guard still applies per process.
func NewRunLock(cfg *config.Configuration, log *logger.Logger) (RunLock, error) {
	if !cfg.Redis.Enabled {
		log.Infow("redis disabled, processing lock is process local")
		return noopLock{}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, ierr.WithError(err).
			WithHintf("Could not reach redis at %s", cfg.Redis.Address).
			Mark(ierr.ErrSystem)
	}

	log.Infow("connected to redis for processing lock", "address", cfg.Redis.Address)
	return &redisLock{
		client: client,
		locker: redislock.New(client),
		ttl:    cfg.Redis.LockTTL(),
		logger: log,
	}, nil
}

type noopLock struct{}

func (noopLock) Acquire(context.Context) (func(context.Context), error) {
	return func(context.Context) {}, nil
}

type redisLock struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	logger *logger.Logger
}

func (l *redisLock) Acquire(ctx context.Context) (func(context.Context), error) {
	lock, err := l.locker.Obtain(ctx, processingLockKey, l.ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, ierr.NewError("processing lock held by another instance").
			WithHint("A processing pass is already in progress, try again later").
			Mark(ierr.ErrInvalidOperation)
	}
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Could not obtain the processing lock").
			Mark(ierr.ErrSystem)
	}

	stop := keepAlive(l.ttl/2, func(ctx context.Context) error {
		return lock.Refresh(ctx, l.ttl, nil)
	}, l.logger)

	return func(ctx context.Context) {
		stop()
		if err := lock.Release(ctx); err != nil && err != redislock.ErrLockNotHeld {
			l.logger.Warnw("failed to release processing lock", "error", err)
		}
	}, nil
}

// keepAlive calls refresh every interval until the returned stop func is
// called, so a pass longer than the lock TTL keeps its lock. The returned
// func waits for an in-flight refresh.
func keepAlive(interval time.Duration, refresh func(context.Context) error, log *logger.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := refresh(ctx); err != nil && ctx.Err() == nil {
					log.Errorw("failed to refresh processing lock", "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Close releases the redis connection
func (l *redisLock) Close() error {
	return l.client.Close()
}
