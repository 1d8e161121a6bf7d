package retention

import (
	"context"
	"errors"
	"time"

	"waasp/pkg/logger"
	"waasp/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Cleaner deletes audit entries older than a retention window.
type Cleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Locker keeps one sweep running across replicas.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// Janitor periodically purges old audit entries.
// It issues one DELETE by timestamp cutoff and never touches the
// contacts table, so checks are not blocked by it.
type Janitor struct {
	Cleaner   Cleaner
	Locker    Locker
	Retention time.Duration
	Interval  time.Duration
}

var ErrLocked = errors.New("retention: sweep already running elsewhere")

// RunOnce performs a single sweep.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	if j.Cleaner == nil {
		return 0, errors.New("retention: cleaner not configured")
	}
	if j.Locker != nil {
		ok, err := j.Locker.TryLock(ctx)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrLocked
		}
		defer func() {
			if err := j.Locker.Unlock(context.WithoutCancel(ctx)); err != nil {
				logger.From(ctx).Warn("retention unlock failed", "err", err)
			}
		}()
	}
	return j.Cleaner.Cleanup(ctx, j.Retention)
}

// Run sweeps every Interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	interval := j.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	log := logger.From(ctx)

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n, err := j.RunOnce(ctx)
		switch {
		case errors.Is(err, ErrLocked):
			log.Debug("retention sweep skipped", "reason", "locked")
		case err != nil:
			log.Error("retention sweep failed", "err", err)
		default:
			log.Info("retention sweep", "deleted", n, "retention", j.Retention.String())
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// RedisLocker is a Locker backed by a Redis lease.
type RedisLocker struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

const DefaultLockKey = "waasp:retention:lock"

func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultLockKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: client, key: key, owner: uuid.NewString(), ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	return utils.AcquireLease(ctx, l.client, l.key, l.owner, l.ttl)
}

func (l *RedisLocker) Unlock(ctx context.Context) error {
	return utils.ReleaseLease(ctx, l.client, l.key, l.owner)
}
