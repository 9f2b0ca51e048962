package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// store is the consumer interface for a shared lock backend (ISP).
type store interface {
	TryLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key, token string) error
	Extend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}

// Distributed serializes holders across processes sharing a backend.
// A local Keyed mutex is taken first so goroutines of one process queue locally
// instead of polling the backend. While held, the backend expiry is renewed
// every ttl/3, so a long holder keeps the lock and a crashed one loses it after ttl.
type Distributed struct {
	local  *Keyed
	store  store
	prefix string
	ttl    time.Duration
	poll   time.Duration
	renew  time.Duration
	logger *zap.Logger
}

// NewDistributed creates a lock over s. ttl bounds how long a crashed holder blocks others.
func NewDistributed(s store, prefix string, ttl time.Duration, logger *zap.Logger) *Distributed {
	return &Distributed{
		local:  NewKeyed(),
		store:  s,
		prefix: prefix,
		ttl:    ttl,
		poll:   50 * time.Millisecond,
		renew:  ttl / 3,
		logger: logger,
	}
}

// Lock acquires key locally and then in the shared backend.
func (d *Distributed) Lock(ctx context.Context, key string) (Unlock, error) {
	releaseLocal, err := d.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	remoteKey := d.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		ok, err := d.store.TryLock(ctx, remoteKey, token, d.ttl)
		if err != nil {
			releaseLocal()
			return nil, fmt.Errorf("acquire %s: %w", remoteKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			releaseLocal()
			return nil, fmt.Errorf("acquire %s: %w", remoteKey, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go d.keepAlive(remoteKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done

			// Release even if the request context is already cancelled.
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := d.store.Unlock(ctx, remoteKey, token); err != nil {
				d.logger.Warn("Failed to release store lock", zap.String("key", remoteKey), zap.Error(err))
			}
			releaseLocal()
		})
	}, nil
}

// keepAlive renews the backend expiry until stop is closed or the lock is lost.
// Backend errors are retried on the next tick; the key survives until ttl runs out.
func (d *Distributed) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if d.renew <= 0 {
		return
	}

	ticker := time.NewTicker(d.renew)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.renew)
		ok, err := d.store.Extend(ctx, key, token, d.ttl)
		cancel()
		switch {
		case err != nil:
			d.logger.Warn("Failed to extend store lock", zap.String("key", key), zap.Error(err))
		case !ok:
			d.logger.Error("Store lock lost before release", zap.String("key", key))
			return
		}
	}
}
