package driven

import (
	"context"
	"time"
)

// DistributedLock serialises index writers and elects the scheduler leader
// when several processes share one store.
type DistributedLock interface {
	// Acquire takes the named lock for ttl. It reports false, without error,
	// when another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives the lock up. Releasing a lock that expired or was never
	// held is not an error.
	Release(ctx context.Context, name string) error

	// Extend renews a held lock. Backends whose locks live as long as the
	// session, like postgres advisory locks, treat it as a liveness check.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
