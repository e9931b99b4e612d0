package sqlite

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock implements DistributedLock with a row per lock in the database file,
// so processes sharing one file (an api and a worker, say) serialise their
// index writers. Rows expire after their TTL.
type Lock struct {
	db      *DB
	ownerID string
	now     func() time.Time
}

// NewLock creates a lock backed by db.
func NewLock(db *DB) *Lock {
	return &Lock{db: db, ownerID: generateOwnerID(), now: time.Now}
}

// Format: hostname:pid:random
func generateOwnerID() string {
	hostname, _ := os.Hostname()
	randomBytes := make([]byte, 8)
	_, _ = rand.Read(randomBytes)
	return fmt.Sprintf("%s:%d:%s", hostname, os.Getpid(), hex.EncodeToString(randomBytes))
}

// Acquire takes the lock when it is free or its holder's TTL has run out.
// Returns false if the lock is held, including by this instance.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	now := l.now()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO locks (name, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			owner = excluded.owner,
			expires_at = excluded.expires_at
		WHERE locks.expires_at <= ?
	`, name, l.ownerID, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return false, unavailable("acquire lock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("acquire lock", err)
	}
	return n == 1, nil
}

// Release drops the lock if this instance holds it.
func (l *Lock) Release(ctx context.Context, name string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE name = ? AND owner = ?`, name, l.ownerID); err != nil {
		return unavailable("release lock", err)
	}
	return nil
}

// Extend pushes the expiry of a lock this instance still holds.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	now := l.now()
	res, err := l.db.ExecContext(ctx, `
		UPDATE locks SET expires_at = ? WHERE name = ? AND owner = ? AND expires_at > ?
	`, now.Add(ttl).UnixMilli(), name, l.ownerID, now.UnixMilli())
	if err != nil {
		return unavailable("extend lock", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("extend lock", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s not held", domain.ErrLockNotAcquired, name)
	}
	return nil
}

// Ping checks the database is reachable.
func (l *Lock) Ping(ctx context.Context) error {
	return l.db.Ping(ctx)
}
