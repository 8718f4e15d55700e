package locks

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// PostgresLocker implements Locker on top of Postgres session advisory
// locks. The string key is hashed server-side so callers can use readable
// lock names.
type PostgresLocker struct {
	db *gorm.DB
}

// Ensure PostgresLocker implements Locker
var _ Locker = (*PostgresLocker)(nil)

// NewPostgresLocker creates a Postgres-backed advisory locker
func NewPostgresLocker(db *gorm.DB) *PostgresLocker {
	return &PostgresLocker{db: db}
}

// TryAcquire attempts to take the advisory lock without blocking.
func (l *PostgresLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	var acquired bool
	err := l.db.WithContext(ctx).
		Raw("SELECT pg_try_advisory_lock(hashtext(?))", key).
		Scan(&acquired).Error
	if err != nil {
		return false, fmt.Errorf("acquiring advisory lock %q: %w", key, err)
	}
	return acquired, nil
}

// Release releases the advisory lock held by this session.
func (l *PostgresLocker) Release(ctx context.Context, key string) error {
	var released bool
	err := l.db.WithContext(ctx).
		Raw("SELECT pg_advisory_unlock(hashtext(?))", key).
		Scan(&released).Error
	if err != nil {
		return fmt.Errorf("releasing advisory lock %q: %w", key, err)
	}
	if !released {
		return fmt.Errorf("advisory lock %q was not held by this session", key)
	}
	return nil
}
