package locks

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLocker implements Locker in-process. It is used when the database
// has no advisory-lock primitive (sqlite) and in tests; it only guards
// against overlapping runs within a single process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// Ensure MemoryLocker implements Locker
var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

// TryAcquire takes the named lock if it is free.
func (l *MemoryLocker) TryAcquire(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

// Release frees the named lock.
func (l *MemoryLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held[key] {
		return fmt.Errorf("lock %q is not held", key)
	}
	delete(l.held, key)
	return nil
}
