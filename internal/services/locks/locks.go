package locks

import "context"

// Locker is a cluster-wide mutex preventing two worker instances from
// running concurrently. TryAcquire is non-blocking: callers that do not get
// the lock skip the run entirely rather than queue behind the holder.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}
