package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across replicas. The session
// manager uses it to guarantee at most one in-flight transition per phone
// number even when several instances receive messages for it.
type DistributedLocker interface {
	// Lock acquires the lock for key, blocking until acquired or ctx is
	// canceled. The returned UnlockFunc MUST be called to release it; the
	// TTL bounds how long a crashed holder can wedge the key.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
