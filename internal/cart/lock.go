package cart

import (
	"context"
	"time"

	pkgerrors "github.com/blockmart/blockmart-backend/pkg/errors"
)

// cartLockTTL bounds how long a crashed holder can block a user's cart.
const cartLockTTL = 30 * time.Second

// lockStore is the slice of the Redis client the mutex needs.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	CartLockKey(userID string) string
}

// userLock serializes cart mutations per user across processes.
type userLock struct {
	store lockStore
}

// acquire takes the user's cart mutex or reports a conflict when
// another operation holds it. The caller must invoke the returned
// release func.
func (l userLock) acquire(ctx context.Context, userID string) (func(), error) {
	key := l.store.CartLockKey(userID)
	held, err := l.store.SetNX(ctx, key, "1", cartLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart lock unavailable")
	}
	if !held {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "another cart operation is in progress")
	}
	return func() {
		// Release failures age out via the TTL.
		_ = l.store.Del(context.WithoutCancel(ctx), key)
	}, nil
}
