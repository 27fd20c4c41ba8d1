package ratelimit

import (
	"context"
	"time"
)

// Limiter answers whether one more event is allowed under the key's quota.
// When the answer is no, retryAfter tells the caller how long until the
// window resets. Implementations must fail closed: if the backing store
// cannot be reached, return an error rather than allowing the event.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, retryAfter time.Duration, err error)
}
