package cache

import "errors"

var (
	// ErrRedisNotAvailable is returned when Redis is not configured or the
	// connection could not be established.
	ErrRedisNotAvailable = errors.New("redis not available")

	// ErrLockNotAcquired is returned when a distributed lock could not be
	// taken within the retry budget.
	ErrLockNotAcquired = errors.New("distributed lock not acquired")
)
