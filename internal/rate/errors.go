package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter is over its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps limiter Redis failures. Callers fail open on it.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)
