package ratelimiter

import (
	"context"
)

// RateLimiter represents the RateLimiter operations
type RateLimiter interface {
	Acquire() (bool, error)
	Run(context.Context)
	Shutdown(context.Context)
}

// RateLimiterSetting represents the RateLimiter config
type RateLimiterSetting struct {
	// RequestCount is the number of requests allowed per minute.
	RequestCount int
}

// New returns a RequestRateLimiter for a positive request count and a
// NoopRateLimiter otherwise.
func New(setting RateLimiterSetting) (RateLimiter, error) {
	if setting.RequestCount <= 0 {
		return &NoopRateLimiter{}, nil
	}
	limiter, err := NewRequestRateLimiter(setting)
	if err != nil {
		return nil, err
	}
	return limiter, nil
}
