package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{ip}:upload_ops - per-minute start/resume/cancel attempts

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	UploadOpLimit  int           // Max upload control operations per window
	UploadOpWindow time.Duration // Upload operation window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		UploadOpLimit:  30,
		UploadOpWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// AllowUploadOp checks if a caller may issue another upload control operation
func (r *RateLimiter) AllowUploadOp(ctx context.Context, callerKey string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:upload_ops", callerKey)
	return r.checkLimit(ctx, key, r.config.UploadOpLimit, r.config.UploadOpWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return nil, err
		}
	}

	ttl, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		ttl = window
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	return &RateLimitResult{
		Allowed:   count <= int64(limit),
		Remaining: remaining,
		ResetIn:   ttl,
		Limit:     limit,
	}, nil
}
