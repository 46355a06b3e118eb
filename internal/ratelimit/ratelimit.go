// Package ratelimit throttles marker API callers by client IP using a
// sliding window, kept in memory or in Redis.
package ratelimit

import (
	"context"
	"time"
)

// Class groups routes that share a limit.
type Class string

const (
	// ClassSigning covers routes that sign with the service identity.
	ClassSigning Class = "signing"
	// ClassVerify covers stateless verification and admission checks.
	ClassVerify Class = "verify"
	// ClassRead covers archive lookups and listings.
	ClassRead Class = "read"
)

// Limit is the number of requests admitted per Window.
type Limit struct {
	Requests int
	Window   time.Duration
}

// DefaultLimits are per-IP limits for each class.
func DefaultLimits() map[Class]Limit {
	return map[Class]Limit{
		ClassSigning: {Requests: 10, Window: time.Minute},
		ClassVerify:  {Requests: 100, Window: time.Minute},
		ClassRead:    {Requests: 300, Window: time.Minute},
	}
}

// Result is the outcome of one admission against a window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is set only when the request was refused.
	RetryAfter time.Duration
}

// Store counts requests per key inside a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Key is the bucket key for ip within class.
func Key(class Class, ip string) string {
	return "ratelimit:" + string(class) + ":" + ip
}
