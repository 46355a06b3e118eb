package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	dErrors "passage/pkg/domain-errors"
	"passage/pkg/platform/httputil"
	"passage/pkg/requestcontext"
)

// Middleware applies per-class limits keyed on the client IP recorded by the
// metadata middleware. Store failures let the request through.
type Middleware struct {
	store    Store
	limits   map[Class]Limit
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithLimits overrides the limits for the classes present in limits.
func WithLimits(limits map[Class]Limit) Option {
	return func(m *Middleware) {
		for class, l := range limits {
			m.limits[class] = l
		}
	}
}

// WithDisabled turns every check into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Middleware{store: store, limits: DefaultLimits(), logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit returns middleware enforcing the limit for class. A nil
// Middleware or an unknown class passes every request.
func (m *Middleware) RateLimit(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil || m.disabled {
			return next
		}
		limit, ok := m.limits[class]
		if !ok || limit.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			res, err := m.store.Allow(ctx, Key(class, ip), limit.Requests, limit.Window)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			setHeaders(w, res)
			if !res.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(res)))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, try again later"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func setHeaders(w http.ResponseWriter, res *Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
}

// retrySeconds rounds up so clients never retry early.
func retrySeconds(res *Result) int {
	return max(int(math.Ceil(res.RetryAfter.Seconds())), 1)
}
