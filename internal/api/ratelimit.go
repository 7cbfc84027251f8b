package api

import (
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/opensupplyhub/contribute/internal/errors"
	"github.com/opensupplyhub/contribute/internal/ratelimit"
)

// RateLimiter is the keyed limiter used for per-IP throttling.
type RateLimiter = ratelimit.KeyedRateLimiter

// limiterIdle is how long an IP's bucket is kept after its last request.
const limiterIdle = 10 * time.Minute

// NewRateLimiter creates a limiter allowing perInterval requests per interval per key.
func NewRateLimiter(perInterval float64, interval time.Duration, burst int) *RateLimiter {
	return ratelimit.New(perInterval/interval.Seconds(), burst, limiterIdle)
}

// rateLimitByIP returns an operation middleware that rate limits by client IP.
// Returns 429 in the standard envelope when the limit is exceeded.
func (s *Server) rateLimitByIP(limiter *RateLimiter) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		key := clientIP(ctx.RemoteAddr())
		if !limiter.Allow(key) {
			s.logger.Warn("rate limit exceeded", "ip", key, "path", ctx.URL().Path)
			msg := "Too many requests. Please try again later."
			_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, msg, domainerrors.RateLimited(msg))
			return
		}
		next(ctx)
	}
}

// clientIP strips the port from a remote address. chi's RealIP has already
// folded the forwarding headers into it.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
