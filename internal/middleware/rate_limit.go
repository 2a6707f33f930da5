package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/cache"
	"github.com/deppfellow/partners/internal/server"
)

type RateLimitMiddleware struct {
	server  *server.Server
	nrApp   *newrelic.Application
	limiter *cache.FixedWindowLimiter
}

func NewRateLimitMiddleware(s *server.Server, nrApp *newrelic.Application) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		server:  s,
		nrApp:   nrApp,
		limiter: cache.NewFixedWindowLimiter(s.Redis, time.Minute),
	}
}

// LimitTracking caps tracking calls per workspace per minute. Redis errors
// let the request through.
func (r *RateLimitMiddleware) LimitTracking(next echo.HandlerFunc) echo.HandlerFunc {
	limit := r.server.Config.RateLimit.TrackRequestsPerMinute

	return func(c echo.Context) error {
		workspaceID, _ := c.Get(WorkspaceIDKey).(string)
		if workspaceID == "" {
			return next(c)
		}

		allowed, remaining, err := r.limiter.Allow(c.Request().Context(), "track:"+workspaceID, limit)
		if err != nil {
			GetLogger(c).Warn().Err(err).Msg("rate limiter unavailable")
			return next(c)
		}

		h := c.Response().Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			r.recordHit(c.Path(), workspaceID)
			return errs.NewTooManyRequestsError("Rate limit exceeded, retry in a minute")
		}
		return next(c)
	}
}

func (r *RateLimitMiddleware) recordHit(endpoint, workspaceID string) {
	if r.nrApp == nil {
		return
	}
	r.nrApp.RecordCustomEvent("RateLimitHit", map[string]interface{}{
		"endpoint":     endpoint,
		"workspace_id": workspaceID,
	})
}
