package httpapi

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/throttle"
	"github.com/gin-gonic/gin"
)

// RateLimiter counts hits. *throttle.Limiter implements it.
type RateLimiter interface {
	Allow(ctx context.Context, scope, ident string, rate throttle.Rate) (throttle.Decision, error)
}

// ThrottlePolicy is a pair of scopes: one for anonymous callers keyed by
// client IP, one for authenticated callers keyed by user id.
type ThrottlePolicy struct {
	AnonScope string
	AnonRate  throttle.Rate
	UserScope string
	UserRate  throttle.Rate
}

// Throttle enforces p. A nil limiter disables throttling; limiter errors
// are logged and the request is let through.
func Throttle(l RateLimiter, p ThrottlePolicy, lg logging.Logger) gin.HandlerFunc {
	logger := lg.With("module", "throttle")

	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		scope, ident, rate := p.AnonScope, c.ClientIP(), p.AnonRate
		if u := currentUser(c); u != nil {
			scope, ident, rate = p.UserScope, u.ID, p.UserRate
		}
		if rate.Limit <= 0 {
			c.Next()
			return
		}

		d, err := l.Allow(c.Request.Context(), scope, ident, rate)
		if err != nil {
			logger.Warn(c.Request.Context(), "throttle check failed, allowing request", "scope", scope, "error", err)
			c.Next()
			return
		}
		if !d.Allowed {
			wait := throttle.WaitSeconds(d.Wait)
			c.Header("Retry-After", strconv.Itoa(wait))
			abort(c, apierr.Throttled(wait))
			return
		}

		c.Next()
	}
}
