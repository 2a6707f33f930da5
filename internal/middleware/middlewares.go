package middleware

import (
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

// Middlewares groups every middleware the router installs.
type Middlewares struct {
	Global          *GlobalMiddlewares
	Auth            *AuthMiddleware
	ContextEnhancer *ContextEnhancer
	Tracing         *TracingMiddleware
	RateLimit       *RateLimitMiddleware
}

// NewMiddlewares builds the middleware set. Tracing degrades to a no-op when
// New Relic is not configured.
func NewMiddlewares(s *server.Server, services *service.Services) *Middlewares {
	var nrApp *newrelic.Application
	if s.LoggerService != nil {
		nrApp = s.LoggerService.GetApplication()
	}

	return &Middlewares{
		Global:          NewGlobalMiddlewares(s),
		Auth:            NewAuthMiddleware(s, services.Auth),
		ContextEnhancer: NewContextEnhancer(s),
		Tracing:         NewTracingMiddleware(s, nrApp),
		RateLimit:       NewRateLimitMiddleware(s, nrApp),
	}
}
