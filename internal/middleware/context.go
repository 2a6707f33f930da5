package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
)

const (
	UserIDKey      = "user_id"
	WorkspaceIDKey = "workspace_id"
	ActorKey       = "actor"
	PartnerKey     = "partner"
	LoggerKey      = "logger"
)

// ContextEnhancer builds the request-scoped logger used by handlers and
// services.
type ContextEnhancer struct {
	base *zerolog.Logger
}

func NewContextEnhancer(s *server.Server) *ContextEnhancer {
	return &ContextEnhancer{base: s.Logger}
}

// EnhanceContext attaches request_id, method, path, ip and trace ids to a
// child logger and stores it on both the Echo and the Go context, so code
// that only sees a context.Context logs with the same fields.
func (ce *ContextEnhancer) EnhanceContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := ce.base.With().
				Str("request_id", GetRequestID(c)).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Str("ip", c.RealIP()).
				Logger()

			if txn := newrelic.FromContext(c.Request().Context()); txn != nil {
				l = logger.WithTraceContext(l, txn)
			}

			setLogger(c, &l)
			return next(c)
		}
	}
}

// setLogger replaces the request logger. Auth middleware calls it again
// once the caller is known.
func setLogger(c echo.Context, l *zerolog.Logger) {
	c.Set(LoggerKey, l)
	c.SetRequest(c.Request().WithContext(logger.WithContext(c.Request().Context(), l)))
}

// GetLogger returns the request logger, or a no-op logger when
// EnhanceContext did not run.
func GetLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(LoggerKey).(*zerolog.Logger); ok {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}

func GetUserID(c echo.Context) string {
	if userID, ok := c.Get(UserIDKey).(string); ok {
		return userID
	}
	return ""
}

// GetActor returns the workspace member set by RequireWorkspace.
func GetActor(c echo.Context) (model.Actor, bool) {
	actor, ok := c.Get(ActorKey).(model.Actor)
	return actor, ok
}

// GetPartner returns the partner profile set by RequirePartner.
func GetPartner(c echo.Context) (*model.Partner, bool) {
	partner, ok := c.Get(PartnerKey).(*model.Partner)
	return partner, ok && partner != nil
}
