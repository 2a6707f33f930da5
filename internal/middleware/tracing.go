package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/newrelic/go-agent/v3/integrations/nrecho-v4"
	"github.com/newrelic/go-agent/v3/integrations/nrpkgerrors"
	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/deppfellow/partners/internal/server"
)

type TracingMiddleware struct {
	server *server.Server
	nrApp  *newrelic.Application
}

func NewTracingMiddleware(s *server.Server, nrApp *newrelic.Application) *TracingMiddleware {
	return &TracingMiddleware{
		server: s,
		nrApp:  nrApp,
	}
}

// NewRelicMiddleware starts a transaction per request, or passes through
// when New Relic is disabled.
func (tm *TracingMiddleware) NewRelicMiddleware() echo.MiddlewareFunc {
	if tm.nrApp == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}
	return nrecho.Middleware(tm.nrApp)
}

// EnhanceTracing adds request and caller attributes to the transaction and
// notices returned errors. Caller attributes are read after the handler
// chain ran, so auth middleware installed later on a group is covered.
func (tm *TracingMiddleware) EnhanceTracing() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			txn := newrelic.FromContext(c.Request().Context())
			if txn == nil {
				return next(c)
			}

			txn.AddAttribute("http.real_ip", c.RealIP())
			txn.AddAttribute("http.user_agent", c.Request().UserAgent())
			if requestID := GetRequestID(c); requestID != "" {
				txn.AddAttribute("request.id", requestID)
			}

			err := next(c)
			if err != nil {
				txn.NoticeError(nrpkgerrors.Wrap(err))
			}

			if userID := GetUserID(c); userID != "" {
				txn.AddAttribute("user.id", userID)
			}
			if workspaceID, ok := c.Get(WorkspaceIDKey).(string); ok {
				txn.AddAttribute("workspace.id", workspaceID)
			}
			if partner, ok := GetPartner(c); ok {
				txn.AddAttribute("partner.id", partner.ID)
			}
			txn.AddAttribute("http.status_code", c.Response().Status)

			return err
		}
	}
}
