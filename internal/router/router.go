// Package router builds the Echo instance: global middleware, system
// routes, the workspace dashboard API and the partner portal API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/handler"
	"github.com/deppfellow/partners/internal/middleware"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

func NewRouter(s *server.Server, h *handler.Handlers, services *service.Services) *echo.Echo {
	mw := middleware.NewMiddlewares(s, services)

	r := echo.New()
	r.HideBanner = true
	r.HidePort = true
	r.HTTPErrorHandler = mw.Global.GlobalErrorHandler

	// Order matters: the request id feeds the logger, which feeds tracing
	// and request logs.
	r.Use(
		mw.Tracing.NewRelicMiddleware(),
		mw.Global.Recover(),
		mw.Global.Secure(),
		mw.Global.CORS(),
		middleware.RequestID(),
		mw.ContextEnhancer.EnhanceContext(),
		mw.Tracing.EnhanceTracing(),
		mw.Global.RequestLogger(),
	)

	registerSystemRoutes(r, h)

	v1 := r.Group("/api/v1")
	registerWorkspaceRoutes(v1.Group("", mw.Auth.RequireAuth, mw.Auth.RequireWorkspace), h, mw)
	registerPartnerRoutes(v1.Group("/partner", mw.Auth.RequireAuth), h, mw)

	h.Docs.Bind(r)
	return r
}
