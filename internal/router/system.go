package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/handler"
)

func registerSystemRoutes(r *echo.Echo, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)
	r.GET("/docs/routes", h.Docs.ListRoutes)
}
