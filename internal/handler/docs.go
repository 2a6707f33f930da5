package handler

import (
	"net/http"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/server"
)

// DocsHandler lists the registered API routes.
type DocsHandler struct {
	Handler
	routes func() []*echo.Route
}

func NewDocsHandler(s *server.Server) *DocsHandler {
	return &DocsHandler{Handler: NewHandler(s)}
}

// Bind is called once routes are registered.
func (h *DocsHandler) Bind(e *echo.Echo) {
	h.routes = e.Routes
}

type routeDoc struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

func (h *DocsHandler) ListRoutes(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-cache")

	var docs []routeDoc
	if h.routes != nil {
		for _, r := range h.routes() {
			if !strings.HasPrefix(r.Path, "/api/") {
				continue
			}
			docs = append(docs, routeDoc{Method: r.Method, Path: r.Path})
		}
	}
	slices.SortFunc(docs, func(a, b routeDoc) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})

	return c.JSON(http.StatusOK, map[string]any{"routes": docs})
}
