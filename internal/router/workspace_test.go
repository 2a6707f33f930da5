package router

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/handler"
	"github.com/deppfellow/partners/internal/middleware"
	"github.com/deppfellow/partners/internal/model"
)

// serveAs registers the workspace routes behind a fixed actor and returns
// the error the route chain produced. Handlers are never constructed, so
// only requests stopped by a permission check may be served.
func serveAs(t *testing.T, role model.Role, method, target string) error {
	t.Helper()

	e := echo.New()
	var served error
	e.HTTPErrorHandler = func(err error, _ echo.Context) { served = err }

	g := e.Group("/api/v1", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.ActorKey, model.Actor{UserID: "user_1", WorkspaceID: "ws_1", Role: role})
			return next(c)
		}
	})
	registerWorkspaceRoutes(g, &handler.Handlers{}, &middleware.Middlewares{RateLimit: &middleware.RateLimitMiddleware{}})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(method, target, nil))
	return served
}

func TestWorkspaceRoutesRequireWritePermission(t *testing.T) {
	tests := []struct {
		name   string
		role   model.Role
		method string
		target string
	}{
		{"billing cannot mark messages read", model.RoleBilling, http.MethodPost, "/api/v1/programs/prog_1/messages/pn_1/read"},
		{"billing cannot send messages", model.RoleBilling, http.MethodPost, "/api/v1/programs/prog_1/messages/pn_1"},
		{"member cannot confirm payouts", model.RoleMember, http.MethodPost, "/api/v1/programs/prog_1/payouts/confirm"},
		{"member cannot manage webhooks", model.RoleMember, http.MethodPost, "/api/v1/webhooks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := serveAs(t, tt.role, tt.method, tt.target)

			var httpErr *errs.HTTPError
			require.True(t, errors.As(err, &httpErr), "expected *errs.HTTPError, got %v", err)
			assert.Equal(t, http.StatusForbidden, httpErr.Status)
		})
	}
}
