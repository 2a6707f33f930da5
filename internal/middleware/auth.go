package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type AuthMiddleware struct {
	server *server.Server
	auth   *service.AuthService
}

func NewAuthMiddleware(s *server.Server, auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{server: s, auth: auth}
}

// RequireAuth verifies the Clerk bearer token. Requests without a valid
// session get the standard 401 body.
func (a *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return echo.WrapMiddleware(
		clerkhttp.WithHeaderAuthorization(
			clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(a.writeUnauthorized)),
		),
	)(func(c echo.Context) error {
		claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
		if !ok || claims.Subject == "" {
			GetLogger(c).Warn().Msg("request passed clerk without session claims")
			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		c.Set(UserIDKey, claims.Subject)
		l := GetLogger(c).With().Str("user_id", claims.Subject).Logger()
		setLogger(c, &l)

		return next(c)
	})
}

func (a *AuthMiddleware) writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)

	body := errs.NewUnauthorizedError("Unauthorized", false)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.server.Logger.Error().Err(err).Msg("failed to write unauthorized response")
	}
}

// RequireWorkspace resolves the caller's active Clerk organization into a
// workspace actor. It must run after RequireAuth.
func (a *AuthMiddleware) RequireWorkspace(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, _ := clerk.SessionClaimsFromContext(c.Request().Context())
		actor, err := a.auth.Actor(claims)
		if err != nil {
			return err
		}

		c.Set(ActorKey, actor)
		c.Set(WorkspaceIDKey, actor.WorkspaceID)
		l := GetLogger(c).With().
			Str("workspace_id", actor.WorkspaceID).
			Str("role", string(actor.Role)).
			Logger()
		setLogger(c, &l)

		return next(c)
	}
}

// RequirePartner loads the partner profile of the signed-in user. Users
// who never applied to a program have none and get a 404.
func (a *AuthMiddleware) RequirePartner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, _ := clerk.SessionClaimsFromContext(c.Request().Context())
		partner, err := a.auth.Partner(c.Request().Context(), claims)
		if err != nil {
			return err
		}

		c.Set(PartnerKey, partner)
		l := GetLogger(c).With().Str("partner_id", partner.ID).Logger()
		setLogger(c, &l)

		return next(c)
	}
}

// RequirePermission rejects workspace members whose role lacks perm.
func RequirePermission(perm model.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := GetActor(c)
			if !ok {
				return errs.NewUnauthorizedError("Unauthorized", false)
			}
			if !model.HasPermission(actor.Role, perm) {
				GetLogger(c).Warn().Str("permission", string(perm)).Msg("permission denied")
				return errs.NewForbiddenError("You don't have permission to perform this action", true)
			}
			return next(c)
		}
	}
}
