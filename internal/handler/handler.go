// Package handler adapts HTTP requests to the service layer. Every
// endpoint is a typed function wrapped by Handle, which binds and validates
// the request before the service runs.
package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
)

// withActor calls a workspace-scoped service method as the signed-in
// member.
func withActor[Req, Res any](c echo.Context, req Req, fn func(context.Context, model.Actor, Req) (Res, error)) (Res, error) {
	actor, err := actorFrom(c)
	if err != nil {
		var zero Res
		return zero, err
	}
	return fn(c.Request().Context(), actor, req)
}

// asPartner calls a partner-side service method as the signed-in partner.
func asPartner[Req, Res any](c echo.Context, req Req, fn func(context.Context, *model.Partner, Req) (Res, error)) (Res, error) {
	partner, err := partnerFrom(c)
	if err != nil {
		var zero Res
		return zero, err
	}
	return fn(c.Request().Context(), partner, req)
}
