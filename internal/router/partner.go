package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/handler"
	"github.com/deppfellow/partners/internal/middleware"
)

// registerPartnerRoutes mounts the partner portal. Applying only needs a
// signed-in user; everything else needs a partner profile.
func registerPartnerRoutes(g *echo.Group, h *handler.Handlers, mw *middleware.Middlewares) {
	g.POST("/programs/:programSlug/apply", handler.Handle(h.Partners.Apply, http.StatusCreated))

	me := g.Group("", mw.Auth.RequirePartner)
	me.GET("/me", handler.Handle(h.Partners.Me, http.StatusOK))
	me.POST("/me/payouts/enable", handler.Handle(h.Partners.EnablePayouts, http.StatusOK))
	me.GET("/programs", handler.Handle(h.Partners.MyPrograms, http.StatusOK))

	p := me.Group("/programs/:programId")
	p.GET("/bounties", handler.Handle(h.Bounties.ListForPartner, http.StatusOK))
	p.POST("/bounties/:bountyId/submissions", handler.Handle(h.Bounties.Submit, http.StatusCreated))
	p.GET("/messages", handler.Handle(h.Messages.ListForPartner, http.StatusOK))
	p.POST("/messages", handler.Handle(h.Messages.SendFromPartner, http.StatusCreated))
	p.POST("/messages/read", handler.Handle(h.Messages.MarkReadByPartner, http.StatusOK))
}
