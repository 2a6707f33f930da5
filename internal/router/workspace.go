package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/handler"
	"github.com/deppfellow/partners/internal/middleware"
	"github.com/deppfellow/partners/internal/model"
)

// registerWorkspaceRoutes mounts the dashboard API. g already requires a
// signed-in workspace member; each route adds its permission.
func registerWorkspaceRoutes(g *echo.Group, h *handler.Handlers, mw *middleware.Middlewares) {
	can := middleware.RequirePermission

	track := g.Group("/track", can(model.PermCommissionsWrite), mw.RateLimit.LimitTracking)
	track.POST("/lead", handler.Handle(h.Commissions.TrackLead, http.StatusOK))
	track.POST("/sale", handler.Handle(h.Commissions.TrackSale, http.StatusOK))

	g.GET("/programs", handler.Handle(h.Programs.List, http.StatusOK), can(model.PermProgramsRead))
	g.POST("/programs", handler.Handle(h.Programs.Create, http.StatusCreated), can(model.PermProgramsWrite))

	p := g.Group("/programs/:programId")
	p.GET("", handler.Handle(h.Programs.Get, http.StatusOK), can(model.PermProgramsRead))
	p.PATCH("", handler.Handle(h.Programs.Update, http.StatusOK), can(model.PermProgramsWrite))

	p.GET("/rewards", handler.Handle(h.Programs.ListRewards, http.StatusOK), can(model.PermProgramsRead))
	p.POST("/rewards", handler.Handle(h.Programs.CreateReward, http.StatusCreated), can(model.PermProgramsWrite))
	p.PATCH("/rewards/:rewardId", handler.Handle(h.Programs.UpdateReward, http.StatusOK), can(model.PermProgramsWrite))
	p.DELETE("/rewards/:rewardId", handler.HandleNoContent(h.Programs.DeleteReward, http.StatusNoContent), can(model.PermProgramsWrite))

	p.GET("/discounts", handler.Handle(h.Programs.ListDiscounts, http.StatusOK), can(model.PermProgramsRead))
	p.POST("/discounts", handler.Handle(h.Programs.CreateDiscount, http.StatusCreated), can(model.PermProgramsWrite))
	p.PATCH("/discounts/:discountId", handler.Handle(h.Programs.UpdateDiscount, http.StatusOK), can(model.PermProgramsWrite))
	p.DELETE("/discounts/:discountId", handler.HandleNoContent(h.Programs.DeleteDiscount, http.StatusNoContent), can(model.PermProgramsWrite))

	partners := p.Group("/partners")
	partners.GET("", handler.Handle(h.Partners.List, http.StatusOK), can(model.PermPartnersRead))
	partners.POST("/invite", handler.Handle(h.Partners.Invite, http.StatusCreated), can(model.PermPartnersWrite))
	partners.POST("/approve", handler.Handle(h.Partners.Approve, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/reject", handler.Handle(h.Partners.Reject, http.StatusOK), can(model.PermPartnersWrite))
	partners.GET("/:partnerId", handler.Handle(h.Partners.Get, http.StatusOK), can(model.PermPartnersRead))
	partners.PATCH("/:partnerId/rewards", handler.Handle(h.Partners.UpdateRewards, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/:partnerId/ban", handler.Handle(h.Partners.Ban, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/:partnerId/unban", handler.Handle(h.Partners.Unban, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/:partnerId/archive", handler.Handle(h.Partners.Archive, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/:partnerId/unarchive", handler.Handle(h.Partners.Unarchive, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/:partnerId/deactivate", handler.Handle(h.Partners.Deactivate, http.StatusOK), can(model.PermPartnersWrite))
	partners.POST("/:partnerId/reactivate", handler.Handle(h.Partners.Reactivate, http.StatusOK), can(model.PermPartnersWrite))

	commissions := p.Group("/commissions")
	commissions.GET("", handler.Handle(h.Commissions.List, http.StatusOK), can(model.PermCommissionsRead))
	commissions.POST("", handler.Handle(h.Commissions.Create, http.StatusCreated), can(model.PermCommissionsWrite))
	commissions.GET("/:commissionId", handler.Handle(h.Commissions.Get, http.StatusOK), can(model.PermCommissionsRead))
	commissions.PATCH("/:commissionId", handler.Handle(h.Commissions.Update, http.StatusOK), can(model.PermCommissionsWrite))
	commissions.POST("/:commissionId/mark-duplicate", handler.Handle(h.Commissions.MarkDuplicate, http.StatusOK), can(model.PermCommissionsWrite))
	commissions.POST("/:commissionId/mark-fraud", handler.Handle(h.Commissions.MarkFraud, http.StatusOK), can(model.PermCommissionsWrite))
	commissions.POST("/:commissionId/refund", handler.Handle(h.Commissions.Refund, http.StatusOK), can(model.PermCommissionsWrite))

	payouts := p.Group("/payouts")
	payouts.GET("", handler.Handle(h.Payouts.List, http.StatusOK), can(model.PermPayoutsRead))
	payouts.POST("/confirm", handler.Handle(h.Payouts.Confirm, http.StatusAccepted), can(model.PermPayoutsWrite))
	payouts.GET("/:payoutId", handler.Handle(h.Payouts.Get, http.StatusOK), can(model.PermPayoutsRead))
	payouts.POST("/:payoutId/mark-paid", handler.Handle(h.Payouts.MarkPaid, http.StatusOK), can(model.PermPayoutsWrite))
	payouts.POST("/:payoutId/retry", handler.Handle(h.Payouts.Retry, http.StatusOK), can(model.PermPayoutsWrite))
	payouts.POST("/:payoutId/cancel", handler.Handle(h.Payouts.Cancel, http.StatusOK), can(model.PermPayoutsWrite))

	fraud := p.Group("/fraud/groups")
	fraud.GET("", handler.Handle(h.Fraud.ListGroups, http.StatusOK), can(model.PermFraudRead))
	fraud.POST("/resolve", handler.Handle(h.Fraud.BulkResolve, http.StatusOK), can(model.PermFraudWrite))
	fraud.GET("/:groupId", handler.Handle(h.Fraud.GetGroup, http.StatusOK), can(model.PermFraudRead))
	fraud.POST("/:groupId/resolve", handler.Handle(h.Fraud.Resolve, http.StatusOK), can(model.PermFraudWrite))
	fraud.POST("/:groupId/ban", handler.Handle(h.Fraud.ResolveAndBan, http.StatusOK), can(model.PermFraudWrite), can(model.PermPartnersWrite))

	bounties := p.Group("/bounties")
	bounties.GET("", handler.Handle(h.Bounties.List, http.StatusOK), can(model.PermProgramsRead))
	bounties.POST("", handler.Handle(h.Bounties.Create, http.StatusCreated), can(model.PermBountiesWrite))
	bounties.GET("/:bountyId", handler.Handle(h.Bounties.Get, http.StatusOK), can(model.PermProgramsRead))
	bounties.PATCH("/:bountyId", handler.Handle(h.Bounties.Update, http.StatusOK), can(model.PermBountiesWrite))
	bounties.DELETE("/:bountyId", handler.HandleNoContent(h.Bounties.Delete, http.StatusNoContent), can(model.PermBountiesWrite))
	bounties.GET("/:bountyId/submissions", handler.Handle(h.Bounties.ListSubmissions, http.StatusOK), can(model.PermProgramsRead))
	bounties.POST("/:bountyId/submissions/:submissionId/approve", handler.Handle(h.Bounties.Approve, http.StatusOK), can(model.PermBountiesWrite))
	bounties.POST("/:bountyId/submissions/:submissionId/reject", handler.Handle(h.Bounties.Reject, http.StatusOK), can(model.PermBountiesWrite))

	messages := p.Group("/messages/:partnerId")
	messages.GET("", handler.Handle(h.Messages.ListForProgram, http.StatusOK), can(model.PermMessagesRead))
	messages.POST("", handler.Handle(h.Messages.SendFromProgram, http.StatusCreated), can(model.PermMessagesWrite))
	messages.POST("/read", handler.Handle(h.Messages.MarkReadByProgram, http.StatusOK), can(model.PermMessagesWrite))

	g.GET("/webhooks", handler.Handle(h.Workspace.ListWebhooks, http.StatusOK), can(model.PermWebhooksWrite))
	g.POST("/webhooks", handler.Handle(h.Workspace.CreateWebhook, http.StatusCreated), can(model.PermWebhooksWrite))
	g.DELETE("/webhooks/:webhookId", handler.HandleNoContent(h.Workspace.DeleteWebhook, http.StatusNoContent), can(model.PermWebhooksWrite))

	g.GET("/audit-logs", handler.Handle(h.Workspace.ListAuditLogs, http.StatusOK), can(model.PermProgramsRead))
}
