package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

// WorkspaceHandler serves workspace-wide settings: webhooks and the audit
// log.
type WorkspaceHandler struct {
	Handler
	webhooks *service.WebhookService
	audit    *service.AuditService
}

func NewWorkspaceHandler(s *server.Server, webhooks *service.WebhookService, audit *service.AuditService) *WorkspaceHandler {
	return &WorkspaceHandler{Handler: NewHandler(s), webhooks: webhooks, audit: audit}
}

func (h *WorkspaceHandler) ListWebhooks(c echo.Context, req *model.Empty) ([]model.Webhook, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, _ *model.Empty) ([]model.Webhook, error) {
		return h.webhooks.List(ctx, actor)
	})
}

// CreateWebhook returns the signing secret; it is never shown again.
func (h *WorkspaceHandler) CreateWebhook(c echo.Context, req *model.CreateWebhookRequest) (*model.CreateWebhookResponse, error) {
	return withActor(c, req, h.webhooks.Create)
}

func (h *WorkspaceHandler) DeleteWebhook(c echo.Context, req *model.WebhookRef) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	return h.webhooks.Delete(c.Request().Context(), actor, req.WebhookID)
}

func (h *WorkspaceHandler) ListAuditLogs(c echo.Context, req *model.ListAuditLogsRequest) ([]model.AuditLog, error) {
	return withActor(c, req, func(ctx context.Context, actor model.Actor, req *model.ListAuditLogsRequest) ([]model.AuditLog, error) {
		logs, err := h.audit.List(ctx, actor, req.Pagination)
		if logs == nil && err == nil {
			logs = []model.AuditLog{}
		}
		return logs, err
	})
}
