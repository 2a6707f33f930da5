package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const webhookColumns = `id, workspace_id, name, url, secret, triggers, consecutive_failures, disabled_at, created_at, updated_at`

type WebhookRepository struct {
	db *database.Database
}

func (r *WebhookRepository) Create(ctx context.Context, w *model.Webhook) (*model.Webhook, error) {
	query := `
		INSERT INTO webhooks (id, workspace_id, name, url, secret, triggers)
		VALUES (@id, @workspace_id, @name, @url, @secret, @triggers)
		RETURNING ` + webhookColumns

	return getOne[model.Webhook](ctx, r.db.Q(ctx), "webhooks", query, pgx.NamedArgs{
		"id":           w.ID,
		"workspace_id": w.WorkspaceID,
		"name":         w.Name,
		"url":          w.URL,
		"secret":       w.Secret,
		"triggers":     statusStrings(w.Triggers),
	})
}

// GetByID looks a webhook up without workspace scoping; the delivery job
// only knows the id.
func (r *WebhookRepository) GetByID(ctx context.Context, id string) (*model.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`
	return getOne[model.Webhook](ctx, r.db.Q(ctx), "webhooks", query, id)
}

func (r *WebhookRepository) Delete(ctx context.Context, workspaceID, id string) error {
	n, err := exec(ctx, r.db.Q(ctx), "webhooks", `DELETE FROM webhooks WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("webhooks")
	}
	return nil
}

func (r *WebhookRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE workspace_id = $1 ORDER BY created_at`
	return getAll[model.Webhook](ctx, r.db.Q(ctx), "webhooks", query, workspaceID)
}

// ListForEvent returns the enabled webhooks of workspaceID subscribed to
// event.
func (r *WebhookRepository) ListForEvent(ctx context.Context, workspaceID string, event model.WebhookEvent) ([]model.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks
		WHERE workspace_id = $1 AND disabled_at IS NULL AND $2 = ANY(triggers)`
	return getAll[model.Webhook](ctx, r.db.Q(ctx), "webhooks", query, workspaceID, string(event))
}

// RecordFailure counts a failed delivery and disables the webhook once
// maxFailures consecutive deliveries failed.
func (r *WebhookRepository) RecordFailure(ctx context.Context, id string, maxFailures int) (*model.Webhook, error) {
	query := `
		UPDATE webhooks SET
			consecutive_failures = consecutive_failures + 1,
			disabled_at = CASE WHEN consecutive_failures + 1 >= $2 THEN COALESCE(disabled_at, NOW()) ELSE disabled_at END,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + webhookColumns
	return getOne[model.Webhook](ctx, r.db.Q(ctx), "webhooks", query, id, maxFailures)
}

func (r *WebhookRepository) RecordSuccess(ctx context.Context, id string) error {
	_, err := exec(ctx, r.db.Q(ctx), "webhooks",
		`UPDATE webhooks SET consecutive_failures = 0, updated_at = NOW() WHERE id = $1 AND consecutive_failures > 0`, id)
	return err
}

const auditLogColumns = `id, workspace_id, program_id, actor_id, action, target_type, target_id, metadata, created_at`

type AuditLogRepository struct {
	db *database.Database
}

func (r *AuditLogRepository) Create(ctx context.Context, a *model.AuditLog) (*model.AuditLog, error) {
	query := `
		INSERT INTO audit_logs (id, workspace_id, program_id, actor_id, action, target_type, target_id, metadata)
		VALUES (@id, @workspace_id, @program_id, @actor_id, @action, @target_type, @target_id, @metadata)
		RETURNING ` + auditLogColumns

	metadata := a.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	return getOne[model.AuditLog](ctx, r.db.Q(ctx), "audit_logs", query, pgx.NamedArgs{
		"id":           a.ID,
		"workspace_id": a.WorkspaceID,
		"program_id":   a.ProgramID,
		"actor_id":     a.ActorID,
		"action":       a.Action,
		"target_type":  a.TargetType,
		"target_id":    a.TargetID,
		"metadata":     metadata,
	})
}

func (r *AuditLogRepository) ListByWorkspace(ctx context.Context, workspaceID string, p model.Pagination) ([]model.AuditLog, error) {
	query := `SELECT ` + auditLogColumns + ` FROM audit_logs WHERE workspace_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	return getAll[model.AuditLog](ctx, r.db.Q(ctx), "audit_logs", query, workspaceID, p.Limit(), p.Offset())
}
