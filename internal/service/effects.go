package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
)

// WebhookDispatcher fans an event out to the subscribed webhooks of a
// workspace.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, workspaceID string, event model.WebhookEvent, data any)
}

// AuditRecorder writes one audit entry.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry is what an operation reports about itself.
type AuditEntry struct {
	Actor      model.Actor
	ProgramID  string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

// effects bundles the fire-and-forget work that follows a successful
// operation. Every method logs failures instead of returning them.
type effects struct {
	jobs     Enqueuer
	webhooks WebhookDispatcher
	audit    AuditRecorder
	logger   *zerolog.Logger
}

func (e *effects) log(ctx context.Context) *zerolog.Logger {
	return logger.FromContext(ctx, e.logger)
}

func (e *effects) email(ctx context.Context, to string, t email.Template, data map[string]string) {
	if to == "" {
		return
	}
	task, err := job.NewSendEmailTask(to, t, data)
	if err == nil {
		_, err = e.jobs.EnqueueContext(ctx, task)
	}
	if err != nil {
		e.log(ctx).Error().Err(err).Str("template", string(t)).Msg("failed to enqueue email")
	}
}

func (e *effects) webhook(ctx context.Context, workspaceID string, event model.WebhookEvent, data any) {
	if e.webhooks == nil {
		return
	}
	e.webhooks.Dispatch(ctx, workspaceID, event, data)
}

func (e *effects) record(ctx context.Context, entry AuditEntry) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, entry)
}

// AuditService persists audit entries best-effort.
type AuditService struct {
	store  AuditStore
	logger *zerolog.Logger
}

func NewAuditService(store AuditStore, logger *zerolog.Logger) *AuditService {
	return &AuditService{store: store, logger: logger}
}

func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil || entry.Metadata == nil {
		metadata = []byte(`{}`)
	}

	var programID *string
	if entry.ProgramID != "" {
		programID = &entry.ProgramID
	}

	_, err = s.store.Create(ctx, &model.AuditLog{
		ID:          model.NewID(model.PrefixAuditLog),
		WorkspaceID: entry.Actor.WorkspaceID,
		ProgramID:   programID,
		ActorID:     entry.Actor.UserID,
		Action:      entry.Action,
		TargetType:  entry.TargetType,
		TargetID:    entry.TargetID,
		Metadata:    metadata,
	})
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).
			Str("action", entry.Action).
			Str("target_id", entry.TargetID).
			Msg("failed to write audit log")
	}
}

// List pages through the workspace's audit trail, newest first.
func (s *AuditService) List(ctx context.Context, actor model.Actor, p model.Pagination) ([]model.AuditLog, error) {
	return s.store.ListByWorkspace(ctx, actor.WorkspaceID, p)
}
