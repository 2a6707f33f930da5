package model

import (
	"encoding/json"
	"slices"
	"time"
)

type WebhookEvent string

const (
	WebhookPartnerEnrolled   WebhookEvent = "partner.enrolled"
	WebhookPartnerBanned     WebhookEvent = "partner.banned"
	WebhookCommissionCreated WebhookEvent = "commission.created"
	WebhookPayoutConfirmed   WebhookEvent = "payout.confirmed"
)

type Webhook struct {
	ID                  string         `json:"id" db:"id"`
	WorkspaceID         string         `json:"workspaceId" db:"workspace_id"`
	Name                string         `json:"name" db:"name"`
	URL                 string         `json:"url" db:"url"`
	Secret              string         `json:"-" db:"secret"`
	Triggers            []WebhookEvent `json:"triggers" db:"triggers"`
	ConsecutiveFailures int            `json:"consecutiveFailures" db:"consecutive_failures"`
	DisabledAt          *time.Time     `json:"disabledAt" db:"disabled_at"`
	CreatedAt           time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time      `json:"updatedAt" db:"updated_at"`
}

func (w *Webhook) Subscribes(event WebhookEvent) bool {
	return w.DisabledAt == nil && slices.Contains(w.Triggers, event)
}

// WebhookPayload is the body posted to receivers.
type WebhookPayload struct {
	ID        string          `json:"id"`
	Event     WebhookEvent    `json:"event"`
	CreatedAt time.Time       `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

type CreateWebhookRequest struct {
	Name     string         `json:"name" validate:"required,min=1,max=190"`
	URL      string         `json:"url" validate:"required,url,startswith=https://"`
	Triggers []WebhookEvent `json:"triggers" validate:"required,min=1,dive,oneof=partner.enrolled partner.banned commission.created payout.confirmed"`
}

func (r *CreateWebhookRequest) Validate() error {
	return validate.Struct(r)
}

// CreateWebhookResponse reveals the signing secret once.
type CreateWebhookResponse struct {
	Webhook
	Secret string `json:"secret"`
}

type WebhookRef struct {
	WebhookID string `json:"-" param:"webhookId" validate:"required"`
}

func (r *WebhookRef) Validate() error {
	return validate.Struct(r)
}

type AuditLog struct {
	ID          string          `json:"id" db:"id"`
	WorkspaceID string          `json:"workspaceId" db:"workspace_id"`
	ProgramID   *string         `json:"programId" db:"program_id"`
	ActorID     string          `json:"actorId" db:"actor_id"`
	Action      string          `json:"action" db:"action"`
	TargetType  string          `json:"targetType" db:"target_type"`
	TargetID    string          `json:"targetId" db:"target_id"`
	Metadata    json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
}

type ListAuditLogsRequest struct {
	Pagination
}

func (r *ListAuditLogsRequest) Validate() error {
	return validate.Struct(r)
}
