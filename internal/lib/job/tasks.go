package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/model"
)

const (
	TaskSendEmail        = "email:send"
	TaskDeliverWebhook   = "webhook:deliver"
	TaskAggregatePayouts = "payouts:aggregate"
	TaskProcessInvoice   = "payouts:process_invoice"
	TaskNotifyMessages   = "messages:notify"
	TaskEvaluateBounties = "bounties:evaluate"
)

// MessageNotificationDelay lets a burst of messages collapse into one email.
const MessageNotificationDelay = 3 * time.Minute

type SendEmailPayload struct {
	To       string            `json:"to"`
	Template email.Template    `json:"template"`
	Data     map[string]string `json:"data"`
}

func NewSendEmailTask(to string, template email.Template, data map[string]string) (*asynq.Task, error) {
	payload, err := json.Marshal(SendEmailPayload{
		To:       to,
		Template: template,
		Data:     data,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskSendEmail,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueLow),
		asynq.Timeout(30*time.Second),
	), nil
}

type DeliverWebhookPayload struct {
	WebhookID string             `json:"webhook_id"`
	Event     model.WebhookEvent `json:"event"`
	Body      json.RawMessage    `json:"body"`
}

// NewDeliverWebhookTask carries the already-built body so every retry
// posts identical bytes under an identical signature.
func NewDeliverWebhookTask(webhookID string, event model.WebhookEvent, body []byte, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(DeliverWebhookPayload{
		WebhookID: webhookID,
		Event:     event,
		Body:      body,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeliverWebhook,
		payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue(QueueDefault),
		asynq.Timeout(timeout+5*time.Second),
	), nil
}

type AggregatePayoutsPayload struct {
	// ProgramID limits aggregation to one program; empty means all.
	ProgramID string `json:"program_id,omitempty"`
}

func NewAggregatePayoutsTask() *asynq.Task {
	payload, _ := json.Marshal(AggregatePayoutsPayload{})
	return asynq.NewTask(
		TaskAggregatePayouts,
		payload,
		asynq.MaxRetry(2),
		asynq.Queue(QueueCritical),
		asynq.Timeout(10*time.Minute),
	)
}

type ProcessInvoicePayload struct {
	InvoiceID string `json:"invoice_id"`
}

func NewProcessInvoiceTask(invoiceID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessInvoicePayload{InvoiceID: invoiceID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskProcessInvoice,
		payload,
		asynq.MaxRetry(5),
		asynq.Queue(QueueCritical),
		asynq.Timeout(5*time.Minute),
	), nil
}

type NotifyMessagesPayload struct {
	ProgramID string                 `json:"program_id"`
	PartnerID string                 `json:"partner_id"`
	Direction model.MessageDirection `json:"direction"`
}

// NewNotifyMessagesTask is delayed and unique per conversation side, so
// several messages sent within the delay produce a single email.
func NewNotifyMessagesTask(programID, partnerID string, direction model.MessageDirection) (*asynq.Task, error) {
	payload, err := json.Marshal(NotifyMessagesPayload{
		ProgramID: programID,
		PartnerID: partnerID,
		Direction: direction,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskNotifyMessages,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue(QueueLow),
		asynq.ProcessIn(MessageNotificationDelay),
		asynq.Unique(MessageNotificationDelay),
	), nil
}

func NewEvaluateBountiesTask() *asynq.Task {
	return asynq.NewTask(
		TaskEvaluateBounties,
		nil,
		asynq.MaxRetry(1),
		asynq.Queue(QueueLow),
		asynq.Timeout(10*time.Minute),
	)
}
