package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/model"
)

// EmailSender delivers a rendered template.
type EmailSender interface {
	SendTemplate(to string, t email.Template, data map[string]string) error
}

type WebhookDeliverer interface {
	Deliver(ctx context.Context, webhookID string, event model.WebhookEvent, body []byte) error
}

type PayoutProcessor interface {
	AggregateDueCommissions(ctx context.Context, programID string) error
	ProcessInvoice(ctx context.Context, invoiceID string) error
}

type MessageNotifier interface {
	NotifyUnread(ctx context.Context, programID, partnerID string, direction model.MessageDirection) error
}

type BountyEvaluator interface {
	EvaluatePerformanceBounties(ctx context.Context) error
}

// Handlers are the collaborators task handlers delegate to. They are
// provided by the service layer once it is built.
type Handlers struct {
	Email    EmailSender
	Webhooks WebhookDeliverer
	Payouts  PayoutProcessor
	Messages MessageNotifier
	Bounties BountyEvaluator
}

func (j *JobService) InitHandlers(h Handlers) {
	j.handlers = h
}

func decodePayload(t *asynq.Task, v any) error {
	if err := json.Unmarshal(t.Payload(), v); err != nil {
		// A payload that cannot be decoded will never succeed.
		return fmt.Errorf("failed to unmarshal %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	return nil
}

func (j *JobService) handleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var p SendEmailPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}

	j.logger.Info().
		Str("template", string(p.Template)).
		Str("to", p.To).
		Msg("Processing email task")

	if err := j.handlers.Email.SendTemplate(p.To, p.Template, p.Data); err != nil {
		j.logger.Error().
			Str("template", string(p.Template)).
			Str("to", p.To).
			Err(err).
			Msg("Failed to send email")
		return err
	}

	j.logger.Info().
		Str("template", string(p.Template)).
		Str("to", p.To).
		Msg("Successfully sent email")

	return nil
}

func (j *JobService) handleDeliverWebhookTask(ctx context.Context, t *asynq.Task) error {
	var p DeliverWebhookPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	return j.handlers.Webhooks.Deliver(ctx, p.WebhookID, p.Event, p.Body)
}

func (j *JobService) handleAggregatePayoutsTask(ctx context.Context, t *asynq.Task) error {
	var p AggregatePayoutsPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	return j.handlers.Payouts.AggregateDueCommissions(ctx, p.ProgramID)
}

func (j *JobService) handleProcessInvoiceTask(ctx context.Context, t *asynq.Task) error {
	var p ProcessInvoicePayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	return j.handlers.Payouts.ProcessInvoice(ctx, p.InvoiceID)
}

func (j *JobService) handleNotifyMessagesTask(ctx context.Context, t *asynq.Task) error {
	var p NotifyMessagesPayload
	if err := decodePayload(t, &p); err != nil {
		return err
	}
	return j.handlers.Messages.NotifyUnread(ctx, p.ProgramID, p.PartnerID, p.Direction)
}

func (j *JobService) handleEvaluateBountiesTask(ctx context.Context, t *asynq.Task) error {
	return j.handlers.Bounties.EvaluatePerformanceBounties(ctx)
}
