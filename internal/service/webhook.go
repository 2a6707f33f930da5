package service

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/lib/webhook"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
)

// maxParallelEnqueues bounds the goroutines one Dispatch starts.
const maxParallelEnqueues = 8

// WebhookSender posts a signed body to a receiver.
type WebhookSender interface {
	Send(ctx context.Context, url, secret string, event model.WebhookEvent, body []byte) error
}

type WebhookService struct {
	store  WebhookStore
	jobs   Enqueuer
	sender WebhookSender
	cfg    *config.WebhooksConfig
	logger *zerolog.Logger
}

func NewWebhookService(store WebhookStore, jobs Enqueuer, sender WebhookSender, cfg *config.WebhooksConfig, logger *zerolog.Logger) *WebhookService {
	return &WebhookService{store: store, jobs: jobs, sender: sender, cfg: cfg, logger: logger}
}

func (s *WebhookService) Create(ctx context.Context, actor model.Actor, req *model.CreateWebhookRequest) (*model.CreateWebhookResponse, error) {
	secret, err := webhook.NewSecret()
	if err != nil {
		return nil, err
	}

	w, err := s.store.Create(ctx, &model.Webhook{
		ID:          model.NewID(model.PrefixWebhook),
		WorkspaceID: actor.WorkspaceID,
		Name:        req.Name,
		URL:         req.URL,
		Secret:      secret,
		Triggers:    req.Triggers,
	})
	if err != nil {
		return nil, err
	}

	return &model.CreateWebhookResponse{Webhook: *w, Secret: secret}, nil
}

func (s *WebhookService) List(ctx context.Context, actor model.Actor) ([]model.Webhook, error) {
	return s.store.ListByWorkspace(ctx, actor.WorkspaceID)
}

func (s *WebhookService) Delete(ctx context.Context, actor model.Actor, webhookID string) error {
	return s.store.Delete(ctx, actor.WorkspaceID, webhookID)
}

// Dispatch builds the payload once and queues one delivery per subscribed
// webhook. Failures are logged.
func (s *WebhookService) Dispatch(ctx context.Context, workspaceID string, event model.WebhookEvent, data any) {
	log := logger.FromContext(ctx, s.logger).With().
		Str("workspace_id", workspaceID).
		Str("event", string(event)).
		Logger()

	hooks, err := s.store.ListForEvent(ctx, workspaceID, event)
	if err != nil {
		log.Error().Err(err).Msg("failed to list webhooks")
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := webhook.BuildPayload(event, data)
	if err != nil {
		log.Error().Err(err).Msg("failed to build webhook payload")
		return
	}

	var g errgroup.Group
	g.SetLimit(maxParallelEnqueues)
	for _, h := range hooks {
		h := h
		g.Go(func() error {
			task, err := job.NewDeliverWebhookTask(h.ID, event, body, s.cfg.MaxRetry, s.cfg.Timeout)
			if err == nil {
				_, err = s.jobs.EnqueueContext(ctx, task)
			}
			if err != nil {
				log.Error().Err(err).Str("webhook_id", h.ID).Msg("failed to enqueue webhook delivery")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Deliver sends one queued delivery. A returned error makes asynq retry;
// after MaxConsecutiveFailures failed attempts the webhook is disabled.
func (s *WebhookService) Deliver(ctx context.Context, webhookID string, event model.WebhookEvent, body []byte) error {
	log := logger.FromContext(ctx, s.logger).With().Str("webhook_id", webhookID).Logger()

	w, err := s.store.GetByID(ctx, webhookID)
	if isNotFound(err) {
		log.Info().Msg("webhook deleted before delivery, dropping")
		return nil
	}
	if err != nil {
		return err
	}
	if w.DisabledAt != nil {
		log.Info().Msg("webhook disabled, dropping delivery")
		return nil
	}

	sendErr := s.sender.Send(ctx, w.URL, w.Secret, event, body)
	if sendErr == nil {
		if err := s.store.RecordSuccess(ctx, w.ID); err != nil {
			log.Warn().Err(err).Msg("failed to reset webhook failure count")
		}
		return nil
	}

	updated, err := s.store.RecordFailure(ctx, w.ID, s.cfg.MaxConsecutiveFailures)
	if err != nil {
		log.Warn().Err(err).Msg("failed to record webhook failure")
	} else if updated.DisabledAt != nil {
		log.Warn().Int("consecutive_failures", updated.ConsecutiveFailures).Msg("webhook disabled after repeated failures")
		return nil
	}

	return sendErr
}
