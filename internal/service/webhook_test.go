package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/model"
)

func newTestWebhookService(store WebhookStore, jobs Enqueuer, sender WebhookSender) *WebhookService {
	cfg := config.DefaultWebhooksConfig()
	cfg.MaxConsecutiveFailures = 3
	return NewWebhookService(store, jobs, sender, cfg, &testLogger)
}

func TestDeliver(t *testing.T) {
	ctx := context.Background()
	body := []byte(`{"event":"commission.created"}`)
	refused := errors.New("connection refused")

	t.Run("success resets failures", func(t *testing.T) {
		store := &webhookStoreMock{webhook: &model.Webhook{ID: "wh_1", URL: "https://hooks.example.com", Secret: "whsec_x", ConsecutiveFailures: 2}}
		var gotBody []byte
		svc := newTestWebhookService(store, &recordingEnqueuer{}, senderFunc(func(_ context.Context, url, secret string, _ model.WebhookEvent, b []byte) error {
			assert.Equal(t, "https://hooks.example.com", url)
			assert.Equal(t, "whsec_x", secret)
			gotBody = b
			return nil
		}))

		require.NoError(t, svc.Deliver(ctx, "wh_1", model.WebhookCommissionCreated, body))
		assert.Equal(t, body, gotBody)
		assert.Equal(t, 1, store.successCalls)
		assert.Zero(t, store.webhook.ConsecutiveFailures)
	})

	t.Run("failure is retried until the webhook is disabled", func(t *testing.T) {
		store := &webhookStoreMock{webhook: &model.Webhook{ID: "wh_1", ConsecutiveFailures: 1}}
		svc := newTestWebhookService(store, &recordingEnqueuer{}, senderFunc(func(context.Context, string, string, model.WebhookEvent, []byte) error {
			return refused
		}))

		assert.ErrorIs(t, svc.Deliver(ctx, "wh_1", model.WebhookCommissionCreated, body), refused)
		assert.Nil(t, store.webhook.DisabledAt)

		assert.NoError(t, svc.Deliver(ctx, "wh_1", model.WebhookCommissionCreated, body), "disabling stops retries")
		assert.NotNil(t, store.webhook.DisabledAt)
		assert.Equal(t, 3, store.maxFailuresIn)
	})

	t.Run("disabled webhooks are skipped", func(t *testing.T) {
		store := &webhookStoreMock{webhook: &model.Webhook{ID: "wh_1", DisabledAt: &testNow}}
		svc := newTestWebhookService(store, &recordingEnqueuer{}, senderFunc(func(context.Context, string, string, model.WebhookEvent, []byte) error {
			t.Fatal("disabled webhook was called")
			return nil
		}))

		require.NoError(t, svc.Deliver(ctx, "wh_1", model.WebhookCommissionCreated, body))
		assert.Zero(t, store.failures)
	})

	t.Run("deleted webhooks are dropped", func(t *testing.T) {
		store := &webhookStoreMock{}
		svc := newTestWebhookService(store, &recordingEnqueuer{}, nil)
		require.NoError(t, svc.Deliver(ctx, "wh_gone", model.WebhookCommissionCreated, body))
	})
}

type lockedEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (e *lockedEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type subscribedWebhooks struct {
	WebhookStore
	hooks []model.Webhook
}

func (s *subscribedWebhooks) ListForEvent(context.Context, string, model.WebhookEvent) ([]model.Webhook, error) {
	return s.hooks, nil
}

func TestDispatchQueuesOneDeliveryPerWebhook(t *testing.T) {
	jobs := &lockedEnqueuer{}
	store := &subscribedWebhooks{hooks: []model.Webhook{{ID: "wh_1"}, {ID: "wh_2"}, {ID: "wh_3"}}}
	svc := newTestWebhookService(store, jobs, nil)

	svc.Dispatch(context.Background(), "ws_1", model.WebhookPartnerEnrolled, map[string]string{"id": "pn_1"})

	require.Len(t, jobs.tasks, 3)
	seen := map[string]bool{}
	var bodies []string
	for _, task := range jobs.tasks {
		assert.Equal(t, job.TaskDeliverWebhook, task.Type())
		var p job.DeliverWebhookPayload
		require.NoError(t, json.Unmarshal(task.Payload(), &p))
		assert.Equal(t, model.WebhookPartnerEnrolled, p.Event)
		seen[p.WebhookID] = true
		bodies = append(bodies, string(p.Body))
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, bodies[0], bodies[1], "every receiver gets the same body")
	assert.Equal(t, bodies[0], bodies[2])
}

func TestDispatchWithoutSubscribers(t *testing.T) {
	jobs := &lockedEnqueuer{}
	svc := newTestWebhookService(&subscribedWebhooks{}, jobs, nil)

	svc.Dispatch(context.Background(), "ws_1", model.WebhookPartnerEnrolled, nil)
	assert.Empty(t, jobs.tasks)
}
