// Package job runs background work on asynq: emails, webhook deliveries,
// payout aggregation and invoice processing, message notifications and
// bounty evaluation. Periodic tasks are registered on an asynq.Scheduler.
package job

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/config"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// bountyEvaluationCron runs performance bounty checks at half past every hour.
const bountyEvaluationCron = "30 * * * *"

type JobService struct {
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	cfg       *config.Config

	logger *zerolog.Logger

	handlers Handlers
	started  bool
}

func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6, // payouts and invoices
				QueueDefault:  3, // webhooks
				QueueLow:      1, // emails, notifications, bounty checks
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error().
					Err(err).
					Str("task_type", task.Type()).
					Int("retry", retried).
					Int("max_retry", maxRetry).
					Msg("background task failed")
			}),
		},
	)

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		LogLevel: asynq.WarnLevel,
	})

	return &JobService{
		Client:    client,
		server:    server,
		scheduler: scheduler,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start registers task handlers and periodic tasks, then starts the worker
// server and the scheduler. Neither blocks.
func (j *JobService) Start() error {
	mux := asynq.NewServeMux()

	mux.HandleFunc(TaskSendEmail, j.handleSendEmailTask)
	mux.HandleFunc(TaskDeliverWebhook, j.handleDeliverWebhookTask)
	mux.HandleFunc(TaskAggregatePayouts, j.handleAggregatePayoutsTask)
	mux.HandleFunc(TaskProcessInvoice, j.handleProcessInvoiceTask)
	mux.HandleFunc(TaskNotifyMessages, j.handleNotifyMessagesTask)
	mux.HandleFunc(TaskEvaluateBounties, j.handleEvaluateBountiesTask)

	if _, err := j.scheduler.Register(j.cfg.Payouts.AggregationCron, NewAggregatePayoutsTask()); err != nil {
		return err
	}
	if _, err := j.scheduler.Register(bountyEvaluationCron, NewEvaluateBountiesTask()); err != nil {
		return err
	}

	j.logger.Info().
		Str("aggregation_cron", j.cfg.Payouts.AggregationCron).
		Msg("Starting background job server")

	if err := j.server.Start(mux); err != nil {
		return err
	}
	if err := j.scheduler.Start(); err != nil {
		j.server.Shutdown()
		return err
	}

	j.started = true
	return nil
}

// Stop shuts the worker down. Safe to call when Start was never called.
func (j *JobService) Stop() {
	j.logger.Info().Msg("Stopping background job server")
	if j.started {
		j.scheduler.Shutdown()
		j.server.Shutdown()
	}
	j.Client.Close()
}
