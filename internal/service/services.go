package service

import (
	"fmt"

	"github.com/deppfellow/partners/internal/lib/cache"
	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/lib/rules"
	"github.com/deppfellow/partners/internal/lib/webhook"
	"github.com/deppfellow/partners/internal/repository"
	"github.com/deppfellow/partners/internal/server"
)

type Services struct {
	Auth        *AuthService
	Audit       *AuditService
	Programs    *ProgramService
	Rewards     *RewardService
	Partners    *PartnerService
	Commissions *CommissionService
	Payouts     *PayoutService
	Fraud       *FraudService
	Bounties    *BountyService
	Messages    *MessageService
	Webhooks    *WebhookService
	Job         *job.JobService
}

func NewServices(s *server.Server, repos *repository.Repositories) (*Services, error) {
	cfg := s.Config

	rewardRules, err := rules.NewRewardEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to build reward rule environment: %w", err)
	}
	bountyRules, err := rules.NewBountyEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to build bounty rule environment: %w", err)
	}

	auditService := NewAuditService(repos.AuditLogs, s.Logger)
	webhookService := NewWebhookService(repos.Webhooks, s.Job.Client, webhook.NewSender(cfg.Webhooks.Timeout), cfg.Webhooks, s.Logger)

	fx := &effects{
		jobs:     s.Job.Client,
		webhooks: webhookService,
		audit:    auditService,
		logger:   s.Logger,
	}

	programService := NewProgramService(repos.Programs, repos.Discounts, cache.NewProgramCache(s.Redis, cache.DefaultProgramTTL), cfg.Payouts, fx, s.Logger)
	rewardService := NewRewardService(programService, repos.Rewards, repos.Discounts, rewardRules, s.DB, fx, s.Logger)
	fraudService := NewFraudService(programService, repos.Fraud, s.DB, fx, s.Logger)

	partnerService := NewPartnerService(
		programService,
		repos.Partners,
		repos.Enrollments,
		repos.Commissions,
		repos.Payouts,
		fraudService,
		repos.Fraud,
		s.DB,
		fx,
		s.Logger,
	)

	commissionService := NewCommissionService(
		programService,
		repos.Partners,
		repos.Enrollments,
		repos.Commissions,
		repos.Payouts,
		rewardService,
		fraudService,
		rewardRules,
		s.DB,
		fx,
		s.Logger,
	)

	payoutService := NewPayoutService(
		programService,
		repos.Partners,
		repos.Commissions,
		repos.Payouts,
		repos.Invoices,
		NewLocalPayoutProvider(s.Logger),
		s.DB,
		fx,
		cfg.Payouts,
		s.Logger,
	)

	bountyService := NewBountyService(
		programService,
		repos.Bounties,
		repos.Enrollments,
		repos.Partners,
		repos.Commissions,
		bountyRules,
		s.DB,
		fx,
		s.Logger,
	)

	messageService := NewMessageService(
		programService,
		repos.Messages,
		repos.Enrollments,
		repos.Partners,
		fx,
		cfg.Integration.AppURL,
		s.Logger,
	)

	return &Services{
		Auth:        NewAuthService(cfg.Auth.SecretKey, partnerService),
		Audit:       auditService,
		Programs:    programService,
		Rewards:     rewardService,
		Partners:    partnerService,
		Commissions: commissionService,
		Payouts:     payoutService,
		Fraud:       fraudService,
		Bounties:    bountyService,
		Messages:    messageService,
		Webhooks:    webhookService,
		Job:         s.Job,
	}, nil
}

// JobHandlers hands the worker the services its tasks delegate to.
func (s *Services) JobHandlers(emailSender job.EmailSender) job.Handlers {
	return job.Handlers{
		Email:    emailSender,
		Webhooks: s.Webhooks,
		Payouts:  s.Payouts,
		Messages: s.Messages,
		Bounties: s.Bounties,
	}
}
