package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/lib/rules"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/sqlerr"
	"github.com/deppfellow/partners/internal/validation"
)

const uniqueSubmissionIdx = "unique_bounty_submissions_partner"

var errAlreadySubmitted = errs.NewConflictError("You already submitted to this bounty", errs.Code("BOUNTY_ALREADY_SUBMITTED"))

type BountyService struct {
	programs    *ProgramService
	bounties    BountyStore
	enrollments EnrollmentStore
	partners    PartnerStore
	commissions CommissionStore
	evaluator   *rules.Evaluator
	tx          Transactor
	effects     *effects
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewBountyService(
	programs *ProgramService,
	bounties BountyStore,
	enrollments EnrollmentStore,
	partners PartnerStore,
	commissions CommissionStore,
	evaluator *rules.Evaluator,
	tx Transactor,
	fx *effects,
	logger *zerolog.Logger,
) *BountyService {
	return &BountyService{
		programs:    programs,
		bounties:    bounties,
		enrollments: enrollments,
		partners:    partners,
		commissions: commissions,
		evaluator:   evaluator,
		tx:          tx,
		effects:     fx,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *BountyService) compileCondition(condition *string) error {
	if condition == nil {
		return nil
	}
	if err := s.evaluator.Compile(*condition); err != nil {
		return validation.AsHTTPError(validation.CustomValidationErrors{
			{Field: "performanceCondition", Message: err.Error()},
		})
	}
	return nil
}

func (s *BountyService) Create(ctx context.Context, actor model.Actor, req *model.CreateBountyRequest) (*model.Bounty, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if err := s.compileCondition(req.PerformanceCondition); err != nil {
		return nil, err
	}

	b, err := s.bounties.Create(ctx, &model.Bounty{
		ID:                   model.NewID(model.PrefixBounty),
		ProgramID:            program.ID,
		Type:                 req.Type,
		Name:                 req.Name,
		Description:          req.Description,
		StartsAt:             req.StartsAt,
		EndsAt:               req.EndsAt,
		RewardAmount:         req.RewardAmount,
		PerformanceCondition: req.PerformanceCondition,
	})
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "bounty.created",
		TargetType: "bounty", TargetID: b.ID,
	})
	return b, nil
}

func (s *BountyService) Update(ctx context.Context, actor model.Actor, req *model.UpdateBountyRequest) (*model.Bounty, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	b, err := s.bounties.GetByID(ctx, req.ProgramID, req.BountyID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		b.Name = *req.Name
	}
	if req.Description != nil {
		b.Description = req.Description
	}
	if req.EndsAt != nil {
		b.EndsAt = req.EndsAt
	}
	if req.RewardAmount != nil {
		b.RewardAmount = *req.RewardAmount
	}
	if req.PerformanceCondition != nil {
		if b.Type != model.BountyTypePerformance {
			return nil, validation.AsHTTPError(validation.CustomValidationErrors{
				{Field: "performanceCondition", Message: "is only allowed for performance bounties"},
			})
		}
		if err := s.compileCondition(req.PerformanceCondition); err != nil {
			return nil, err
		}
		b.PerformanceCondition = req.PerformanceCondition
	}
	if b.EndsAt != nil && !b.EndsAt.After(b.StartsAt) {
		return nil, validation.AsHTTPError(validation.CustomValidationErrors{
			{Field: "endsAt", Message: "must be after startsAt"},
		})
	}

	updated, err := s.bounties.Update(ctx, b)
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: "bounty.updated",
		TargetType: "bounty", TargetID: b.ID,
	})
	return updated, nil
}

// Delete refuses bounties that already received submissions.
func (s *BountyService) Delete(ctx context.Context, actor model.Actor, req *model.BountyRef) error {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return err
	}

	b, err := s.bounties.GetByID(ctx, req.ProgramID, req.BountyID)
	if err != nil {
		return err
	}
	n, err := s.bounties.CountSubmissions(ctx, b.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return errs.NewConflictError("Bounties with submissions cannot be deleted", errs.Code("BOUNTY_HAS_SUBMISSIONS"))
	}

	if err := s.bounties.Delete(ctx, req.ProgramID, b.ID); err != nil {
		return err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: "bounty.deleted",
		TargetType: "bounty", TargetID: b.ID,
	})
	return nil
}

func (s *BountyService) List(ctx context.Context, actor model.Actor, programID string) ([]model.Bounty, error) {
	if _, err := s.programs.Scoped(ctx, actor, programID); err != nil {
		return nil, err
	}
	return s.bounties.List(ctx, programID)
}

func (s *BountyService) Get(ctx context.Context, actor model.Actor, req *model.BountyRef) (*model.Bounty, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	return s.bounties.GetByID(ctx, req.ProgramID, req.BountyID)
}

func (s *BountyService) ListSubmissions(ctx context.Context, actor model.Actor, req *model.BountyRef) ([]model.BountySubmission, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	b, err := s.bounties.GetByID(ctx, req.ProgramID, req.BountyID)
	if err != nil {
		return nil, err
	}
	return s.bounties.ListSubmissions(ctx, b.ID)
}

// ListForPartner shows the bounties of a program the partner is approved in.
func (s *BountyService) ListForPartner(ctx context.Context, partner *model.Partner, programID string) ([]model.Bounty, error) {
	if _, err := approvedEnrollment(ctx, s.enrollments, programID, partner.ID); err != nil {
		return nil, err
	}
	return s.bounties.List(ctx, programID)
}

// Submit records a partner's work for a submission bounty. Each partner
// submits once per bounty.
func (s *BountyService) Submit(ctx context.Context, partner *model.Partner, req *model.SubmitBountyRequest) (*model.BountySubmission, error) {
	if _, err := approvedEnrollment(ctx, s.enrollments, req.ProgramID, partner.ID); err != nil {
		return nil, err
	}

	b, err := s.bounties.GetByID(ctx, req.ProgramID, req.BountyID)
	if err != nil {
		return nil, err
	}
	if b.Type != model.BountyTypeSubmission {
		return nil, errs.NewUnprocessableError("Performance bounties are awarded automatically", errs.Code("BOUNTY_NOT_SUBMITTABLE"))
	}
	if !b.IsActive(s.now()) {
		return nil, errs.NewUnprocessableError("This bounty is not active", errs.Code("BOUNTY_NOT_ACTIVE"))
	}

	exists, err := s.bounties.HasSubmission(ctx, b.ID, partner.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errAlreadySubmitted
	}

	sub, err := s.bounties.CreateSubmission(ctx, &model.BountySubmission{
		ID:          model.NewID(model.PrefixBountySubmission),
		BountyID:    b.ID,
		PartnerID:   partner.ID,
		URLs:        req.URLs,
		Description: req.Description,
		Status:      model.SubmissionSubmitted,
	})
	if sqlerr.IsUniqueViolation(err, uniqueSubmissionIdx) {
		return nil, errAlreadySubmitted
	}
	return sub, err
}

// bountyCommission is the custom commission paying out a bounty.
func (s *BountyService) bountyCommission(b *model.Bounty, partnerID string) *model.Commission {
	description := "Bounty: " + b.Name
	return &model.Commission{
		ID:          model.NewID(model.PrefixCommission),
		ProgramID:   b.ProgramID,
		PartnerID:   partnerID,
		Type:        model.CommissionTypeCustom,
		Earnings:    b.RewardAmount,
		Quantity:    1,
		Currency:    defaultCurrency,
		Status:      model.CommissionPending,
		Description: &description,
	}
}

// Approve accepts a submission and pays the bounty as a custom commission.
func (s *BountyService) Approve(ctx context.Context, actor model.Actor, req *model.SubmissionRef) (*model.BountySubmission, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	b, err := s.bounties.GetByID(ctx, program.ID, req.BountyID)
	if err != nil {
		return nil, err
	}
	sub, err := s.bounties.GetSubmission(ctx, b.ID, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubmissionSubmitted {
		return nil, invalidTransition("submission", sub.Status, model.SubmissionApproved)
	}

	var (
		commission *model.Commission
		approved   *model.BountySubmission
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		commission, err = s.commissions.Create(ctx, s.bountyCommission(b, sub.PartnerID))
		if err != nil {
			return err
		}

		sub.Status = model.SubmissionApproved
		sub.CommissionID = &commission.ID
		approved, err = s.bounties.Review(ctx, sub)
		return conflictOnStale(err, "Submission was already reviewed", "SUBMISSION_ALREADY_REVIEWED")
	})
	if err != nil {
		return nil, err
	}

	s.announceAward(ctx, program, commission)
	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "bounty_submission.approved",
		TargetType: "bounty_submission", TargetID: approved.ID,
	})
	return approved, nil
}

func (s *BountyService) Reject(ctx context.Context, actor model.Actor, req *model.RejectSubmissionRequest) (*model.BountySubmission, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	b, err := s.bounties.GetByID(ctx, program.ID, req.BountyID)
	if err != nil {
		return nil, err
	}
	sub, err := s.bounties.GetSubmission(ctx, b.ID, req.SubmissionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubmissionSubmitted {
		return nil, invalidTransition("submission", sub.Status, model.SubmissionRejected)
	}

	sub.Status = model.SubmissionRejected
	sub.RejectionReason = &req.Reason
	rejected, err := s.bounties.Review(ctx, sub)
	if err != nil {
		return nil, conflictOnStale(err, "Submission was already reviewed", "SUBMISSION_ALREADY_REVIEWED")
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "bounty_submission.rejected",
		TargetType: "bounty_submission", TargetID: rejected.ID,
		Metadata: map[string]any{"reason": req.Reason},
	})
	return rejected, nil
}

func (s *BountyService) announceAward(ctx context.Context, program *model.Program, c *model.Commission) {
	s.effects.webhook(ctx, program.WorkspaceID, model.WebhookCommissionCreated, c)

	partner, err := s.partners.GetByID(ctx, c.PartnerID)
	if err != nil {
		logger.FromContext(ctx, s.logger).Warn().Err(err).Str("partner_id", c.PartnerID).Msg("bounty winner not loaded for notification")
		return
	}
	s.effects.email(ctx, partner.Email, email.TemplateNewCommission, map[string]string{
		"PartnerName": partner.Name,
		"ProgramName": program.Name,
		"Earnings":    formatCents(c.Earnings, c.Currency),
		"Type":        string(c.Type),
	})
}

// EvaluatePerformanceBounties awards every active performance bounty to the
// approved partners whose totals since the bounty started satisfy its
// condition.
func (s *BountyService) EvaluatePerformanceBounties(ctx context.Context) error {
	log := logger.FromContext(ctx, s.logger)

	bounties, err := s.bounties.ListActivePerformance(ctx, s.now())
	if err != nil {
		return err
	}

	var failures []error
	for i := range bounties {
		awarded, err := s.evaluateBounty(ctx, &bounties[i])
		if err != nil {
			log.Error().Err(err).Str("bounty_id", bounties[i].ID).Msg("failed to evaluate bounty")
			failures = append(failures, err)
		}
		if awarded > 0 {
			log.Info().Str("bounty_id", bounties[i].ID).Int("awarded", awarded).Msg("performance bounty awarded")
		}
	}
	return errors.Join(failures...)
}

func (s *BountyService) evaluateBounty(ctx context.Context, b *model.Bounty) (int, error) {
	if b.PerformanceCondition == nil {
		return 0, nil
	}

	program, err := s.programs.ByID(ctx, b.ProgramID)
	if err != nil {
		return 0, err
	}
	partnerIDs, err := s.enrollments.ListApprovedPartnerIDs(ctx, b.ProgramID)
	if err != nil {
		return 0, err
	}

	awarded := 0
	for _, partnerID := range partnerIDs {
		done, err := s.bounties.HasSubmission(ctx, b.ID, partnerID)
		if err != nil {
			return awarded, err
		}
		if done {
			continue
		}

		totals, err := s.commissions.Totals(ctx, b.ProgramID, partnerID, b.StartsAt)
		if err != nil {
			return awarded, err
		}
		ok, err := s.evaluator.Evaluate(ctx, *b.PerformanceCondition, rules.BountyFact(totals))
		if err != nil {
			return awarded, err
		}
		if !ok {
			continue
		}

		var commission *model.Commission
		err = s.tx.WithTx(ctx, func(ctx context.Context) error {
			commission, err = s.commissions.Create(ctx, s.bountyCommission(b, partnerID))
			if err != nil {
				return err
			}
			now := s.now()
			_, err = s.bounties.CreateSubmission(ctx, &model.BountySubmission{
				ID:           model.NewID(model.PrefixBountySubmission),
				BountyID:     b.ID,
				PartnerID:    partnerID,
				Status:       model.SubmissionApproved,
				CommissionID: &commission.ID,
				ReviewedAt:   &now,
			})
			return err
		})
		if sqlerr.IsUniqueViolation(err, uniqueSubmissionIdx) {
			continue
		}
		if err != nil {
			return awarded, err
		}

		awarded++
		s.announceAward(ctx, program, commission)
	}
	return awarded, nil
}
