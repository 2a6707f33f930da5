package service

import (
	"context"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
)

type PartnerService struct {
	programs    *ProgramService
	partners    PartnerStore
	enrollments EnrollmentStore
	commissions CommissionStore
	payouts     PayoutStore
	fraud       *FraudService
	fraudStore  FraudStore
	tx          Transactor
	effects     *effects
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewPartnerService(
	programs *ProgramService,
	partners PartnerStore,
	enrollments EnrollmentStore,
	commissions CommissionStore,
	payouts PayoutStore,
	fraud *FraudService,
	fraudStore FraudStore,
	tx Transactor,
	fx *effects,
	logger *zerolog.Logger,
) *PartnerService {
	return &PartnerService{
		programs:    programs,
		partners:    partners,
		enrollments: enrollments,
		commissions: commissions,
		payouts:     payouts,
		fraud:       fraud,
		fraudStore:  fraudStore,
		tx:          tx,
		effects:     fx,
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve returns the partner profile of a signed-in user.
func (s *PartnerService) Resolve(ctx context.Context, userID string) (*model.Partner, error) {
	p, err := s.partners.GetByUserID(ctx, userID)
	if isNotFound(err) {
		return nil, errs.NewNotFoundError("No partner profile exists for this account", true, errs.Code("PARTNER_NOT_FOUND"))
	}
	return p, err
}

// findOrCreate returns the partner registered under email, creating it
// when missing. A non-empty userID is linked to the partner.
func (s *PartnerService) findOrCreate(ctx context.Context, userID, name, emailAddr string, country *string) (*model.Partner, error) {
	if userID != "" {
		p, err := s.partners.GetByUserID(ctx, userID)
		if err == nil {
			return p, nil
		}
		if !isNotFound(err) {
			return nil, err
		}
	}

	p, err := s.partners.GetByEmail(ctx, emailAddr)
	if isNotFound(err) {
		var uid *string
		if userID != "" {
			uid = &userID
		}
		return s.partners.Create(ctx, &model.Partner{
			ID:      model.NewID(model.PrefixPartner),
			UserID:  uid,
			Name:    name,
			Email:   emailAddr,
			Country: country,
		})
	}
	if err != nil {
		return nil, err
	}

	if userID != "" && p.UserID == nil {
		return s.partners.LinkUser(ctx, p.ID, userID)
	}
	return p, nil
}

// Apply enrolls the signed-in user into the program named by slug. Open
// invitations are accepted; programs that auto-approve skip review.
func (s *PartnerService) Apply(ctx context.Context, userID string, req *model.ApplyRequest) (*model.ProgramEnrollment, error) {
	program, err := s.programs.BySlug(ctx, req.ProgramSlug)
	if err != nil {
		return nil, err
	}

	var (
		partner    *model.Partner
		enrollment *model.ProgramEnrollment
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		partner, err = s.findOrCreate(ctx, userID, req.Name, req.Email, req.Country)
		if err != nil {
			return err
		}

		existing, err := s.enrollments.Get(ctx, program.ID, partner.ID)
		switch {
		case err == nil && existing.Status == model.EnrollmentInvited:
			existing.Status = model.EnrollmentApproved
			existing.ApplyProgramDefaults(program)
			enrollment, err = s.enrollments.Update(ctx, existing, model.EnrollmentInvited)
			return conflictOnStale(err, "Invitation changed, try again", "ENROLLMENT_CHANGED")
		case err == nil:
			return errs.NewConflictError("You already applied to this program", errs.Code("ALREADY_ENROLLED"))
		case !isNotFound(err):
			return err
		}

		e := &model.ProgramEnrollment{
			ID:               model.NewID(model.PrefixEnrollment),
			ProgramID:        program.ID,
			PartnerID:        partner.ID,
			Status:           model.EnrollmentPending,
			ApplicationNotes: req.Notes,
		}
		if program.AutoApprovePartners {
			e.Status = model.EnrollmentApproved
			e.ApplyProgramDefaults(program)
		}
		enrollment, err = s.enrollments.Create(ctx, e)
		return err
	})
	if err != nil {
		return nil, err
	}

	if enrollment.Status == model.EnrollmentApproved {
		s.announceApproval(ctx, program, partner, enrollment)
	} else if program.SupportEmail != nil {
		s.effects.email(ctx, *program.SupportEmail, email.TemplateApplicationReceived, map[string]string{
			"PartnerName":  partner.Name,
			"PartnerEmail": partner.Email,
			"ProgramName":  program.Name,
			"ProgramID":    program.ID,
		})
	}
	return enrollment, nil
}

func (s *PartnerService) Invite(ctx context.Context, actor model.Actor, req *model.InvitePartnerRequest) (*model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	var (
		partner    *model.Partner
		enrollment *model.ProgramEnrollment
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		partner, err = s.findOrCreate(ctx, "", req.Name, req.Email, nil)
		if err != nil {
			return err
		}

		if _, err := s.enrollments.Get(ctx, program.ID, partner.ID); err == nil {
			return errs.NewConflictError("Partner is already enrolled in this program", errs.Code("ALREADY_ENROLLED"))
		} else if !isNotFound(err) {
			return err
		}

		enrollment, err = s.enrollments.Create(ctx, &model.ProgramEnrollment{
			ID:            model.NewID(model.PrefixEnrollment),
			ProgramID:     program.ID,
			PartnerID:     partner.ID,
			Status:        model.EnrollmentInvited,
			ClickRewardID: req.ClickRewardID,
			LeadRewardID:  req.LeadRewardID,
			SaleRewardID:  req.SaleRewardID,
			DiscountID:    req.DiscountID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.effects.email(ctx, partner.Email, email.TemplatePartnerInvited, map[string]string{
		"PartnerName": partner.Name,
		"ProgramName": program.Name,
		"ProgramSlug": program.Slug,
	})
	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "partner.invited",
		TargetType: "partner", TargetID: partner.ID,
	})
	return enrollment, nil
}

// Review decisions only apply to applications. Banned, archived and
// deactivated partners come back through their own endpoints.
var (
	approvableStatuses = []model.EnrollmentStatus{model.EnrollmentPending, model.EnrollmentInvited, model.EnrollmentRejected}
	rejectableStatuses = []model.EnrollmentStatus{model.EnrollmentPending}
)

// loadForTransition fetches the enrollments of ids and fails with 422 when
// any of them is not in one of from or cannot move to status to.
func (s *PartnerService) loadForTransition(ctx context.Context, programID string, ids []string, from []model.EnrollmentStatus, to model.EnrollmentStatus) ([]*model.ProgramEnrollment, error) {
	out := make([]*model.ProgramEnrollment, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		e, err := s.enrollments.Get(ctx, programID, id)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(from, e.Status) || !e.Status.CanTransition(to) {
			return nil, invalidTransition("enrollment of partner "+id, e.Status, to)
		}
		out = append(out, e)
	}
	return out, nil
}

// Approve approves up to 100 partners. Without an explicit reward group the
// program defaults are assigned.
func (s *PartnerService) Approve(ctx context.Context, actor model.Actor, req *model.ApprovePartnersRequest) ([]model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	targets, err := s.loadForTransition(ctx, program.ID, req.PartnerIDs, approvableStatuses, model.EnrollmentApproved)
	if err != nil {
		return nil, err
	}

	approved := make([]model.ProgramEnrollment, 0, len(targets))
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		approved = approved[:0]
		for _, e := range targets {
			from := e.Status
			e.Status = model.EnrollmentApproved
			if req.HasRewardGroup() {
				e.ClickRewardID = req.ClickRewardID
				e.LeadRewardID = req.LeadRewardID
				e.SaleRewardID = req.SaleRewardID
				e.DiscountID = req.DiscountID
			} else {
				e.ApplyProgramDefaults(program)
			}

			updated, err := s.enrollments.Update(ctx, e, from)
			if err != nil {
				return conflictOnStale(err, "Partner "+e.PartnerID+" changed status concurrently", "ENROLLMENT_CHANGED")
			}
			approved = append(approved, *updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range approved {
		e := &approved[i]
		partner, err := s.partners.GetByID(ctx, e.PartnerID)
		if err != nil {
			logger.FromContext(ctx, s.logger).Warn().Err(err).Str("partner_id", e.PartnerID).Msg("approved partner not loaded for notifications")
			continue
		}
		s.announceApproval(ctx, program, partner, e)
		s.effects.record(ctx, AuditEntry{
			Actor: actor, ProgramID: program.ID, Action: "partner.approved",
			TargetType: "partner", TargetID: e.PartnerID,
		})
	}
	return approved, nil
}

func (s *PartnerService) announceApproval(ctx context.Context, program *model.Program, partner *model.Partner, e *model.ProgramEnrollment) {
	s.effects.email(ctx, partner.Email, email.TemplatePartnerApproved, map[string]string{
		"PartnerName": partner.Name,
		"ProgramName": program.Name,
		"ProgramSlug": program.Slug,
	})
	s.effects.webhook(ctx, program.WorkspaceID, model.WebhookPartnerEnrolled, model.EnrolledPartner{
		Partner:    *partner,
		Enrollment: *e,
	})
}

func (s *PartnerService) Reject(ctx context.Context, actor model.Actor, req *model.BulkPartnersRequest) ([]model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	targets, err := s.loadForTransition(ctx, program.ID, req.PartnerIDs, rejectableStatuses, model.EnrollmentRejected)
	if err != nil {
		return nil, err
	}

	rejected := make([]model.ProgramEnrollment, 0, len(targets))
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		rejected = rejected[:0]
		for _, e := range targets {
			from := e.Status
			e.Status = model.EnrollmentRejected
			updated, err := s.enrollments.Update(ctx, e, from)
			if err != nil {
				return conflictOnStale(err, "Partner "+e.PartnerID+" changed status concurrently", "ENROLLMENT_CHANGED")
			}
			rejected = append(rejected, *updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range rejected {
		s.effects.record(ctx, AuditEntry{
			Actor: actor, ProgramID: program.ID, Action: "partner.rejected",
			TargetType: "partner", TargetID: e.PartnerID,
		})
	}
	return rejected, nil
}

func (s *PartnerService) Ban(ctx context.Context, actor model.Actor, req *model.BanPartnerRequest) (*model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}
	return s.ban(ctx, actor, program, req.PartnerID, req.Reason)
}

// BanFromFraudGroup bans the partner a fraud group belongs to. Banning
// resolves the group together with the partner's other pending groups.
func (s *PartnerService) BanFromFraudGroup(ctx context.Context, actor model.Actor, req *model.ResolveAndBanRequest) (*model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	group, err := s.fraudStore.GetGroup(ctx, program.ID, req.GroupID)
	if err != nil {
		return nil, err
	}
	if group.Status == model.FraudGroupResolved {
		return nil, errs.NewConflictError("Fraud event group is already resolved", errs.Code("FRAUD_GROUP_ALREADY_RESOLVED"))
	}
	return s.ban(ctx, actor, program, group.PartnerID, req.Reason)
}

func (s *PartnerService) ban(ctx context.Context, actor model.Actor, program *model.Program, partnerID string, reason model.BanReason) (*model.ProgramEnrollment, error) {
	log := logger.FromContext(ctx, s.logger).With().
		Str("program_id", program.ID).
		Str("partner_id", partnerID).
		Logger()

	e, err := s.enrollments.Get(ctx, program.ID, partnerID)
	if err != nil {
		return nil, err
	}
	if !e.Status.CanTransition(model.EnrollmentBanned) {
		return nil, invalidTransition("enrollment", e.Status, model.EnrollmentBanned)
	}

	var (
		banned              *model.ProgramEnrollment
		canceledCommissions int64
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		from := e.Status
		now := s.now()
		e.Status = model.EnrollmentBanned
		e.BannedAt = &now
		e.BannedReason = &reason

		banned, err = s.enrollments.Update(ctx, e, from)
		if err != nil {
			return conflictOnStale(err, "Partner changed status concurrently", "ENROLLMENT_CHANGED")
		}

		if canceledCommissions, err = s.commissions.CancelForBan(ctx, program.ID, partnerID); err != nil {
			return err
		}
		if _, err := s.payouts.CancelPendingForPartner(ctx, program.ID, partnerID); err != nil {
			return err
		}
		_, err = s.fraudStore.ResolvePendingForPartner(ctx, program.ID, partnerID, "Partner banned: "+string(reason), actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("canceled_commissions", canceledCommissions).Str("reason", string(reason)).Msg("partner banned")

	others, err := s.enrollments.ListApprovedElsewhere(ctx, partnerID, program.ID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to list other programs of banned partner")
	}
	for _, o := range others {
		s.fraud.RecordAll(ctx, o.ProgramID, partnerID, []model.FraudSignal{{
			Type: model.FraudCrossProgramBan,
			Metadata: map[string]any{
				"bannedInProgramId": program.ID,
				"reason":            reason,
			},
		}}, nil, nil)
	}

	partner, err := s.partners.GetByID(ctx, partnerID)
	if err != nil {
		log.Warn().Err(err).Msg("banned partner not loaded for notifications")
	} else {
		s.effects.email(ctx, partner.Email, email.TemplatePartnerBanned, map[string]string{
			"PartnerName": partner.Name,
			"ProgramName": program.Name,
			"Reason":      string(reason),
		})
		s.effects.webhook(ctx, program.WorkspaceID, model.WebhookPartnerBanned, model.EnrolledPartner{
			Partner:    *partner,
			Enrollment: *banned,
		})
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "partner.banned",
		TargetType: "partner", TargetID: partnerID,
		Metadata: map[string]any{"reason": reason, "canceledCommissions": canceledCommissions},
	})
	return banned, nil
}

// Unban restores a banned partner. Commissions canceled by the ban stay
// canceled.
func (s *PartnerService) Unban(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return s.move(ctx, actor, req, []model.EnrollmentStatus{model.EnrollmentBanned}, model.EnrollmentApproved, "partner.unbanned")
}

func (s *PartnerService) Archive(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return s.move(ctx, actor, req, []model.EnrollmentStatus{model.EnrollmentApproved}, model.EnrollmentArchived, "partner.archived")
}

func (s *PartnerService) Unarchive(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return s.move(ctx, actor, req, []model.EnrollmentStatus{model.EnrollmentArchived}, model.EnrollmentApproved, "partner.unarchived")
}

func (s *PartnerService) Deactivate(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return s.move(ctx, actor, req, []model.EnrollmentStatus{model.EnrollmentApproved}, model.EnrollmentDeactivated, "partner.deactivated")
}

func (s *PartnerService) Reactivate(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.ProgramEnrollment, error) {
	return s.move(ctx, actor, req, []model.EnrollmentStatus{model.EnrollmentDeactivated}, model.EnrollmentApproved, "partner.reactivated")
}

// move changes one enrollment from one of from to to.
func (s *PartnerService) move(ctx context.Context, actor model.Actor, req *model.PartnerRef, from []model.EnrollmentStatus, to model.EnrollmentStatus, action string) (*model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	e, err := s.enrollments.Get(ctx, program.ID, req.PartnerID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, e.Status) || !e.Status.CanTransition(to) {
		return nil, invalidTransition("enrollment", e.Status, to)
	}

	current := e.Status
	e.Status = to
	if to != model.EnrollmentBanned {
		e.BannedAt = nil
		e.BannedReason = nil
	}

	updated, err := s.enrollments.Update(ctx, e, current)
	if err != nil {
		return nil, conflictOnStale(err, "Partner changed status concurrently", "ENROLLMENT_CHANGED")
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: action,
		TargetType: "partner", TargetID: req.PartnerID,
	})
	return updated, nil
}

func (s *PartnerService) UpdateRewards(ctx context.Context, actor model.Actor, req *model.UpdateEnrollmentRewardsRequest) (*model.ProgramEnrollment, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	e, err := s.enrollments.Get(ctx, program.ID, req.PartnerID)
	if err != nil {
		return nil, err
	}

	if req.ClickRewardID != nil {
		e.ClickRewardID = emptyToNil(req.ClickRewardID)
	}
	if req.LeadRewardID != nil {
		e.LeadRewardID = emptyToNil(req.LeadRewardID)
	}
	if req.SaleRewardID != nil {
		e.SaleRewardID = emptyToNil(req.SaleRewardID)
	}
	if req.DiscountID != nil {
		e.DiscountID = emptyToNil(req.DiscountID)
	}

	updated, err := s.enrollments.Update(ctx, e, e.Status)
	if err != nil {
		return nil, conflictOnStale(err, "Partner changed status concurrently", "ENROLLMENT_CHANGED")
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "partner.rewards_updated",
		TargetType: "partner", TargetID: req.PartnerID,
	})
	return updated, nil
}

func (s *PartnerService) List(ctx context.Context, actor model.Actor, req *model.ListPartnersRequest) (*model.PaginatedResponse[model.EnrolledPartner], error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	items, total, err := s.enrollments.ListEnrolledPartners(ctx, req)
	if err != nil {
		return nil, err
	}
	return model.NewPaginatedResponse(items, req.Pagination, total), nil
}

func (s *PartnerService) Get(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.EnrolledPartner, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	return s.enrollments.GetEnrolledPartner(ctx, req.ProgramID, req.PartnerID)
}

// EnablePayouts marks the partner's payout method as ready.
func (s *PartnerService) EnablePayouts(ctx context.Context, partner *model.Partner) (*model.Partner, error) {
	return s.partners.EnablePayouts(ctx, partner.ID)
}

func (s *PartnerService) ListMyPrograms(ctx context.Context, partner *model.Partner) ([]model.ProgramEnrollment, error) {
	return s.enrollments.ListForPartner(ctx, partner.ID)
}

// approvedEnrollment returns the partner's enrollment in programID and fails
// with 422 unless it is approved.
func approvedEnrollment(ctx context.Context, store EnrollmentStore, programID, partnerID string) (*model.ProgramEnrollment, error) {
	e, err := store.Get(ctx, programID, partnerID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EnrollmentApproved {
		return nil, errs.NewUnprocessableError("Partner is not approved in this program", errs.Code("PARTNER_NOT_APPROVED"))
	}
	return e, nil
}

func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
