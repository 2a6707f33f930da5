package service

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/rules"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/validation"
)

// RewardTerms is the reward that applies to one event once modifiers are
// taken into account.
type RewardTerms struct {
	Type              model.RewardType
	Amount            int64
	MaxDurationMonths *int
}

var basisPoints = decimal.NewFromInt(10000)

// ComputeEarnings returns what a partner earns for one tracked event.
//
// Flat rewards pay amount × quantity. Percentage rewards pay
// saleAmount × bps / 10000 rounded half up. When the reward has a maximum
// duration and the customer converted before, earnings drop to zero once
// the window since that first conversion has passed; a duration of zero
// pays the first conversion only.
func ComputeEarnings(terms RewardTerms, quantity int, saleAmount int64, firstConversion *time.Time, now time.Time) int64 {
	if quantity < 1 {
		quantity = 1
	}

	if terms.MaxDurationMonths != nil && firstConversion != nil {
		months := *terms.MaxDurationMonths
		if months == 0 || !now.Before(firstConversion.AddDate(0, months, 0)) {
			return 0
		}
	}

	if terms.Type == model.RewardTypePercentage {
		if saleAmount <= 0 {
			return 0
		}
		return decimal.NewFromInt(saleAmount).
			Mul(decimal.NewFromInt(terms.Amount)).
			Div(basisPoints).
			Round(0).
			IntPart()
	}

	return terms.Amount * int64(quantity)
}

// SelectTerms applies the first modifier of reward whose condition holds
// for fact. Conditions that fail to evaluate are skipped.
func SelectTerms(ctx context.Context, ev *rules.Evaluator, reward *model.Reward, fact rules.RewardFact, log *zerolog.Logger) RewardTerms {
	terms := RewardTerms{Type: reward.Type, Amount: reward.Amount, MaxDurationMonths: reward.MaxDurationMonths}

	for _, m := range reward.Modifiers {
		ok, err := ev.Evaluate(ctx, m.Condition, fact)
		if err != nil {
			log.Warn().Err(err).Str("reward_id", reward.ID).Str("condition", m.Condition).Msg("reward modifier skipped")
			continue
		}
		if !ok {
			continue
		}
		terms.Type = m.Type
		terms.Amount = m.Amount
		if m.MaxDurationMonths != nil {
			terms.MaxDurationMonths = m.MaxDurationMonths
		}
		break
	}

	return terms
}

type RewardService struct {
	programs  *ProgramService
	rewards   RewardStore
	discounts DiscountStore
	evaluator *rules.Evaluator
	tx        Transactor
	effects   *effects
	logger    *zerolog.Logger
}

func NewRewardService(programs *ProgramService, rewards RewardStore, discounts DiscountStore, evaluator *rules.Evaluator, tx Transactor, fx *effects, logger *zerolog.Logger) *RewardService {
	return &RewardService{
		programs:  programs,
		rewards:   rewards,
		discounts: discounts,
		evaluator: evaluator,
		tx:        tx,
		effects:   fx,
		logger:    logger,
	}
}

// compileModifiers rejects modifier conditions that do not compile.
func (s *RewardService) compileModifiers(modifiers []model.RewardModifier) error {
	var fieldErrs validation.CustomValidationErrors
	for i, m := range modifiers {
		if err := s.evaluator.Compile(m.Condition); err != nil {
			fieldErrs = append(fieldErrs, validation.CustomValidationError{
				Field:   "modifiers[" + strconv.Itoa(i) + "].condition",
				Message: err.Error(),
			})
		}
	}
	if len(fieldErrs) == 0 {
		return nil
	}
	return validation.AsHTTPError(fieldErrs)
}

func (s *RewardService) CreateReward(ctx context.Context, actor model.Actor, req *model.CreateRewardRequest) (*model.Reward, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if err := s.compileModifiers(req.Modifiers); err != nil {
		return nil, err
	}

	var (
		reward *model.Reward
		saved  *model.Program
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		reward, err = s.rewards.Create(ctx, &model.Reward{
			ID:                model.NewID(model.PrefixReward),
			ProgramID:         program.ID,
			Event:             req.Event,
			Type:              req.Type,
			Amount:            req.Amount,
			MaxDurationMonths: req.MaxDurationMonths,
			Modifiers:         req.Modifiers,
			Description:       req.Description,
		})
		if err != nil || !req.MakeDefault {
			return err
		}

		switch req.Event {
		case model.RewardEventClick:
			program.DefaultClickRewardID = &reward.ID
		case model.RewardEventLead:
			program.DefaultLeadRewardID = &reward.ID
		case model.RewardEventSale:
			program.DefaultSaleRewardID = &reward.ID
		}
		saved, err = s.programs.save(ctx, program)
		return err
	})
	if err != nil {
		return nil, err
	}
	if saved != nil {
		s.programs.invalidate(ctx, saved)
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "reward.created",
		TargetType: "reward", TargetID: reward.ID,
	})
	return reward, nil
}

func (s *RewardService) UpdateReward(ctx context.Context, actor model.Actor, req *model.UpdateRewardRequest) (*model.Reward, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	reward, err := s.rewards.GetByID(ctx, req.ProgramID, req.RewardID)
	if err != nil {
		return nil, err
	}

	if req.Type != nil {
		reward.Type = *req.Type
	}
	if req.Amount != nil {
		reward.Amount = *req.Amount
	}
	if req.MaxDurationMonths != nil {
		reward.MaxDurationMonths = req.MaxDurationMonths
	}
	if req.Modifiers != nil {
		reward.Modifiers = *req.Modifiers
	}
	if req.Description != nil {
		reward.Description = req.Description
	}

	if err := model.ValidateRewardShape(reward.Event, reward.Type, reward.Amount, reward.Modifiers); err != nil {
		return nil, validation.AsHTTPError(err)
	}
	if err := s.compileModifiers(reward.Modifiers); err != nil {
		return nil, err
	}

	updated, err := s.rewards.Update(ctx, reward)
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: "reward.updated",
		TargetType: "reward", TargetID: updated.ID,
	})
	return updated, nil
}

// DeleteReward refuses to delete a program default reward.
func (s *RewardService) DeleteReward(ctx context.Context, actor model.Actor, req *model.RewardRef) error {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return err
	}
	if program.IsDefaultReward(req.RewardID) {
		return errs.NewConflictError("The default reward of a program cannot be deleted", errs.Code("REWARD_IS_DEFAULT"))
	}

	if err := s.rewards.Delete(ctx, program.ID, req.RewardID); err != nil {
		return err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "reward.deleted",
		TargetType: "reward", TargetID: req.RewardID,
	})
	return nil
}

func (s *RewardService) ListRewards(ctx context.Context, actor model.Actor, programID string) ([]model.Reward, error) {
	if _, err := s.programs.Scoped(ctx, actor, programID); err != nil {
		return nil, err
	}
	return s.rewards.List(ctx, programID)
}

func (s *RewardService) CreateDiscount(ctx context.Context, actor model.Actor, req *model.CreateDiscountRequest) (*model.Discount, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	var (
		discount *model.Discount
		saved    *model.Program
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		discount, err = s.discounts.Create(ctx, &model.Discount{
			ID:                model.NewID(model.PrefixDiscount),
			ProgramID:         program.ID,
			Type:              req.Type,
			Amount:            req.Amount,
			MaxDurationMonths: req.MaxDurationMonths,
			CouponID:          req.CouponID,
			CouponTestID:      req.CouponTestID,
			Description:       req.Description,
		})
		if err != nil || !req.MakeDefault {
			return err
		}
		program.DefaultDiscountID = &discount.ID
		saved, err = s.programs.save(ctx, program)
		return err
	})
	if err != nil {
		return nil, err
	}
	if saved != nil {
		s.programs.invalidate(ctx, saved)
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "discount.created",
		TargetType: "discount", TargetID: discount.ID,
	})
	return discount, nil
}

func (s *RewardService) UpdateDiscount(ctx context.Context, actor model.Actor, req *model.UpdateDiscountRequest) (*model.Discount, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	d, err := s.discounts.GetByID(ctx, req.ProgramID, req.DiscountID)
	if err != nil {
		return nil, err
	}

	if req.Amount != nil {
		d.Amount = *req.Amount
	}
	if req.MaxDurationMonths != nil {
		d.MaxDurationMonths = req.MaxDurationMonths
	}
	if req.CouponID != nil {
		d.CouponID = req.CouponID
	}
	if req.CouponTestID != nil {
		d.CouponTestID = req.CouponTestID
	}
	if req.Description != nil {
		d.Description = req.Description
	}
	if d.Type == model.RewardTypePercentage && d.Amount > 10000 {
		return nil, validation.AsHTTPError(validation.CustomValidationErrors{
			{Field: "amount", Message: "percentage must not exceed 10000 basis points"},
		})
	}

	return s.discounts.Update(ctx, d)
}

// DeleteDiscount clears the program default when it pointed at the
// deleted discount.
func (s *RewardService) DeleteDiscount(ctx context.Context, actor model.Actor, req *model.DiscountRef) error {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return err
	}

	var saved *model.Program
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.discounts.Delete(ctx, program.ID, req.DiscountID); err != nil {
			return err
		}
		if program.DefaultDiscountID == nil || *program.DefaultDiscountID != req.DiscountID {
			return nil
		}
		program.DefaultDiscountID = nil
		saved, err = s.programs.save(ctx, program)
		return err
	})
	if err != nil {
		return err
	}
	if saved != nil {
		s.programs.invalidate(ctx, saved)
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "discount.deleted",
		TargetType: "discount", TargetID: req.DiscountID,
	})
	return nil
}

func (s *RewardService) ListDiscounts(ctx context.Context, actor model.Actor, programID string) ([]model.Discount, error) {
	if _, err := s.programs.Scoped(ctx, actor, programID); err != nil {
		return nil, err
	}
	return s.discounts.List(ctx, programID)
}

// resolve picks the reward an enrollment earns for event: its own
// assignment first, then the program default. Nil means no reward.
func (s *RewardService) resolve(ctx context.Context, program *model.Program, e *model.ProgramEnrollment, event model.RewardEvent) (*model.Reward, error) {
	id := e.RewardID(event)
	if id == nil {
		id = program.DefaultRewardID(event)
	}
	if id == nil {
		return nil, nil
	}

	reward, err := s.rewards.GetByID(ctx, program.ID, *id)
	if isNotFound(err) {
		logger.FromContext(ctx, s.logger).Warn().Str("reward_id", *id).Msg("assigned reward no longer exists")
		return nil, nil
	}
	return reward, err
}
