package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const (
	rewardColumns   = `id, program_id, event, type, amount, max_duration_months, modifiers, description, created_at, updated_at`
	discountColumns = `id, program_id, type, amount, max_duration_months, coupon_id, coupon_test_id, description, created_at, updated_at`
)

type RewardRepository struct {
	db *database.Database
}

func (r *RewardRepository) Create(ctx context.Context, rw *model.Reward) (*model.Reward, error) {
	query := `
		INSERT INTO rewards (id, program_id, event, type, amount, max_duration_months, modifiers, description)
		VALUES (@id, @program_id, @event, @type, @amount, @max_duration_months, @modifiers, @description)
		RETURNING ` + rewardColumns

	return getOne[model.Reward](ctx, r.db.Q(ctx), "rewards", query, pgx.NamedArgs{
		"id":                  rw.ID,
		"program_id":          rw.ProgramID,
		"event":               rw.Event,
		"type":                rw.Type,
		"amount":              rw.Amount,
		"max_duration_months": rw.MaxDurationMonths,
		"modifiers":           modifiersOrEmpty(rw.Modifiers),
		"description":         rw.Description,
	})
}

func (r *RewardRepository) GetByID(ctx context.Context, programID, id string) (*model.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE program_id = $1 AND id = $2`
	return getOne[model.Reward](ctx, r.db.Q(ctx), "rewards", query, programID, id)
}

func (r *RewardRepository) Update(ctx context.Context, rw *model.Reward) (*model.Reward, error) {
	query := `
		UPDATE rewards SET
			type = @type,
			amount = @amount,
			max_duration_months = @max_duration_months,
			modifiers = @modifiers,
			description = @description,
			updated_at = NOW()
		WHERE program_id = @program_id AND id = @id
		RETURNING ` + rewardColumns

	return getOne[model.Reward](ctx, r.db.Q(ctx), "rewards", query, pgx.NamedArgs{
		"id":                  rw.ID,
		"program_id":          rw.ProgramID,
		"type":                rw.Type,
		"amount":              rw.Amount,
		"max_duration_months": rw.MaxDurationMonths,
		"modifiers":           modifiersOrEmpty(rw.Modifiers),
		"description":         rw.Description,
	})
}

func (r *RewardRepository) Delete(ctx context.Context, programID, id string) error {
	n, err := exec(ctx, r.db.Q(ctx), "rewards", `DELETE FROM rewards WHERE program_id = $1 AND id = $2`, programID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("rewards")
	}
	return nil
}

func (r *RewardRepository) List(ctx context.Context, programID string) ([]model.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE program_id = $1 ORDER BY created_at`
	return getAll[model.Reward](ctx, r.db.Q(ctx), "rewards", query, programID)
}

func modifiersOrEmpty(m []model.RewardModifier) []model.RewardModifier {
	if m == nil {
		return []model.RewardModifier{}
	}
	return m
}

type DiscountRepository struct {
	db *database.Database
}

func (r *DiscountRepository) Create(ctx context.Context, d *model.Discount) (*model.Discount, error) {
	query := `
		INSERT INTO discounts (id, program_id, type, amount, max_duration_months, coupon_id, coupon_test_id, description)
		VALUES (@id, @program_id, @type, @amount, @max_duration_months, @coupon_id, @coupon_test_id, @description)
		RETURNING ` + discountColumns

	return getOne[model.Discount](ctx, r.db.Q(ctx), "discounts", query, pgx.NamedArgs{
		"id":                  d.ID,
		"program_id":          d.ProgramID,
		"type":                d.Type,
		"amount":              d.Amount,
		"max_duration_months": d.MaxDurationMonths,
		"coupon_id":           d.CouponID,
		"coupon_test_id":      d.CouponTestID,
		"description":         d.Description,
	})
}

func (r *DiscountRepository) GetByID(ctx context.Context, programID, id string) (*model.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE program_id = $1 AND id = $2`
	return getOne[model.Discount](ctx, r.db.Q(ctx), "discounts", query, programID, id)
}

func (r *DiscountRepository) Update(ctx context.Context, d *model.Discount) (*model.Discount, error) {
	query := `
		UPDATE discounts SET
			amount = @amount,
			max_duration_months = @max_duration_months,
			coupon_id = @coupon_id,
			coupon_test_id = @coupon_test_id,
			description = @description,
			updated_at = NOW()
		WHERE program_id = @program_id AND id = @id
		RETURNING ` + discountColumns

	return getOne[model.Discount](ctx, r.db.Q(ctx), "discounts", query, pgx.NamedArgs{
		"id":                  d.ID,
		"program_id":          d.ProgramID,
		"amount":              d.Amount,
		"max_duration_months": d.MaxDurationMonths,
		"coupon_id":           d.CouponID,
		"coupon_test_id":      d.CouponTestID,
		"description":         d.Description,
	})
}

func (r *DiscountRepository) Delete(ctx context.Context, programID, id string) error {
	n, err := exec(ctx, r.db.Q(ctx), "discounts", `DELETE FROM discounts WHERE program_id = $1 AND id = $2`, programID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("discounts")
	}
	return nil
}

func (r *DiscountRepository) List(ctx context.Context, programID string) ([]model.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE program_id = $1 ORDER BY created_at`
	return getAll[model.Discount](ctx, r.db.Q(ctx), "discounts", query, programID)
}
