package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const (
	bountyColumns = `id, program_id, type, name, description, starts_at, ends_at, reward_amount,
	performance_condition, created_at, updated_at`
	submissionColumns = `id, bounty_id, partner_id, urls, description, status, commission_id, rejection_reason,
	reviewed_at, created_at, updated_at`
)

type BountyRepository struct {
	db *database.Database
}

func (r *BountyRepository) Create(ctx context.Context, b *model.Bounty) (*model.Bounty, error) {
	query := `
		INSERT INTO bounties (id, program_id, type, name, description, starts_at, ends_at, reward_amount, performance_condition)
		VALUES (@id, @program_id, @type, @name, @description, @starts_at, @ends_at, @reward_amount, @performance_condition)
		RETURNING ` + bountyColumns

	return getOne[model.Bounty](ctx, r.db.Q(ctx), "bounties", query, pgx.NamedArgs{
		"id":                    b.ID,
		"program_id":            b.ProgramID,
		"type":                  b.Type,
		"name":                  b.Name,
		"description":           b.Description,
		"starts_at":             b.StartsAt,
		"ends_at":               b.EndsAt,
		"reward_amount":         b.RewardAmount,
		"performance_condition": b.PerformanceCondition,
	})
}

func (r *BountyRepository) GetByID(ctx context.Context, programID, id string) (*model.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE program_id = $1 AND id = $2`
	return getOne[model.Bounty](ctx, r.db.Q(ctx), "bounties", query, programID, id)
}

func (r *BountyRepository) Update(ctx context.Context, b *model.Bounty) (*model.Bounty, error) {
	query := `
		UPDATE bounties SET
			name = @name,
			description = @description,
			ends_at = @ends_at,
			reward_amount = @reward_amount,
			performance_condition = @performance_condition,
			updated_at = NOW()
		WHERE program_id = @program_id AND id = @id
		RETURNING ` + bountyColumns

	return getOne[model.Bounty](ctx, r.db.Q(ctx), "bounties", query, pgx.NamedArgs{
		"id":                    b.ID,
		"program_id":            b.ProgramID,
		"name":                  b.Name,
		"description":           b.Description,
		"ends_at":               b.EndsAt,
		"reward_amount":         b.RewardAmount,
		"performance_condition": b.PerformanceCondition,
	})
}

// Delete removes a bounty; the RESTRICT foreign key on submissions makes it
// fail once any partner has submitted.
func (r *BountyRepository) Delete(ctx context.Context, programID, id string) error {
	n, err := exec(ctx, r.db.Q(ctx), "bounties", `DELETE FROM bounties WHERE program_id = $1 AND id = $2`, programID, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("bounties")
	}
	return nil
}

func (r *BountyRepository) List(ctx context.Context, programID string) ([]model.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties WHERE program_id = $1 ORDER BY starts_at DESC`
	return getAll[model.Bounty](ctx, r.db.Q(ctx), "bounties", query, programID)
}

// ListActivePerformance returns performance bounties of every program that
// are running at now.
func (r *BountyRepository) ListActivePerformance(ctx context.Context, now time.Time) ([]model.Bounty, error) {
	query := `SELECT ` + bountyColumns + ` FROM bounties
		WHERE type = 'performance' AND starts_at <= $1 AND (ends_at IS NULL OR ends_at > $1)
		ORDER BY program_id, id`
	return getAll[model.Bounty](ctx, r.db.Q(ctx), "bounties", query, now)
}

func (r *BountyRepository) CountSubmissions(ctx context.Context, bountyID string) (int, error) {
	return count(ctx, r.db.Q(ctx), `SELECT COUNT(*) FROM bounty_submissions WHERE bounty_id = $1`, bountyID)
}

func (r *BountyRepository) HasSubmission(ctx context.Context, bountyID, partnerID string) (bool, error) {
	var exists bool
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bounty_submissions WHERE bounty_id = $1 AND partner_id = $2)`,
		bountyID, partnerID).Scan(&exists)
	return exists, err
}

func (r *BountyRepository) CreateSubmission(ctx context.Context, s *model.BountySubmission) (*model.BountySubmission, error) {
	query := `
		INSERT INTO bounty_submissions (id, bounty_id, partner_id, urls, description, status, commission_id, reviewed_at)
		VALUES (@id, @bounty_id, @partner_id, @urls, @description, @status, @commission_id, @reviewed_at)
		RETURNING ` + submissionColumns

	return getOne[model.BountySubmission](ctx, r.db.Q(ctx), "bounty_submissions", query, pgx.NamedArgs{
		"id":            s.ID,
		"bounty_id":     s.BountyID,
		"partner_id":    s.PartnerID,
		"urls":          nonNil(s.URLs),
		"description":   s.Description,
		"status":        s.Status,
		"commission_id": s.CommissionID,
		"reviewed_at":   s.ReviewedAt,
	})
}

func (r *BountyRepository) GetSubmission(ctx context.Context, bountyID, id string) (*model.BountySubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM bounty_submissions WHERE bounty_id = $1 AND id = $2`
	return getOne[model.BountySubmission](ctx, r.db.Q(ctx), "bounty_submissions", query, bountyID, id)
}

// Review records the decision on a submission that is still awaiting one.
func (r *BountyRepository) Review(ctx context.Context, s *model.BountySubmission) (*model.BountySubmission, error) {
	query := `
		UPDATE bounty_submissions SET
			status = @status,
			commission_id = @commission_id,
			rejection_reason = @rejection_reason,
			reviewed_at = NOW(),
			updated_at = NOW()
		WHERE id = @id AND status = 'submitted'
		RETURNING ` + submissionColumns

	return conditional[model.BountySubmission](ctx, r.db.Q(ctx), "bounty_submissions", query, pgx.NamedArgs{
		"id":               s.ID,
		"status":           s.Status,
		"commission_id":    s.CommissionID,
		"rejection_reason": s.RejectionReason,
	})
}

func (r *BountyRepository) ListSubmissions(ctx context.Context, bountyID string) ([]model.BountySubmission, error) {
	query := `SELECT ` + submissionColumns + ` FROM bounty_submissions WHERE bounty_id = $1 ORDER BY created_at DESC`
	return getAll[model.BountySubmission](ctx, r.db.Q(ctx), "bounty_submissions", query, bountyID)
}
