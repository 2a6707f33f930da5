package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const programColumns = `id, workspace_id, name, slug, domain, url, holding_period_days, min_payout_amount,
	auto_approve_partners, messaging_enabled, banned_referral_sources, default_click_reward_id,
	default_lead_reward_id, default_sale_reward_id, default_discount_id, support_email, created_at, updated_at`

type ProgramRepository struct {
	db *database.Database
}

func (r *ProgramRepository) Create(ctx context.Context, p *model.Program) (*model.Program, error) {
	query := `
		INSERT INTO programs (id, workspace_id, name, slug, domain, url, holding_period_days,
			min_payout_amount, auto_approve_partners, messaging_enabled, banned_referral_sources, support_email)
		VALUES (@id, @workspace_id, @name, @slug, @domain, @url, @holding_period_days,
			@min_payout_amount, @auto_approve_partners, @messaging_enabled, @banned_referral_sources, @support_email)
		RETURNING ` + programColumns

	return getOne[model.Program](ctx, r.db.Q(ctx), "programs", query, pgx.NamedArgs{
		"id":                      p.ID,
		"workspace_id":            p.WorkspaceID,
		"name":                    p.Name,
		"slug":                    p.Slug,
		"domain":                  p.Domain,
		"url":                     p.URL,
		"holding_period_days":     p.HoldingPeriodDays,
		"min_payout_amount":       p.MinPayoutAmount,
		"auto_approve_partners":   p.AutoApprovePartners,
		"messaging_enabled":       p.MessagingEnabled,
		"banned_referral_sources": nonNil(p.BannedReferralSources),
		"support_email":           p.SupportEmail,
	})
}

func (r *ProgramRepository) GetByID(ctx context.Context, id string) (*model.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE id = $1`
	return getOne[model.Program](ctx, r.db.Q(ctx), "programs", query, id)
}

func (r *ProgramRepository) GetBySlug(ctx context.Context, slug string) (*model.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE slug = $1`
	return getOne[model.Program](ctx, r.db.Q(ctx), "programs", query, slug)
}

// Update writes every mutable column of p.
func (r *ProgramRepository) Update(ctx context.Context, p *model.Program) (*model.Program, error) {
	query := `
		UPDATE programs SET
			name = @name,
			domain = @domain,
			url = @url,
			holding_period_days = @holding_period_days,
			min_payout_amount = @min_payout_amount,
			auto_approve_partners = @auto_approve_partners,
			messaging_enabled = @messaging_enabled,
			banned_referral_sources = @banned_referral_sources,
			default_click_reward_id = @default_click_reward_id,
			default_lead_reward_id = @default_lead_reward_id,
			default_sale_reward_id = @default_sale_reward_id,
			default_discount_id = @default_discount_id,
			support_email = @support_email,
			updated_at = NOW()
		WHERE id = @id
		RETURNING ` + programColumns

	return getOne[model.Program](ctx, r.db.Q(ctx), "programs", query, pgx.NamedArgs{
		"id":                      p.ID,
		"name":                    p.Name,
		"domain":                  p.Domain,
		"url":                     p.URL,
		"holding_period_days":     p.HoldingPeriodDays,
		"min_payout_amount":       p.MinPayoutAmount,
		"auto_approve_partners":   p.AutoApprovePartners,
		"messaging_enabled":       p.MessagingEnabled,
		"banned_referral_sources": nonNil(p.BannedReferralSources),
		"default_click_reward_id": p.DefaultClickRewardID,
		"default_lead_reward_id":  p.DefaultLeadRewardID,
		"default_sale_reward_id":  p.DefaultSaleRewardID,
		"default_discount_id":     p.DefaultDiscountID,
		"support_email":           p.SupportEmail,
	})
}

func (r *ProgramRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Program, error) {
	query := `SELECT ` + programColumns + ` FROM programs WHERE workspace_id = $1 ORDER BY created_at DESC`
	return getAll[model.Program](ctx, r.db.Q(ctx), "programs", query, workspaceID)
}

// ListIDs returns every program id, for jobs that sweep all programs.
func (r *ProgramRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Q(ctx).Query(ctx, `SELECT id FROM programs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
