package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const enrollmentColumns = `id, program_id, partner_id, status, link_id, click_reward_id, lead_reward_id,
	sale_reward_id, discount_id, application_notes, banned_at, banned_reason, created_at, updated_at`

type EnrollmentRepository struct {
	db *database.Database
}

func (r *EnrollmentRepository) Create(ctx context.Context, e *model.ProgramEnrollment) (*model.ProgramEnrollment, error) {
	query := `
		INSERT INTO program_enrollments (id, program_id, partner_id, status, link_id, click_reward_id,
			lead_reward_id, sale_reward_id, discount_id, application_notes)
		VALUES (@id, @program_id, @partner_id, @status, @link_id, @click_reward_id,
			@lead_reward_id, @sale_reward_id, @discount_id, @application_notes)
		RETURNING ` + enrollmentColumns

	return getOne[model.ProgramEnrollment](ctx, r.db.Q(ctx), "program_enrollments", query, pgx.NamedArgs{
		"id":                e.ID,
		"program_id":        e.ProgramID,
		"partner_id":        e.PartnerID,
		"status":            e.Status,
		"link_id":           e.LinkID,
		"click_reward_id":   e.ClickRewardID,
		"lead_reward_id":    e.LeadRewardID,
		"sale_reward_id":    e.SaleRewardID,
		"discount_id":       e.DiscountID,
		"application_notes": e.ApplicationNotes,
	})
}

func (r *EnrollmentRepository) Get(ctx context.Context, programID, partnerID string) (*model.ProgramEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM program_enrollments WHERE program_id = $1 AND partner_id = $2`
	return getOne[model.ProgramEnrollment](ctx, r.db.Q(ctx), "program_enrollments", query, programID, partnerID)
}

func (r *EnrollmentRepository) GetByLink(ctx context.Context, programID, linkID string) (*model.ProgramEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM program_enrollments WHERE program_id = $1 AND link_id = $2`
	return getOne[model.ProgramEnrollment](ctx, r.db.Q(ctx), "program_enrollments", query, programID, linkID)
}

// Update persists status, rewards and ban fields of e, but only while the
// stored status is one of from. Otherwise it returns ErrStatusChanged.
func (r *EnrollmentRepository) Update(ctx context.Context, e *model.ProgramEnrollment, from ...model.EnrollmentStatus) (*model.ProgramEnrollment, error) {
	query := `
		UPDATE program_enrollments SET
			status = @status,
			click_reward_id = @click_reward_id,
			lead_reward_id = @lead_reward_id,
			sale_reward_id = @sale_reward_id,
			discount_id = @discount_id,
			banned_at = @banned_at,
			banned_reason = @banned_reason,
			updated_at = NOW()
		WHERE id = @id AND status = ANY(@from)
		RETURNING ` + enrollmentColumns

	return conditional[model.ProgramEnrollment](ctx, r.db.Q(ctx), "program_enrollments", query, pgx.NamedArgs{
		"id":              e.ID,
		"status":          e.Status,
		"click_reward_id": e.ClickRewardID,
		"lead_reward_id":  e.LeadRewardID,
		"sale_reward_id":  e.SaleRewardID,
		"discount_id":     e.DiscountID,
		"banned_at":       e.BannedAt,
		"banned_reason":   e.BannedReason,
		"from":            statusStrings(from),
	})
}

// ListApprovedElsewhere returns the partner's approved enrollments in every
// program except programID.
func (r *EnrollmentRepository) ListApprovedElsewhere(ctx context.Context, partnerID, programID string) ([]model.ProgramEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM program_enrollments
		WHERE partner_id = $1 AND program_id <> $2 AND status = 'approved'`
	return getAll[model.ProgramEnrollment](ctx, r.db.Q(ctx), "program_enrollments", query, partnerID, programID)
}

func (r *EnrollmentRepository) ListForPartner(ctx context.Context, partnerID string) ([]model.ProgramEnrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM program_enrollments WHERE partner_id = $1 ORDER BY created_at DESC`
	return getAll[model.ProgramEnrollment](ctx, r.db.Q(ctx), "program_enrollments", query, partnerID)
}

// ListApprovedPartnerIDs returns the ids of approved partners of programID.
func (r *EnrollmentRepository) ListApprovedPartnerIDs(ctx context.Context, programID string) ([]string, error) {
	rows, err := r.db.Q(ctx).Query(ctx,
		`SELECT partner_id FROM program_enrollments WHERE program_id = $1 AND status = 'approved' ORDER BY partner_id`,
		programID)
	if err != nil {
		return nil, fmt.Errorf("failed to query program_enrollments: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

const enrolledPartnerSelect = `
	SELECT p.id, p.user_id, p.name, p.email, p.country, p.image, p.payouts_enabled_at, p.created_at, p.updated_at,
		e.id, e.program_id, e.partner_id, e.status, e.link_id, e.click_reward_id, e.lead_reward_id,
		e.sale_reward_id, e.discount_id, e.application_notes, e.banned_at, e.banned_reason, e.created_at, e.updated_at
	FROM program_enrollments e
	JOIN partners p ON p.id = e.partner_id`

const enrolledPartnerFilter = `
	WHERE e.program_id = @program_id
		AND (@status::text IS NULL OR e.status = @status)
		AND (@search::text IS NULL OR p.name ILIKE '%' || @search || '%' OR p.email ILIKE '%' || @search || '%')`

func scanEnrolledPartner(row pgx.CollectableRow) (model.EnrolledPartner, error) {
	var ep model.EnrolledPartner
	p, e := &ep.Partner, &ep.Enrollment
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Email, &p.Country, &p.Image, &p.PayoutsEnabledAt, &p.CreatedAt, &p.UpdatedAt,
		&e.ID, &e.ProgramID, &e.PartnerID, &e.Status, &e.LinkID, &e.ClickRewardID, &e.LeadRewardID,
		&e.SaleRewardID, &e.DiscountID, &e.ApplicationNotes, &e.BannedAt, &e.BannedReason, &e.CreatedAt, &e.UpdatedAt,
	)
	return ep, err
}

func (r *EnrollmentRepository) GetEnrolledPartner(ctx context.Context, programID, partnerID string) (*model.EnrolledPartner, error) {
	rows, err := r.db.Q(ctx).Query(ctx, enrolledPartnerSelect+` WHERE e.program_id = $1 AND e.partner_id = $2`, programID, partnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query program_enrollments: %w", err)
	}

	ep, err := pgx.CollectOneRow(rows, scanEnrolledPartner)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("program_enrollments")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to collect program_enrollments: %w", err)
	}
	return &ep, nil
}

func (r *EnrollmentRepository) ListEnrolledPartners(ctx context.Context, req *model.ListPartnersRequest) ([]model.EnrolledPartner, int, error) {
	args := pgx.NamedArgs{
		"program_id": req.ProgramID,
		"status":     req.Status,
		"search":     req.Search,
		"limit":      req.Limit(),
		"offset":     req.Offset(),
	}

	total, err := count(ctx, r.db.Q(ctx),
		`SELECT COUNT(*) FROM program_enrollments e JOIN partners p ON p.id = e.partner_id`+enrolledPartnerFilter, args)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Q(ctx).Query(ctx,
		enrolledPartnerSelect+enrolledPartnerFilter+` ORDER BY e.created_at DESC LIMIT @limit OFFSET @offset`, args)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query program_enrollments: %w", err)
	}

	partners, err := pgx.CollectRows(rows, scanEnrolledPartner)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to collect program_enrollments: %w", err)
	}
	return partners, total, nil
}

func statusStrings[S ~string](statuses []S) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
