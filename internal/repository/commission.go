package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const commissionColumns = `id, program_id, partner_id, payout_id, customer_id, customer_email, link_id, invoice_id,
	event_id, type, amount, earnings, quantity, currency, status, description, created_at, updated_at`

// Statuses that no longer represent money owed or earned.
const voidedCommissionStatuses = `('duplicate', 'fraud', 'canceled', 'refunded')`

type CommissionRepository struct {
	db *database.Database
}

func (r *CommissionRepository) Create(ctx context.Context, c *model.Commission) (*model.Commission, error) {
	query := `
		INSERT INTO commissions (id, program_id, partner_id, payout_id, customer_id, customer_email, link_id,
			invoice_id, event_id, type, amount, earnings, quantity, currency, status, description)
		VALUES (@id, @program_id, @partner_id, @payout_id, @customer_id, @customer_email, @link_id,
			@invoice_id, @event_id, @type, @amount, @earnings, @quantity, @currency, @status, @description)
		RETURNING ` + commissionColumns

	return getOne[model.Commission](ctx, r.db.Q(ctx), "commissions", query, pgx.NamedArgs{
		"id":             c.ID,
		"program_id":     c.ProgramID,
		"partner_id":     c.PartnerID,
		"payout_id":      c.PayoutID,
		"customer_id":    c.CustomerID,
		"customer_email": c.CustomerEmail,
		"link_id":        c.LinkID,
		"invoice_id":     c.InvoiceID,
		"event_id":       c.EventID,
		"type":           c.Type,
		"amount":         c.Amount,
		"earnings":       c.Earnings,
		"quantity":       c.Quantity,
		"currency":       c.Currency,
		"status":         c.Status,
		"description":    c.Description,
	})
}

func (r *CommissionRepository) GetByID(ctx context.Context, programID, id string) (*model.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions WHERE program_id = $1 AND id = $2`
	return getOne[model.Commission](ctx, r.db.Q(ctx), "commissions", query, programID, id)
}

// Update writes the mutable columns of c while its stored status is one of
// from, else ErrStatusChanged.
func (r *CommissionRepository) Update(ctx context.Context, c *model.Commission, from ...model.CommissionStatus) (*model.Commission, error) {
	query := `
		UPDATE commissions SET
			amount = @amount,
			earnings = @earnings,
			status = @status,
			description = @description,
			updated_at = NOW()
		WHERE id = @id AND status = ANY(@from)
		RETURNING ` + commissionColumns

	return conditional[model.Commission](ctx, r.db.Q(ctx), "commissions", query, pgx.NamedArgs{
		"id":          c.ID,
		"amount":      c.Amount,
		"earnings":    c.Earnings,
		"status":      c.Status,
		"description": c.Description,
		"from":        statusStrings(from),
	})
}

const commissionFilter = `
	WHERE program_id = @program_id
		AND (@status::text IS NULL OR status = @status)
		AND (@partner_id::text IS NULL OR partner_id = @partner_id)
		AND (@type::text IS NULL OR type = @type)
		AND (@payout_id::text IS NULL OR payout_id = @payout_id)`

func (r *CommissionRepository) List(ctx context.Context, f model.CommissionFilter) ([]model.Commission, int, error) {
	args := pgx.NamedArgs{
		"program_id": f.ProgramID,
		"status":     f.Status,
		"partner_id": f.PartnerID,
		"type":       f.Type,
		"payout_id":  f.PayoutID,
		"limit":      f.Limit(),
		"offset":     f.Offset(),
	}

	total, err := count(ctx, r.db.Q(ctx), `SELECT COUNT(*) FROM commissions`+commissionFilter, args)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + commissionColumns + ` FROM commissions` + commissionFilter +
		` ORDER BY created_at DESC LIMIT @limit OFFSET @offset`
	items, err := getAll[model.Commission](ctx, r.db.Q(ctx), "commissions", query, args)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CancelForBan cancels the partner's open commissions in programID, except
// those already riding on a payout that left pending.
func (r *CommissionRepository) CancelForBan(ctx context.Context, programID, partnerID string) (int64, error) {
	query := `
		UPDATE commissions SET status = 'canceled', updated_at = NOW()
		WHERE program_id = $1 AND partner_id = $2
			AND status IN ('pending', 'processed')
			AND (payout_id IS NULL OR payout_id IN (SELECT id FROM payouts WHERE status = 'pending'))`
	return exec(ctx, r.db.Q(ctx), "commissions", query, programID, partnerID)
}

// ListDue returns pending, unattached, positive commissions of programID
// created at or before cutoff, ordered by partner.
func (r *CommissionRepository) ListDue(ctx context.Context, programID string, cutoff time.Time) ([]model.Commission, error) {
	query := `SELECT ` + commissionColumns + ` FROM commissions
		WHERE program_id = $1 AND status = 'pending' AND payout_id IS NULL AND earnings > 0 AND created_at <= $2
		ORDER BY partner_id, created_at`
	return getAll[model.Commission](ctx, r.db.Q(ctx), "commissions", query, programID, cutoff)
}

// AttachToPayout moves still-unattached pending commissions onto payoutID as
// processed and returns how many moved.
func (r *CommissionRepository) AttachToPayout(ctx context.Context, payoutID string, ids []string) (int64, error) {
	query := `
		UPDATE commissions SET status = 'processed', payout_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND status = 'pending' AND payout_id IS NULL`
	return exec(ctx, r.db.Q(ctx), "commissions", query, payoutID, nonNil(ids))
}

// SumPayable totals the earnings still owed through payoutID and how many
// commissions carry them.
func (r *CommissionRepository) SumPayable(ctx context.Context, payoutID string) (int64, int, error) {
	var (
		sum int64
		n   int
	)
	err := r.db.Q(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(earnings), 0), COUNT(*) FROM commissions
		WHERE payout_id = $1 AND status IN ('pending', 'processed')`, payoutID).Scan(&sum, &n)
	return sum, n, err
}

func (r *CommissionRepository) MarkPaidByPayout(ctx context.Context, payoutID string) (int64, error) {
	query := `
		UPDATE commissions SET status = 'paid', updated_at = NOW()
		WHERE payout_id = $1 AND status IN ('pending', 'processed')`
	return exec(ctx, r.db.Q(ctx), "commissions", query, payoutID)
}

// DetachFromPayout hands the payout's commissions back to the pending pool.
func (r *CommissionRepository) DetachFromPayout(ctx context.Context, payoutID string) (int64, error) {
	query := `
		UPDATE commissions SET status = 'pending', payout_id = NULL, updated_at = NOW()
		WHERE payout_id = $1 AND status IN ('pending', 'processed')`
	return exec(ctx, r.db.Q(ctx), "commissions", query, payoutID)
}

// FirstForCustomer returns when the customer first converted through
// partnerID in programID for the given type, or nil when never.
func (r *CommissionRepository) FirstForCustomer(ctx context.Context, programID, partnerID, customerID string, typ model.CommissionType) (*time.Time, error) {
	var first *time.Time
	err := r.db.Q(ctx).QueryRow(ctx, `
		SELECT MIN(created_at) FROM commissions
		WHERE program_id = $1 AND partner_id = $2 AND customer_id = $3 AND type = $4
			AND status NOT IN `+voidedCommissionStatuses,
		programID, partnerID, customerID, typ).Scan(&first)
	return first, err
}

// ExistsForEvent reports whether an event id was already recorded, so
// retried track calls stay idempotent.
func (r *CommissionRepository) ExistsForEvent(ctx context.Context, programID, eventID string) (bool, error) {
	var exists bool
	err := r.db.Q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM commissions WHERE program_id = $1 AND event_id = $2)`,
		programID, eventID).Scan(&exists)
	return exists, err
}

// Totals aggregates the partner's live commissions in programID since
// since.
func (r *CommissionRepository) Totals(ctx context.Context, programID, partnerID string, since time.Time) (model.PartnerTotals, error) {
	var t model.PartnerTotals
	err := r.db.Q(ctx).QueryRow(ctx, `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE type = 'lead'), 0),
			COUNT(*) FILTER (WHERE type = 'sale'),
			COALESCE(SUM(amount) FILTER (WHERE type = 'sale'), 0),
			COALESCE(SUM(earnings), 0)
		FROM commissions
		WHERE program_id = $1 AND partner_id = $2 AND created_at >= $3
			AND status NOT IN `+voidedCommissionStatuses,
		programID, partnerID, since).Scan(&t.Leads, &t.Conversions, &t.SaleAmount, &t.Earnings)
	return t, err
}
