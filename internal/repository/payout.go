package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const payoutColumns = `id, program_id, partner_id, invoice_id, amount, currency, status, mode, description,
	period_start, period_end, failure_reason, paid_at, created_at, updated_at`

type PayoutRepository struct {
	db *database.Database
}

func (r *PayoutRepository) Create(ctx context.Context, p *model.Payout) (*model.Payout, error) {
	query := `
		INSERT INTO payouts (id, program_id, partner_id, amount, currency, status, mode, description, period_start, period_end)
		VALUES (@id, @program_id, @partner_id, @amount, @currency, @status, @mode, @description, @period_start, @period_end)
		RETURNING ` + payoutColumns

	return getOne[model.Payout](ctx, r.db.Q(ctx), "payouts", query, pgx.NamedArgs{
		"id":           p.ID,
		"program_id":   p.ProgramID,
		"partner_id":   p.PartnerID,
		"amount":       p.Amount,
		"currency":     p.Currency,
		"status":       p.Status,
		"mode":         p.Mode,
		"description":  p.Description,
		"period_start": p.PeriodStart,
		"period_end":   p.PeriodEnd,
	})
}

func (r *PayoutRepository) GetByID(ctx context.Context, programID, id string) (*model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE program_id = $1 AND id = $2`
	return getOne[model.Payout](ctx, r.db.Q(ctx), "payouts", query, programID, id)
}

// GetPendingForPartner locks the partner's open payout in programID for
// the given currency.
func (r *PayoutRepository) GetPendingForPartner(ctx context.Context, programID, partnerID, currency string) (*model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts
		WHERE program_id = $1 AND partner_id = $2 AND currency = $3 AND status = 'pending'
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE`
	return getOne[model.Payout](ctx, r.db.Q(ctx), "payouts", query, programID, partnerID, currency)
}

// UpdateAmount rewrites amount and period of a payout that is still pending.
func (r *PayoutRepository) UpdateAmount(ctx context.Context, p *model.Payout) (*model.Payout, error) {
	query := `
		UPDATE payouts SET amount = @amount, period_start = @period_start, period_end = @period_end, updated_at = NOW()
		WHERE id = @id AND status = 'pending'
		RETURNING ` + payoutColumns

	return conditional[model.Payout](ctx, r.db.Q(ctx), "payouts", query, pgx.NamedArgs{
		"id":           p.ID,
		"amount":       p.Amount,
		"period_start": p.PeriodStart,
		"period_end":   p.PeriodEnd,
	})
}

// PayoutTransition describes a conditional status change.
type PayoutTransition struct {
	From          []model.PayoutStatus
	To            model.PayoutStatus
	FailureReason *string
	PaidAt        *time.Time
}

// Transition moves payout id to t.To when its status is one of t.From. It
// returns ErrStatusChanged when no row qualified.
func (r *PayoutRepository) Transition(ctx context.Context, id string, t PayoutTransition) (*model.Payout, error) {
	query := `
		UPDATE payouts SET
			status = @to,
			failure_reason = @failure_reason,
			paid_at = COALESCE(@paid_at, paid_at),
			updated_at = NOW()
		WHERE id = @id AND status = ANY(@from)
		RETURNING ` + payoutColumns

	return conditional[model.Payout](ctx, r.db.Q(ctx), "payouts", query, pgx.NamedArgs{
		"id":             id,
		"to":             t.To,
		"failure_reason": t.FailureReason,
		"paid_at":        t.PaidAt,
		"from":           statusStrings(t.From),
	})
}

func (r *PayoutRepository) Delete(ctx context.Context, id string) error {
	_, err := exec(ctx, r.db.Q(ctx), "payouts", `DELETE FROM payouts WHERE id = $1 AND status = 'pending'`, id)
	return err
}

func (r *PayoutRepository) CancelPendingForPartner(ctx context.Context, programID, partnerID string) (int64, error) {
	query := `
		UPDATE payouts SET status = 'canceled', updated_at = NOW()
		WHERE program_id = $1 AND partner_id = $2 AND status = 'pending'`
	return exec(ctx, r.db.Q(ctx), "payouts", query, programID, partnerID)
}

// ListConfirmable selects pending payouts of programID worth at least
// minAmount whose partner can receive money. A non-empty include restricts
// the selection; exclude always removes ids.
func (r *PayoutRepository) ListConfirmable(ctx context.Context, programID string, minAmount int64, include, exclude []string) ([]model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts
		WHERE program_id = @program_id
			AND status = 'pending'
			AND amount > 0
			AND amount >= @min_amount
			AND partner_id IN (SELECT id FROM partners WHERE payouts_enabled_at IS NOT NULL)
			AND (cardinality(@include::text[]) = 0 OR id = ANY(@include))
			AND NOT (id = ANY(@exclude::text[]))
		ORDER BY created_at
		FOR UPDATE`

	return getAll[model.Payout](ctx, r.db.Q(ctx), "payouts", query, pgx.NamedArgs{
		"program_id": programID,
		"min_amount": minAmount,
		"include":    nonNil(include),
		"exclude":    nonNil(exclude),
	})
}

// AssignInvoice moves pending payouts onto invoiceID as processing and
// returns how many moved.
func (r *PayoutRepository) AssignInvoice(ctx context.Context, ids []string, invoiceID string) (int64, error) {
	query := `
		UPDATE payouts SET status = 'processing', invoice_id = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = 'pending'`
	return exec(ctx, r.db.Q(ctx), "payouts", query, nonNil(ids), invoiceID)
}

func (r *PayoutRepository) ListByInvoice(ctx context.Context, invoiceID string) ([]model.Payout, error) {
	query := `SELECT ` + payoutColumns + ` FROM payouts WHERE invoice_id = $1 ORDER BY created_at`
	return getAll[model.Payout](ctx, r.db.Q(ctx), "payouts", query, invoiceID)
}

const payoutFilter = `
	WHERE program_id = @program_id
		AND (@status::text IS NULL OR status = @status)
		AND (@partner_id::text IS NULL OR partner_id = @partner_id)`

func (r *PayoutRepository) List(ctx context.Context, f model.PayoutFilter) ([]model.Payout, int, error) {
	args := pgx.NamedArgs{
		"program_id": f.ProgramID,
		"status":     f.Status,
		"partner_id": f.PartnerID,
		"limit":      f.Limit(),
		"offset":     f.Offset(),
	}

	total, err := count(ctx, r.db.Q(ctx), `SELECT COUNT(*) FROM payouts`+payoutFilter, args)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + payoutColumns + ` FROM payouts` + payoutFilter +
		` ORDER BY created_at DESC LIMIT @limit OFFSET @offset`
	items, err := getAll[model.Payout](ctx, r.db.Q(ctx), "payouts", query, args)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

const invoiceColumns = `id, workspace_id, program_id, number, amount, fee, total, status, created_at`

type InvoiceRepository struct {
	db *database.Database
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *model.Invoice) (*model.Invoice, error) {
	query := `
		INSERT INTO invoices (id, workspace_id, program_id, number, amount, fee, total, status)
		VALUES (@id, @workspace_id, @program_id, @number, @amount, @fee, @total, @status)
		RETURNING ` + invoiceColumns

	return getOne[model.Invoice](ctx, r.db.Q(ctx), "invoices", query, pgx.NamedArgs{
		"id":           inv.ID,
		"workspace_id": inv.WorkspaceID,
		"program_id":   inv.ProgramID,
		"number":       inv.Number,
		"amount":       inv.Amount,
		"fee":          inv.Fee,
		"total":        inv.Total,
		"status":       inv.Status,
	})
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1`
	return getOne[model.Invoice](ctx, r.db.Q(ctx), "invoices", query, id)
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id string, status model.InvoiceStatus) (*model.Invoice, error) {
	query := `UPDATE invoices SET status = $2 WHERE id = $1 RETURNING ` + invoiceColumns
	return getOne[model.Invoice](ctx, r.db.Q(ctx), "invoices", query, id, status)
}
