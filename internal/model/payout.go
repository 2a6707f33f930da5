package model

import "time"

type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutProcessed  PayoutStatus = "processed"
	PayoutSent       PayoutStatus = "sent"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
	PayoutCanceled   PayoutStatus = "canceled"
)

type PayoutMode string

const (
	PayoutModeInternal PayoutMode = "internal"
	PayoutModeExternal PayoutMode = "external"
)

type Payout struct {
	ID            string       `json:"id" db:"id"`
	ProgramID     string       `json:"programId" db:"program_id"`
	PartnerID     string       `json:"partnerId" db:"partner_id"`
	InvoiceID     *string      `json:"invoiceId" db:"invoice_id"`
	Amount        int64        `json:"amount" db:"amount"`
	Currency      string       `json:"currency" db:"currency"`
	Status        PayoutStatus `json:"status" db:"status"`
	Mode          PayoutMode   `json:"mode" db:"mode"`
	Description   *string      `json:"description" db:"description"`
	PeriodStart   *time.Time   `json:"periodStart" db:"period_start"`
	PeriodEnd     *time.Time   `json:"periodEnd" db:"period_end"`
	FailureReason *string      `json:"failureReason" db:"failure_reason"`
	PaidAt        *time.Time   `json:"paidAt" db:"paid_at"`
	CreatedAt     time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time    `json:"updatedAt" db:"updated_at"`
}

// WidenPeriod stretches the payout period to cover t.
func (p *Payout) WidenPeriod(t time.Time) {
	if p.PeriodStart == nil || t.Before(*p.PeriodStart) {
		p.PeriodStart = &t
	}
	if p.PeriodEnd == nil || t.After(*p.PeriodEnd) {
		p.PeriodEnd = &t
	}
}

type InvoiceStatus string

const (
	InvoiceProcessing InvoiceStatus = "processing"
	InvoiceCompleted  InvoiceStatus = "completed"
	InvoiceFailed     InvoiceStatus = "failed"
)

type Invoice struct {
	ID          string        `json:"id" db:"id"`
	WorkspaceID string        `json:"workspaceId" db:"workspace_id"`
	ProgramID   string        `json:"programId" db:"program_id"`
	Number      string        `json:"number" db:"number"`
	Amount      int64         `json:"amount" db:"amount"`
	Fee         int64         `json:"fee" db:"fee"`
	Total       int64         `json:"total" db:"total"`
	Status      InvoiceStatus `json:"status" db:"status"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
}

type PayoutFilter struct {
	ProgramID string
	Status    *PayoutStatus
	PartnerID *string
	Pagination
}

type ListPayoutsRequest struct {
	ProgramID string        `json:"-" param:"programId" validate:"required"`
	Status    *PayoutStatus `query:"status" validate:"omitempty,oneof=pending processing processed sent completed failed canceled"`
	PartnerID *string       `query:"partnerId"`
	Pagination
}

func (r *ListPayoutsRequest) Validate() error {
	return validate.Struct(r)
}

func (r *ListPayoutsRequest) Filter() PayoutFilter {
	return PayoutFilter{
		ProgramID:  r.ProgramID,
		Status:     r.Status,
		PartnerID:  r.PartnerID,
		Pagination: r.Pagination,
	}
}

type PayoutRef struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	PayoutID  string `json:"-" param:"payoutId" validate:"required"`
}

func (r *PayoutRef) Validate() error {
	return validate.Struct(r)
}

type ConfirmPayoutsRequest struct {
	ProgramID         string   `json:"-" param:"programId" validate:"required"`
	PayoutIDs         []string `json:"payoutIds" validate:"omitempty,max=500,dive,required"`
	ExcludedPayoutIDs []string `json:"excludedPayoutIds" validate:"omitempty,max=500,dive,required"`
}

func (r *ConfirmPayoutsRequest) Validate() error {
	return validate.Struct(r)
}

type ConfirmPayoutsResponse struct {
	Invoice *Invoice `json:"invoice"`
	Payouts []Payout `json:"payouts"`
}
