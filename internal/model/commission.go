package model

import "time"

type CommissionType string

const (
	CommissionTypeClick  CommissionType = "click"
	CommissionTypeLead   CommissionType = "lead"
	CommissionTypeSale   CommissionType = "sale"
	CommissionTypeCustom CommissionType = "custom"
)

type CommissionStatus string

const (
	CommissionPending   CommissionStatus = "pending"
	CommissionProcessed CommissionStatus = "processed"
	CommissionPaid      CommissionStatus = "paid"
	CommissionRefunded  CommissionStatus = "refunded"
	CommissionDuplicate CommissionStatus = "duplicate"
	CommissionFraud     CommissionStatus = "fraud"
	CommissionCanceled  CommissionStatus = "canceled"
)

// PayableCommissionStatuses still count towards a payout amount.
var PayableCommissionStatuses = []CommissionStatus{CommissionPending, CommissionProcessed}

type Commission struct {
	ID            string           `json:"id" db:"id"`
	ProgramID     string           `json:"programId" db:"program_id"`
	PartnerID     string           `json:"partnerId" db:"partner_id"`
	PayoutID      *string          `json:"payoutId" db:"payout_id"`
	CustomerID    *string          `json:"customerId" db:"customer_id"`
	CustomerEmail *string          `json:"customerEmail,omitempty" db:"customer_email"`
	LinkID        *string          `json:"linkId" db:"link_id"`
	InvoiceID     *string          `json:"invoiceId" db:"invoice_id"`
	EventID       *string          `json:"eventId" db:"event_id"`
	Type          CommissionType   `json:"type" db:"type"`
	Amount        int64            `json:"amount" db:"amount"`
	Earnings      int64            `json:"earnings" db:"earnings"`
	Quantity      int              `json:"quantity" db:"quantity"`
	Currency      string           `json:"currency" db:"currency"`
	Status        CommissionStatus `json:"status" db:"status"`
	Description   *string          `json:"description" db:"description"`
	CreatedAt     time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time        `json:"updatedAt" db:"updated_at"`
}

// CommissionFilter narrows commission listings.
type CommissionFilter struct {
	ProgramID string
	Status    *CommissionStatus
	PartnerID *string
	Type      *CommissionType
	PayoutID  *string
	Pagination
}

// PartnerTotals aggregates a partner's commissions over a window.
type PartnerTotals struct {
	Leads       int64 `json:"leads"`
	Conversions int64 `json:"conversions"`
	SaleAmount  int64 `json:"saleAmount"`
	Earnings    int64 `json:"earnings"`
}

// TrackCustomer describes the converting customer of a tracked event.
type TrackCustomer struct {
	ID      string  `json:"id" validate:"required,max=190"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Country *string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
}

type TrackLeadRequest struct {
	ProgramID   string        `json:"programId" validate:"required"`
	PartnerID   *string       `json:"partnerId" validate:"required_without=LinkID"`
	LinkID      *string       `json:"linkId" validate:"required_without=PartnerID"`
	EventID     *string       `json:"eventId" validate:"omitempty,max=190"`
	EventName   string        `json:"eventName" validate:"required,max=190"`
	Customer    TrackCustomer `json:"customer" validate:"required"`
	ClickURL    *string       `json:"clickUrl" validate:"omitempty,url"`
	Referer     *string       `json:"referer" validate:"omitempty,max=2048"`
	Quantity    int           `json:"quantity" validate:"omitempty,min=1,max=1000"`
	Description *string       `json:"description" validate:"omitempty,max=500"`
}

func (r *TrackLeadRequest) Validate() error {
	return validate.Struct(r)
}

type TrackSaleRequest struct {
	ProgramID   string        `json:"programId" validate:"required"`
	PartnerID   *string       `json:"partnerId" validate:"required_without=LinkID"`
	LinkID      *string       `json:"linkId" validate:"required_without=PartnerID"`
	EventID     *string       `json:"eventId" validate:"omitempty,max=190"`
	InvoiceID   *string       `json:"invoiceId" validate:"omitempty,max=190"`
	Customer    TrackCustomer `json:"customer" validate:"required"`
	Amount      int64         `json:"amount"`
	Currency    string        `json:"currency" validate:"omitempty,len=3"`
	ProductID   *string       `json:"productId" validate:"omitempty,max=190"`
	ClickURL    *string       `json:"clickUrl" validate:"omitempty,url"`
	Referer     *string       `json:"referer" validate:"omitempty,max=2048"`
	Description *string       `json:"description" validate:"omitempty,max=500"`
}

func (r *TrackSaleRequest) Validate() error {
	return validate.Struct(r)
}

// TrackResponse is returned by the track endpoints. Commission is nil when
// the event earned nothing.
type TrackResponse struct {
	Commission *Commission `json:"commission"`
	Reason     string      `json:"reason,omitempty"`
}

type CreateCommissionRequest struct {
	ProgramID   string         `json:"-" param:"programId" validate:"required"`
	PartnerID   string         `json:"partnerId" validate:"required"`
	Type        CommissionType `json:"type" validate:"required,oneof=lead sale custom"`
	Amount      int64          `json:"amount" validate:"min=0"`
	Earnings    int64          `json:"earnings" validate:"min=0"`
	CustomerID  *string        `json:"customerId" validate:"omitempty,max=190"`
	InvoiceID   *string        `json:"invoiceId" validate:"omitempty,max=190"`
	Currency    string         `json:"currency" validate:"omitempty,len=3"`
	Description *string        `json:"description" validate:"omitempty,max=500"`
}

func (r *CreateCommissionRequest) Validate() error {
	return validate.Struct(r)
}

type UpdateCommissionRequest struct {
	ProgramID    string  `json:"-" param:"programId" validate:"required"`
	CommissionID string  `json:"-" param:"commissionId" validate:"required"`
	Amount       *int64  `json:"amount" validate:"omitempty,min=0"`
	Earnings     *int64  `json:"earnings" validate:"omitempty,min=0"`
	Description  *string `json:"description" validate:"omitempty,max=500"`
}

func (r *UpdateCommissionRequest) Validate() error {
	return validate.Struct(r)
}

type CommissionRef struct {
	ProgramID    string `json:"-" param:"programId" validate:"required"`
	CommissionID string `json:"-" param:"commissionId" validate:"required"`
}

func (r *CommissionRef) Validate() error {
	return validate.Struct(r)
}

type ListCommissionsRequest struct {
	ProgramID string            `json:"-" param:"programId" validate:"required"`
	Status    *CommissionStatus `query:"status" validate:"omitempty,oneof=pending processed paid refunded duplicate fraud canceled"`
	PartnerID *string           `query:"partnerId"`
	Type      *CommissionType   `query:"type" validate:"omitempty,oneof=click lead sale custom"`
	PayoutID  *string           `query:"payoutId"`
	Pagination
}

func (r *ListCommissionsRequest) Validate() error {
	return validate.Struct(r)
}

func (r *ListCommissionsRequest) Filter() CommissionFilter {
	return CommissionFilter{
		ProgramID:  r.ProgramID,
		Status:     r.Status,
		PartnerID:  r.PartnerID,
		Type:       r.Type,
		PayoutID:   r.PayoutID,
		Pagination: r.Pagination,
	}
}
