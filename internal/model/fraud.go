package model

import (
	"encoding/json"
	"time"
)

type FraudRuleType string

const (
	FraudCustomerEmailMatch         FraudRuleType = "customer_email_match"
	FraudCustomerEmailSuspicious    FraudRuleType = "customer_email_suspicious_domain"
	FraudReferralSourceBanned       FraudRuleType = "referral_source_banned"
	FraudPaidTrafficDetected        FraudRuleType = "paid_traffic_detected"
	FraudCrossProgramBan            FraudRuleType = "cross_program_ban"
	FraudDuplicatePayoutMethod      FraudRuleType = "duplicate_payout_method"
	FraudPartnerEmailDomainMismatch FraudRuleType = "partner_email_domain_mismatch"
)

type FraudGroupStatus string

const (
	FraudGroupPending  FraudGroupStatus = "pending"
	FraudGroupResolved FraudGroupStatus = "resolved"
)

type FraudEventGroup struct {
	ID               string           `json:"id" db:"id"`
	ProgramID        string           `json:"programId" db:"program_id"`
	PartnerID        string           `json:"partnerId" db:"partner_id"`
	Type             FraudRuleType    `json:"type" db:"type"`
	Status           FraudGroupStatus `json:"status" db:"status"`
	EventCount       int              `json:"eventCount" db:"event_count"`
	LastEventAt      time.Time        `json:"lastEventAt" db:"last_event_at"`
	ResolutionReason *string          `json:"resolutionReason" db:"resolution_reason"`
	ResolvedBy       *string          `json:"resolvedBy" db:"resolved_by"`
	ResolvedAt       *time.Time       `json:"resolvedAt" db:"resolved_at"`
	CreatedAt        time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time        `json:"updatedAt" db:"updated_at"`
}

type FraudEvent struct {
	ID           string          `json:"id" db:"id"`
	GroupID      string          `json:"groupId" db:"group_id"`
	CommissionID *string         `json:"commissionId" db:"commission_id"`
	CustomerID   *string         `json:"customerId" db:"customer_id"`
	Metadata     json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}

// FraudSignal is one rule hit found while checking a conversion.
type FraudSignal struct {
	Type     FraudRuleType
	Metadata map[string]any
}

type FraudGroupWithEvents struct {
	FraudEventGroup
	Events []FraudEvent `json:"events"`
}

type FraudGroupFilter struct {
	ProgramID string
	Status    *FraudGroupStatus
	Type      *FraudRuleType
	PartnerID *string
	Pagination
}

type ListFraudGroupsRequest struct {
	ProgramID string            `json:"-" param:"programId" validate:"required"`
	Status    *FraudGroupStatus `query:"status" validate:"omitempty,oneof=pending resolved"`
	Type      *FraudRuleType    `query:"type"`
	PartnerID *string           `query:"partnerId"`
	Pagination
}

func (r *ListFraudGroupsRequest) Validate() error {
	return validate.Struct(r)
}

func (r *ListFraudGroupsRequest) Filter() FraudGroupFilter {
	return FraudGroupFilter{
		ProgramID:  r.ProgramID,
		Status:     r.Status,
		Type:       r.Type,
		PartnerID:  r.PartnerID,
		Pagination: r.Pagination,
	}
}

type FraudGroupRef struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	GroupID   string `json:"-" param:"groupId" validate:"required"`
}

func (r *FraudGroupRef) Validate() error {
	return validate.Struct(r)
}

type ResolveFraudGroupRequest struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	GroupID   string `json:"-" param:"groupId" validate:"required"`
	Reason    string `json:"resolutionReason" validate:"required,min=1,max=1000"`
}

func (r *ResolveFraudGroupRequest) Validate() error {
	return validate.Struct(r)
}

type BulkResolveFraudGroupsRequest struct {
	ProgramID string   `json:"-" param:"programId" validate:"required"`
	GroupIDs  []string `json:"groupIds" validate:"required,min=1,max=100,dive,required"`
	Reason    string   `json:"resolutionReason" validate:"required,min=1,max=1000"`
}

func (r *BulkResolveFraudGroupsRequest) Validate() error {
	return validate.Struct(r)
}

type ResolveAndBanRequest struct {
	ProgramID string    `json:"-" param:"programId" validate:"required"`
	GroupID   string    `json:"-" param:"groupId" validate:"required"`
	Reason    BanReason `json:"reason" validate:"required,oneof=tos_violation inappropriate_content fake_traffic fraud spam brand_abuse"`
}

func (r *ResolveAndBanRequest) Validate() error {
	return validate.Struct(r)
}

type ResolvedCountResponse struct {
	Count int64 `json:"count"`
}
