package model

import (
	"time"

	"github.com/deppfellow/partners/internal/validation"
)

type Partner struct {
	ID               string     `json:"id" db:"id"`
	UserID           *string    `json:"userId" db:"user_id"`
	Name             string     `json:"name" db:"name"`
	Email            string     `json:"email" db:"email"`
	Country          *string    `json:"country" db:"country"`
	Image            *string    `json:"image" db:"image"`
	PayoutsEnabledAt *time.Time `json:"payoutsEnabledAt" db:"payouts_enabled_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

type EnrollmentStatus string

const (
	EnrollmentPending     EnrollmentStatus = "pending"
	EnrollmentApproved    EnrollmentStatus = "approved"
	EnrollmentRejected    EnrollmentStatus = "rejected"
	EnrollmentInvited     EnrollmentStatus = "invited"
	EnrollmentDeclined    EnrollmentStatus = "declined"
	EnrollmentBanned      EnrollmentStatus = "banned"
	EnrollmentArchived    EnrollmentStatus = "archived"
	EnrollmentDeactivated EnrollmentStatus = "deactivated"
)

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentPending:     {EnrollmentApproved, EnrollmentRejected},
	EnrollmentInvited:     {EnrollmentApproved, EnrollmentDeclined},
	EnrollmentRejected:    {EnrollmentApproved},
	EnrollmentApproved:    {EnrollmentBanned, EnrollmentArchived, EnrollmentDeactivated},
	EnrollmentArchived:    {EnrollmentApproved, EnrollmentBanned},
	EnrollmentDeactivated: {EnrollmentApproved, EnrollmentBanned},
	EnrollmentBanned:      {EnrollmentApproved},
}

// CanTransition reports whether an enrollment may move from one status to
// another.
func (s EnrollmentStatus) CanTransition(to EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type BanReason string

const (
	BanReasonTOSViolation         BanReason = "tos_violation"
	BanReasonInappropriateContent BanReason = "inappropriate_content"
	BanReasonFakeTraffic          BanReason = "fake_traffic"
	BanReasonFraud                BanReason = "fraud"
	BanReasonSpam                 BanReason = "spam"
	BanReasonBrandAbuse           BanReason = "brand_abuse"
)

type ProgramEnrollment struct {
	ID               string           `json:"id" db:"id"`
	ProgramID        string           `json:"programId" db:"program_id"`
	PartnerID        string           `json:"partnerId" db:"partner_id"`
	Status           EnrollmentStatus `json:"status" db:"status"`
	LinkID           *string          `json:"linkId" db:"link_id"`
	ClickRewardID    *string          `json:"clickRewardId" db:"click_reward_id"`
	LeadRewardID     *string          `json:"leadRewardId" db:"lead_reward_id"`
	SaleRewardID     *string          `json:"saleRewardId" db:"sale_reward_id"`
	DiscountID       *string          `json:"discountId" db:"discount_id"`
	ApplicationNotes *string          `json:"applicationNotes" db:"application_notes"`
	BannedAt         *time.Time       `json:"bannedAt" db:"banned_at"`
	BannedReason     *BanReason       `json:"bannedReason" db:"banned_reason"`
	CreatedAt        time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time        `json:"updatedAt" db:"updated_at"`
}

// RewardID returns the reward assigned to this enrollment for event.
func (e *ProgramEnrollment) RewardID(event RewardEvent) *string {
	switch event {
	case RewardEventClick:
		return e.ClickRewardID
	case RewardEventLead:
		return e.LeadRewardID
	case RewardEventSale:
		return e.SaleRewardID
	}
	return nil
}

// ApplyProgramDefaults fills unset reward and discount ids from program.
func (e *ProgramEnrollment) ApplyProgramDefaults(p *Program) {
	if e.ClickRewardID == nil {
		e.ClickRewardID = p.DefaultClickRewardID
	}
	if e.LeadRewardID == nil {
		e.LeadRewardID = p.DefaultLeadRewardID
	}
	if e.SaleRewardID == nil {
		e.SaleRewardID = p.DefaultSaleRewardID
	}
	if e.DiscountID == nil {
		e.DiscountID = p.DefaultDiscountID
	}
}

// EnrolledPartner is a partner together with its enrollment in one program.
type EnrolledPartner struct {
	Partner
	Enrollment ProgramEnrollment `json:"enrollment"`
}

type ApplyRequest struct {
	ProgramSlug string  `json:"-" param:"programSlug" validate:"required"`
	Name        string  `json:"name" validate:"required,min=1,max=190"`
	Email       string  `json:"email" validate:"required,email"`
	Country     *string `json:"country" validate:"omitempty,iso3166_1_alpha2"`
	Notes       *string `json:"notes" validate:"omitempty,max=2000"`
}

func (r *ApplyRequest) Validate() error {
	return validate.Struct(r)
}

type InvitePartnerRequest struct {
	ProgramID     string  `json:"-" param:"programId" validate:"required"`
	Name          string  `json:"name" validate:"required,min=1,max=190"`
	Email         string  `json:"email" validate:"required,email"`
	ClickRewardID *string `json:"clickRewardId"`
	LeadRewardID  *string `json:"leadRewardId"`
	SaleRewardID  *string `json:"saleRewardId"`
	DiscountID    *string `json:"discountId"`
}

func (r *InvitePartnerRequest) Validate() error {
	return validate.Struct(r)
}

// BulkPartnersRequest targets up to 100 partners of one program.
type BulkPartnersRequest struct {
	ProgramID  string   `json:"-" param:"programId" validate:"required"`
	PartnerIDs []string `json:"partnerIds" validate:"required,min=1,max=100,dive,required"`
}

func (r *BulkPartnersRequest) Validate() error {
	return validate.Struct(r)
}

type ApprovePartnersRequest struct {
	ProgramID     string   `json:"-" param:"programId" validate:"required"`
	PartnerIDs    []string `json:"partnerIds" validate:"required,min=1,max=100,dive,required"`
	ClickRewardID *string  `json:"clickRewardId"`
	LeadRewardID  *string  `json:"leadRewardId"`
	SaleRewardID  *string  `json:"saleRewardId"`
	DiscountID    *string  `json:"discountId"`
}

func (r *ApprovePartnersRequest) Validate() error {
	return validate.Struct(r)
}

// HasRewardGroup reports whether the caller chose rewards explicitly.
func (r *ApprovePartnersRequest) HasRewardGroup() bool {
	return r.ClickRewardID != nil || r.LeadRewardID != nil || r.SaleRewardID != nil || r.DiscountID != nil
}

type PartnerRef struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	PartnerID string `json:"-" param:"partnerId" validate:"required"`
}

func (r *PartnerRef) Validate() error {
	return validate.Struct(r)
}

type BanPartnerRequest struct {
	ProgramID string    `json:"-" param:"programId" validate:"required"`
	PartnerID string    `json:"-" param:"partnerId" validate:"required"`
	Reason    BanReason `json:"reason" validate:"required,oneof=tos_violation inappropriate_content fake_traffic fraud spam brand_abuse"`
}

func (r *BanPartnerRequest) Validate() error {
	return validate.Struct(r)
}

type UpdateEnrollmentRewardsRequest struct {
	ProgramID     string  `json:"-" param:"programId" validate:"required"`
	PartnerID     string  `json:"-" param:"partnerId" validate:"required"`
	ClickRewardID *string `json:"clickRewardId"`
	LeadRewardID  *string `json:"leadRewardId"`
	SaleRewardID  *string `json:"saleRewardId"`
	DiscountID    *string `json:"discountId"`
}

func (r *UpdateEnrollmentRewardsRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.ClickRewardID == nil && r.LeadRewardID == nil && r.SaleRewardID == nil && r.DiscountID == nil {
		return validation.CustomValidationErrors{
			{Field: "rewards", Message: "at least one reward or discount must be provided"},
		}
	}
	return nil
}

type ListPartnersRequest struct {
	ProgramID string            `json:"-" param:"programId" validate:"required"`
	Status    *EnrollmentStatus `query:"status" validate:"omitempty,oneof=pending approved rejected invited declined banned archived deactivated"`
	Search    *string           `query:"search" validate:"omitempty,max=190"`
	Pagination
}

func (r *ListPartnersRequest) Validate() error {
	return validate.Struct(r)
}

// EnablePayoutsRequest is sent by a partner once their payout method is set up.
type EnablePayoutsRequest struct{}

func (r *EnablePayoutsRequest) Validate() error {
	return nil
}
