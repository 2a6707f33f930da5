package model

import (
	"strings"
	"time"
)

type Program struct {
	ID                    string    `json:"id" db:"id"`
	WorkspaceID           string    `json:"workspaceId" db:"workspace_id"`
	Name                  string    `json:"name" db:"name"`
	Slug                  string    `json:"slug" db:"slug"`
	Domain                *string   `json:"domain" db:"domain"`
	URL                   *string   `json:"url" db:"url"`
	HoldingPeriodDays     int       `json:"holdingPeriodDays" db:"holding_period_days"`
	MinPayoutAmount       int64     `json:"minPayoutAmount" db:"min_payout_amount"`
	AutoApprovePartners   bool      `json:"autoApprovePartners" db:"auto_approve_partners"`
	MessagingEnabled      bool      `json:"messagingEnabled" db:"messaging_enabled"`
	BannedReferralSources []string  `json:"bannedReferralSources" db:"banned_referral_sources"`
	DefaultClickRewardID  *string   `json:"defaultClickRewardId" db:"default_click_reward_id"`
	DefaultLeadRewardID   *string   `json:"defaultLeadRewardId" db:"default_lead_reward_id"`
	DefaultSaleRewardID   *string   `json:"defaultSaleRewardId" db:"default_sale_reward_id"`
	DefaultDiscountID     *string   `json:"defaultDiscountId" db:"default_discount_id"`
	SupportEmail          *string   `json:"supportEmail" db:"support_email"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time `json:"updatedAt" db:"updated_at"`
}

// DefaultRewardID returns the program default reward for event, if any.
func (p *Program) DefaultRewardID(event RewardEvent) *string {
	switch event {
	case RewardEventClick:
		return p.DefaultClickRewardID
	case RewardEventLead:
		return p.DefaultLeadRewardID
	case RewardEventSale:
		return p.DefaultSaleRewardID
	}
	return nil
}

// IsDefaultReward reports whether rewardID is one of the program defaults.
func (p *Program) IsDefaultReward(rewardID string) bool {
	for _, id := range []*string{p.DefaultClickRewardID, p.DefaultLeadRewardID, p.DefaultSaleRewardID} {
		if id != nil && *id == rewardID {
			return true
		}
	}
	return false
}

// IsReferralSourceBanned matches host against the banned sources, including
// their subdomains.
func (p *Program) IsReferralSourceBanned(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	if host == "" {
		return false
	}
	for _, banned := range p.BannedReferralSources {
		banned = strings.TrimPrefix(strings.ToLower(banned), "www.")
		if host == banned || strings.HasSuffix(host, "."+banned) {
			return true
		}
	}
	return false
}

type CreateProgramRequest struct {
	Name                string  `json:"name" validate:"required,min=1,max=190"`
	Slug                string  `json:"slug" validate:"required,min=3,max=64,slug"`
	Domain              *string `json:"domain" validate:"omitempty,fqdn"`
	URL                 *string `json:"url" validate:"omitempty,url"`
	HoldingPeriodDays   *int    `json:"holdingPeriodDays" validate:"omitempty,min=0,max=90"`
	MinPayoutAmount     *int64  `json:"minPayoutAmount" validate:"omitempty,min=0"`
	AutoApprovePartners bool    `json:"autoApprovePartners"`
	SupportEmail        *string `json:"supportEmail" validate:"omitempty,email"`
}

func (r *CreateProgramRequest) Validate() error {
	return validate.Struct(r)
}

type UpdateProgramRequest struct {
	ProgramID             string    `json:"-" param:"programId" validate:"required"`
	Name                  *string   `json:"name" validate:"omitempty,min=1,max=190"`
	Domain                *string   `json:"domain" validate:"omitempty,fqdn"`
	URL                   *string   `json:"url" validate:"omitempty,url"`
	HoldingPeriodDays     *int      `json:"holdingPeriodDays" validate:"omitempty,min=0,max=90"`
	MinPayoutAmount       *int64    `json:"minPayoutAmount" validate:"omitempty,min=0"`
	AutoApprovePartners   *bool     `json:"autoApprovePartners"`
	MessagingEnabled      *bool     `json:"messagingEnabled"`
	BannedReferralSources *[]string `json:"bannedReferralSources" validate:"omitempty,max=100,dive,hostname"`
	DefaultDiscountID     *string   `json:"defaultDiscountId"`
	SupportEmail          *string   `json:"supportEmail" validate:"omitempty,email"`
}

func (r *UpdateProgramRequest) Validate() error {
	return validate.Struct(r)
}

// ProgramRef identifies a program in the path.
type ProgramRef struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
}

func (r *ProgramRef) Validate() error {
	return validate.Struct(r)
}

// Empty is the payload of routes that take no input.
type Empty struct{}

func (r *Empty) Validate() error {
	return nil
}
