package model

import (
	"strconv"
	"time"

	"github.com/deppfellow/partners/internal/validation"
)

type RewardEvent string

const (
	RewardEventClick RewardEvent = "click"
	RewardEventLead  RewardEvent = "lead"
	RewardEventSale  RewardEvent = "sale"
)

type RewardType string

const (
	// RewardTypeFlat amounts are in cents.
	RewardTypeFlat RewardType = "flat"
	// RewardTypePercentage amounts are basis points, 1000 = 10%.
	RewardTypePercentage RewardType = "percentage"
)

// RewardModifier overrides the base reward when Condition (a CEL
// expression) holds for the tracked event.
type RewardModifier struct {
	Condition         string     `json:"condition" validate:"required,max=1000"`
	Type              RewardType `json:"type" validate:"required,oneof=flat percentage"`
	Amount            int64      `json:"amount" validate:"min=0"`
	MaxDurationMonths *int       `json:"maxDurationMonths" validate:"omitempty,min=0,max=120"`
}

type Reward struct {
	ID                string           `json:"id" db:"id"`
	ProgramID         string           `json:"programId" db:"program_id"`
	Event             RewardEvent      `json:"event" db:"event"`
	Type              RewardType       `json:"type" db:"type"`
	Amount            int64            `json:"amount" db:"amount"`
	MaxDurationMonths *int             `json:"maxDurationMonths" db:"max_duration_months"`
	Modifiers         []RewardModifier `json:"modifiers" db:"modifiers"`
	Description       *string          `json:"description" db:"description"`
	CreatedAt         time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time        `json:"updatedAt" db:"updated_at"`
}

type Discount struct {
	ID                string     `json:"id" db:"id"`
	ProgramID         string     `json:"programId" db:"program_id"`
	Type              RewardType `json:"type" db:"type"`
	Amount            int64      `json:"amount" db:"amount"`
	MaxDurationMonths *int       `json:"maxDurationMonths" db:"max_duration_months"`
	CouponID          *string    `json:"couponId" db:"coupon_id"`
	CouponTestID      *string    `json:"couponTestId" db:"coupon_test_id"`
	Description       *string    `json:"description" db:"description"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

type CreateRewardRequest struct {
	ProgramID         string           `json:"-" param:"programId" validate:"required"`
	Event             RewardEvent      `json:"event" validate:"required,oneof=click lead sale"`
	Type              RewardType       `json:"type" validate:"required,oneof=flat percentage"`
	Amount            int64            `json:"amount" validate:"min=0"`
	MaxDurationMonths *int             `json:"maxDurationMonths" validate:"omitempty,min=0,max=120"`
	Modifiers         []RewardModifier `json:"modifiers" validate:"omitempty,max=20,dive"`
	Description       *string          `json:"description" validate:"omitempty,max=500"`
	MakeDefault       bool             `json:"makeDefault"`
}

func (r *CreateRewardRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return ValidateRewardShape(r.Event, r.Type, r.Amount, r.Modifiers)
}

type UpdateRewardRequest struct {
	ProgramID         string            `json:"-" param:"programId" validate:"required"`
	RewardID          string            `json:"-" param:"rewardId" validate:"required"`
	Type              *RewardType       `json:"type" validate:"omitempty,oneof=flat percentage"`
	Amount            *int64            `json:"amount" validate:"omitempty,min=0"`
	MaxDurationMonths *int              `json:"maxDurationMonths" validate:"omitempty,min=0,max=120"`
	Modifiers         *[]RewardModifier `json:"modifiers" validate:"omitempty,max=20,dive"`
	Description       *string           `json:"description" validate:"omitempty,max=500"`
}

func (r *UpdateRewardRequest) Validate() error {
	return validate.Struct(r)
}

type RewardRef struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	RewardID  string `json:"-" param:"rewardId" validate:"required"`
}

func (r *RewardRef) Validate() error {
	return validate.Struct(r)
}

// ValidateRewardShape checks the rules that tie a reward's event, type and
// amount together. It runs for creates and again on merged updates.
func ValidateRewardShape(event RewardEvent, typ RewardType, amount int64, modifiers []RewardModifier) error {
	var errs validation.CustomValidationErrors

	if typ == RewardTypePercentage && event != RewardEventSale {
		errs = append(errs, validation.CustomValidationError{
			Field: "type", Message: "percentage rewards are only allowed for sale events",
		})
	}
	if typ == RewardTypePercentage && amount > 10000 {
		errs = append(errs, validation.CustomValidationError{
			Field: "amount", Message: "percentage must not exceed 10000 basis points",
		})
	}
	for _, m := range modifiers {
		if m.Type == RewardTypePercentage && event != RewardEventSale {
			errs = append(errs, validation.CustomValidationError{
				Field: "modifiers", Message: "percentage modifiers are only allowed for sale events",
			})
			break
		}
	}
	for i, m := range modifiers {
		if m.Type == RewardTypePercentage && m.Amount > 10000 {
			errs = append(errs, validation.CustomValidationError{
				Field:   "modifiers[" + strconv.Itoa(i) + "].amount",
				Message: "percentage must not exceed 10000 basis points",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type CreateDiscountRequest struct {
	ProgramID         string     `json:"-" param:"programId" validate:"required"`
	Type              RewardType `json:"type" validate:"required,oneof=flat percentage"`
	Amount            int64      `json:"amount" validate:"min=0"`
	MaxDurationMonths *int       `json:"maxDurationMonths" validate:"omitempty,min=0,max=120"`
	CouponID          *string    `json:"couponId" validate:"omitempty,max=190"`
	CouponTestID      *string    `json:"couponTestId" validate:"omitempty,max=190"`
	Description       *string    `json:"description" validate:"omitempty,max=500"`
	MakeDefault       bool       `json:"makeDefault"`
}

func (r *CreateDiscountRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if r.Type == RewardTypePercentage && r.Amount > 10000 {
		return validation.CustomValidationErrors{
			{Field: "amount", Message: "percentage must not exceed 10000 basis points"},
		}
	}
	return nil
}

type UpdateDiscountRequest struct {
	ProgramID         string  `json:"-" param:"programId" validate:"required"`
	DiscountID        string  `json:"-" param:"discountId" validate:"required"`
	Amount            *int64  `json:"amount" validate:"omitempty,min=0"`
	MaxDurationMonths *int    `json:"maxDurationMonths" validate:"omitempty,min=0,max=120"`
	CouponID          *string `json:"couponId" validate:"omitempty,max=190"`
	CouponTestID      *string `json:"couponTestId" validate:"omitempty,max=190"`
	Description       *string `json:"description" validate:"omitempty,max=500"`
}

func (r *UpdateDiscountRequest) Validate() error {
	return validate.Struct(r)
}

type DiscountRef struct {
	ProgramID  string `json:"-" param:"programId" validate:"required"`
	DiscountID string `json:"-" param:"discountId" validate:"required"`
}

func (r *DiscountRef) Validate() error {
	return validate.Struct(r)
}
