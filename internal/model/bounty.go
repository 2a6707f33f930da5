package model

import (
	"time"

	"github.com/deppfellow/partners/internal/validation"
)

type BountyType string

const (
	BountyTypePerformance BountyType = "performance"
	BountyTypeSubmission  BountyType = "submission"
)

type Bounty struct {
	ID                   string     `json:"id" db:"id"`
	ProgramID            string     `json:"programId" db:"program_id"`
	Type                 BountyType `json:"type" db:"type"`
	Name                 string     `json:"name" db:"name"`
	Description          *string    `json:"description" db:"description"`
	StartsAt             time.Time  `json:"startsAt" db:"starts_at"`
	EndsAt               *time.Time `json:"endsAt" db:"ends_at"`
	RewardAmount         int64      `json:"rewardAmount" db:"reward_amount"`
	PerformanceCondition *string    `json:"performanceCondition" db:"performance_condition"`
	CreatedAt            time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt            time.Time  `json:"updatedAt" db:"updated_at"`
}

// IsActive reports whether the bounty accepts work at t.
func (b *Bounty) IsActive(t time.Time) bool {
	if t.Before(b.StartsAt) {
		return false
	}
	return b.EndsAt == nil || t.Before(*b.EndsAt)
}

type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionApproved  SubmissionStatus = "approved"
	SubmissionRejected  SubmissionStatus = "rejected"
)

type BountySubmission struct {
	ID              string           `json:"id" db:"id"`
	BountyID        string           `json:"bountyId" db:"bounty_id"`
	PartnerID       string           `json:"partnerId" db:"partner_id"`
	URLs            []string         `json:"urls" db:"urls"`
	Description     *string          `json:"description" db:"description"`
	Status          SubmissionStatus `json:"status" db:"status"`
	CommissionID    *string          `json:"commissionId" db:"commission_id"`
	RejectionReason *string          `json:"rejectionReason" db:"rejection_reason"`
	ReviewedAt      *time.Time       `json:"reviewedAt" db:"reviewed_at"`
	CreatedAt       time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" db:"updated_at"`
}

type CreateBountyRequest struct {
	ProgramID            string     `json:"-" param:"programId" validate:"required"`
	Type                 BountyType `json:"type" validate:"required,oneof=performance submission"`
	Name                 string     `json:"name" validate:"required,min=1,max=190"`
	Description          *string    `json:"description" validate:"omitempty,max=5000"`
	StartsAt             time.Time  `json:"startsAt" validate:"required"`
	EndsAt               *time.Time `json:"endsAt"`
	RewardAmount         int64      `json:"rewardAmount" validate:"required,min=1"`
	PerformanceCondition *string    `json:"performanceCondition" validate:"omitempty,max=1000"`
}

func (r *CreateBountyRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	return validateBountyShape(r.Type, r.StartsAt, r.EndsAt, r.PerformanceCondition)
}

type UpdateBountyRequest struct {
	ProgramID            string     `json:"-" param:"programId" validate:"required"`
	BountyID             string     `json:"-" param:"bountyId" validate:"required"`
	Name                 *string    `json:"name" validate:"omitempty,min=1,max=190"`
	Description          *string    `json:"description" validate:"omitempty,max=5000"`
	EndsAt               *time.Time `json:"endsAt"`
	RewardAmount         *int64     `json:"rewardAmount" validate:"omitempty,min=1"`
	PerformanceCondition *string    `json:"performanceCondition" validate:"omitempty,max=1000"`
}

func (r *UpdateBountyRequest) Validate() error {
	return validate.Struct(r)
}

func validateBountyShape(typ BountyType, startsAt time.Time, endsAt *time.Time, condition *string) error {
	var errs validation.CustomValidationErrors
	if endsAt != nil && !endsAt.After(startsAt) {
		errs = append(errs, validation.CustomValidationError{Field: "endsAt", Message: "must be after startsAt"})
	}
	if typ == BountyTypePerformance && (condition == nil || *condition == "") {
		errs = append(errs, validation.CustomValidationError{Field: "performanceCondition", Message: "is required for performance bounties"})
	}
	if typ == BountyTypeSubmission && condition != nil {
		errs = append(errs, validation.CustomValidationError{Field: "performanceCondition", Message: "is only allowed for performance bounties"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type BountyRef struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	BountyID  string `json:"-" param:"bountyId" validate:"required"`
}

func (r *BountyRef) Validate() error {
	return validate.Struct(r)
}

type SubmitBountyRequest struct {
	ProgramID   string   `json:"-" param:"programId" validate:"required"`
	BountyID    string   `json:"-" param:"bountyId" validate:"required"`
	URLs        []string `json:"urls" validate:"required,min=1,max=20,dive,url"`
	Description *string  `json:"description" validate:"omitempty,max=5000"`
}

func (r *SubmitBountyRequest) Validate() error {
	return validate.Struct(r)
}

type SubmissionRef struct {
	ProgramID    string `json:"-" param:"programId" validate:"required"`
	BountyID     string `json:"-" param:"bountyId" validate:"required"`
	SubmissionID string `json:"-" param:"submissionId" validate:"required"`
}

func (r *SubmissionRef) Validate() error {
	return validate.Struct(r)
}

type RejectSubmissionRequest struct {
	ProgramID    string `json:"-" param:"programId" validate:"required"`
	BountyID     string `json:"-" param:"bountyId" validate:"required"`
	SubmissionID string `json:"-" param:"submissionId" validate:"required"`
	Reason       string `json:"rejectionReason" validate:"required,min=1,max=1000"`
}

func (r *RejectSubmissionRequest) Validate() error {
	return validate.Struct(r)
}
