// Package service contains the business logic.
//
// It sits between the handler and repository layers.
// It receives validated data from the handler, performs
// business operations, and calls repository methods to interact
// with the data. Multi-row changes run inside Transactor.WithTx;
// emails, webhooks and audit entries run afterwards and never fail the
// operation that triggered them.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/repository"
)

// Enqueuer is the part of *asynq.Client services use.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Transactor runs fn in one database transaction.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProgramStore interface {
	Create(ctx context.Context, p *model.Program) (*model.Program, error)
	GetByID(ctx context.Context, id string) (*model.Program, error)
	GetBySlug(ctx context.Context, slug string) (*model.Program, error)
	Update(ctx context.Context, p *model.Program) (*model.Program, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Program, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ProgramCache is a read-through cache of programs by id and slug. A miss
// returns nil, nil.
type ProgramCache interface {
	GetByID(ctx context.Context, id string) (*model.Program, error)
	GetBySlug(ctx context.Context, slug string) (*model.Program, error)
	Set(ctx context.Context, p *model.Program) error
	Invalidate(ctx context.Context, p *model.Program) error
}

type PartnerStore interface {
	Create(ctx context.Context, p *model.Partner) (*model.Partner, error)
	GetByID(ctx context.Context, id string) (*model.Partner, error)
	GetByEmail(ctx context.Context, email string) (*model.Partner, error)
	GetByUserID(ctx context.Context, userID string) (*model.Partner, error)
	LinkUser(ctx context.Context, id, userID string) (*model.Partner, error)
	EnablePayouts(ctx context.Context, id string) (*model.Partner, error)
}

type EnrollmentStore interface {
	Create(ctx context.Context, e *model.ProgramEnrollment) (*model.ProgramEnrollment, error)
	Get(ctx context.Context, programID, partnerID string) (*model.ProgramEnrollment, error)
	GetByLink(ctx context.Context, programID, linkID string) (*model.ProgramEnrollment, error)
	Update(ctx context.Context, e *model.ProgramEnrollment, from ...model.EnrollmentStatus) (*model.ProgramEnrollment, error)
	ListApprovedElsewhere(ctx context.Context, partnerID, programID string) ([]model.ProgramEnrollment, error)
	ListForPartner(ctx context.Context, partnerID string) ([]model.ProgramEnrollment, error)
	ListApprovedPartnerIDs(ctx context.Context, programID string) ([]string, error)
	GetEnrolledPartner(ctx context.Context, programID, partnerID string) (*model.EnrolledPartner, error)
	ListEnrolledPartners(ctx context.Context, req *model.ListPartnersRequest) ([]model.EnrolledPartner, int, error)
}

type RewardStore interface {
	Create(ctx context.Context, r *model.Reward) (*model.Reward, error)
	GetByID(ctx context.Context, programID, id string) (*model.Reward, error)
	Update(ctx context.Context, r *model.Reward) (*model.Reward, error)
	Delete(ctx context.Context, programID, id string) error
	List(ctx context.Context, programID string) ([]model.Reward, error)
}

type DiscountStore interface {
	Create(ctx context.Context, d *model.Discount) (*model.Discount, error)
	GetByID(ctx context.Context, programID, id string) (*model.Discount, error)
	Update(ctx context.Context, d *model.Discount) (*model.Discount, error)
	Delete(ctx context.Context, programID, id string) error
	List(ctx context.Context, programID string) ([]model.Discount, error)
}

type CommissionStore interface {
	Create(ctx context.Context, c *model.Commission) (*model.Commission, error)
	GetByID(ctx context.Context, programID, id string) (*model.Commission, error)
	Update(ctx context.Context, c *model.Commission, from ...model.CommissionStatus) (*model.Commission, error)
	List(ctx context.Context, f model.CommissionFilter) ([]model.Commission, int, error)
	CancelForBan(ctx context.Context, programID, partnerID string) (int64, error)
	ListDue(ctx context.Context, programID string, cutoff time.Time) ([]model.Commission, error)
	AttachToPayout(ctx context.Context, payoutID string, ids []string) (int64, error)
	SumPayable(ctx context.Context, payoutID string) (int64, int, error)
	MarkPaidByPayout(ctx context.Context, payoutID string) (int64, error)
	DetachFromPayout(ctx context.Context, payoutID string) (int64, error)
	FirstForCustomer(ctx context.Context, programID, partnerID, customerID string, typ model.CommissionType) (*time.Time, error)
	ExistsForEvent(ctx context.Context, programID, eventID string) (bool, error)
	Totals(ctx context.Context, programID, partnerID string, since time.Time) (model.PartnerTotals, error)
}

type PayoutStore interface {
	Create(ctx context.Context, p *model.Payout) (*model.Payout, error)
	GetByID(ctx context.Context, programID, id string) (*model.Payout, error)
	GetPendingForPartner(ctx context.Context, programID, partnerID, currency string) (*model.Payout, error)
	UpdateAmount(ctx context.Context, p *model.Payout) (*model.Payout, error)
	Transition(ctx context.Context, id string, t repository.PayoutTransition) (*model.Payout, error)
	Delete(ctx context.Context, id string) error
	CancelPendingForPartner(ctx context.Context, programID, partnerID string) (int64, error)
	ListConfirmable(ctx context.Context, programID string, minAmount int64, include, exclude []string) ([]model.Payout, error)
	AssignInvoice(ctx context.Context, ids []string, invoiceID string) (int64, error)
	ListByInvoice(ctx context.Context, invoiceID string) ([]model.Payout, error)
	List(ctx context.Context, f model.PayoutFilter) ([]model.Payout, int, error)
}

type InvoiceStore interface {
	Create(ctx context.Context, inv *model.Invoice) (*model.Invoice, error)
	GetByID(ctx context.Context, id string) (*model.Invoice, error)
	UpdateStatus(ctx context.Context, id string, status model.InvoiceStatus) (*model.Invoice, error)
}

type FraudStore interface {
	UpsertGroup(ctx context.Context, programID, partnerID string, typ model.FraudRuleType) (*model.FraudEventGroup, error)
	CreateEvent(ctx context.Context, e *model.FraudEvent) (*model.FraudEvent, error)
	GetGroup(ctx context.Context, programID, id string) (*model.FraudEventGroup, error)
	ListEvents(ctx context.Context, groupID string) ([]model.FraudEvent, error)
	ListGroups(ctx context.Context, f model.FraudGroupFilter) ([]model.FraudEventGroup, int, error)
	ResolveGroups(ctx context.Context, programID string, ids []string, reason, resolvedBy string) (int64, error)
	ResolvePendingForPartner(ctx context.Context, programID, partnerID, reason, resolvedBy string) (int64, error)
}

type BountyStore interface {
	Create(ctx context.Context, b *model.Bounty) (*model.Bounty, error)
	GetByID(ctx context.Context, programID, id string) (*model.Bounty, error)
	Update(ctx context.Context, b *model.Bounty) (*model.Bounty, error)
	Delete(ctx context.Context, programID, id string) error
	List(ctx context.Context, programID string) ([]model.Bounty, error)
	ListActivePerformance(ctx context.Context, now time.Time) ([]model.Bounty, error)
	CountSubmissions(ctx context.Context, bountyID string) (int, error)
	HasSubmission(ctx context.Context, bountyID, partnerID string) (bool, error)
	CreateSubmission(ctx context.Context, s *model.BountySubmission) (*model.BountySubmission, error)
	GetSubmission(ctx context.Context, bountyID, id string) (*model.BountySubmission, error)
	Review(ctx context.Context, s *model.BountySubmission) (*model.BountySubmission, error)
	ListSubmissions(ctx context.Context, bountyID string) ([]model.BountySubmission, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	List(ctx context.Context, programID, partnerID string, before *time.Time, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, programID, partnerID string, direction model.MessageDirection) (int64, error)
	ListUnnotified(ctx context.Context, programID, partnerID string, direction model.MessageDirection) ([]model.Message, error)
	MarkEmailed(ctx context.Context, ids []string) (int64, error)
}

type WebhookStore interface {
	Create(ctx context.Context, w *model.Webhook) (*model.Webhook, error)
	GetByID(ctx context.Context, id string) (*model.Webhook, error)
	Delete(ctx context.Context, workspaceID, id string) error
	ListByWorkspace(ctx context.Context, workspaceID string) ([]model.Webhook, error)
	ListForEvent(ctx context.Context, workspaceID string, event model.WebhookEvent) ([]model.Webhook, error)
	RecordFailure(ctx context.Context, id string, maxFailures int) (*model.Webhook, error)
	RecordSuccess(ctx context.Context, id string) error
}

type AuditStore interface {
	Create(ctx context.Context, a *model.AuditLog) (*model.AuditLog, error)
	ListByWorkspace(ctx context.Context, workspaceID string, p model.Pagination) ([]model.AuditLog, error)
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// conflictOnStale turns a lost optimistic lock into a 409 and leaves every
// other error alone.
func conflictOnStale(err error, message, code string) error {
	if errors.Is(err, repository.ErrStatusChanged) {
		return errs.NewConflictError(message, errs.Code(code))
	}
	return err
}

func invalidTransition[S ~string](entity string, from, to S) error {
	return errs.NewUnprocessableError(
		entity+" cannot move from "+string(from)+" to "+string(to),
		errs.Code("INVALID_STATUS_TRANSITION"),
	)
}

func ptr[T any](v T) *T {
	return &v
}
