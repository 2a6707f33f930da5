package service

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/lib/rules"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/sqlerr"
)

const (
	defaultCurrency            = "usd"
	uniqueCommissionInvoiceIdx = "unique_commissions_invoice"
)

var errCommissionExists = errs.NewConflictError("A commission for this invoice already exists", errs.Code("COMMISSION_ALREADY_EXISTS"))

type CommissionService struct {
	programs    *ProgramService
	partners    PartnerStore
	enrollments EnrollmentStore
	commissions CommissionStore
	payouts     PayoutStore
	rewards     *RewardService
	fraud       *FraudService
	evaluator   *rules.Evaluator
	tx          Transactor
	effects     *effects
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewCommissionService(
	programs *ProgramService,
	partners PartnerStore,
	enrollments EnrollmentStore,
	commissions CommissionStore,
	payouts PayoutStore,
	rewards *RewardService,
	fraud *FraudService,
	evaluator *rules.Evaluator,
	tx Transactor,
	fx *effects,
	logger *zerolog.Logger,
) *CommissionService {
	return &CommissionService{
		programs:    programs,
		partners:    partners,
		enrollments: enrollments,
		commissions: commissions,
		payouts:     payouts,
		rewards:     rewards,
		fraud:       fraud,
		evaluator:   evaluator,
		tx:          tx,
		effects:     fx,
		logger:      logger,
		now:         time.Now,
	}
}

// tracked is the common shape of lead and sale events.
type tracked struct {
	programID   string
	partnerID   *string
	linkID      *string
	eventID     *string
	invoiceID   *string
	event       model.RewardEvent
	typ         model.CommissionType
	customer    model.TrackCustomer
	amount      int64
	currency    string
	quantity    int
	productID   *string
	clickURL    *string
	referer     *string
	description *string
}

func (s *CommissionService) TrackLead(ctx context.Context, actor model.Actor, req *model.TrackLeadRequest) (*model.TrackResponse, error) {
	return s.track(ctx, actor, tracked{
		programID:   req.ProgramID,
		partnerID:   req.PartnerID,
		linkID:      req.LinkID,
		eventID:     req.EventID,
		event:       model.RewardEventLead,
		typ:         model.CommissionTypeLead,
		customer:    req.Customer,
		quantity:    req.Quantity,
		clickURL:    req.ClickURL,
		referer:     req.Referer,
		description: req.Description,
	})
}

func (s *CommissionService) TrackSale(ctx context.Context, actor model.Actor, req *model.TrackSaleRequest) (*model.TrackResponse, error) {
	return s.track(ctx, actor, tracked{
		programID:   req.ProgramID,
		partnerID:   req.PartnerID,
		linkID:      req.LinkID,
		eventID:     req.EventID,
		invoiceID:   req.InvoiceID,
		event:       model.RewardEventSale,
		typ:         model.CommissionTypeSale,
		customer:    req.Customer,
		amount:      req.Amount,
		currency:    req.Currency,
		quantity:    1,
		productID:   req.ProductID,
		clickURL:    req.ClickURL,
		referer:     req.Referer,
		description: req.Description,
	})
}

func (s *CommissionService) track(ctx context.Context, actor model.Actor, t tracked) (*model.TrackResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	program, err := s.programs.Scoped(ctx, actor, t.programID)
	if err != nil {
		return nil, err
	}

	if t.eventID != nil {
		seen, err := s.commissions.ExistsForEvent(ctx, program.ID, *t.eventID)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, errs.NewConflictError("This event was already tracked", errs.Code("COMMISSION_ALREADY_EXISTS"))
		}
	}

	enrollment, err := s.enrollmentFor(ctx, program.ID, t.partnerID, t.linkID)
	if err != nil {
		return nil, err
	}
	if enrollment.Status != model.EnrollmentApproved {
		return nil, errs.NewUnprocessableError("Partner is not approved in this program", errs.Code("PARTNER_NOT_APPROVED"))
	}

	partner, err := s.partners.GetByID(ctx, enrollment.PartnerID)
	if err != nil {
		return nil, err
	}

	customerID := &t.customer.ID
	signals := DetectFraud(program, Conversion{
		PartnerEmail:  partner.Email,
		CustomerEmail: t.customer.Email,
		Referer:       t.referer,
		ClickURL:      t.clickURL,
	})

	skip := func(reason string) (*model.TrackResponse, error) {
		s.fraud.RecordAll(ctx, program.ID, partner.ID, signals, nil, customerID)
		return &model.TrackResponse{Reason: reason}, nil
	}

	if t.typ == model.CommissionTypeSale && t.amount <= 0 {
		return skip("sale amount must be positive")
	}

	reward, err := s.rewards.resolve(ctx, program, enrollment, t.event)
	if err != nil {
		return nil, err
	}
	if reward == nil {
		return skip("no reward configured for " + string(t.event) + " events")
	}

	currency := strings.ToLower(t.currency)
	if currency == "" {
		currency = defaultCurrency
	}

	terms := SelectTerms(ctx, s.evaluator, reward, rules.RewardFact{
		CustomerEmail:   deref(t.customer.Email),
		CustomerCountry: deref(t.customer.Country),
		SaleAmount:      t.amount,
		SaleCurrency:    currency,
		ProductID:       deref(t.productID),
		PartnerCountry:  deref(partner.Country),
	}, log)

	first, err := s.commissions.FirstForCustomer(ctx, program.ID, partner.ID, t.customer.ID, t.typ)
	if err != nil {
		return nil, err
	}

	earnings := ComputeEarnings(terms, t.quantity, t.amount, first, s.now())
	if earnings <= 0 {
		return skip("reward produced no earnings")
	}

	commission, err := s.commissions.Create(ctx, &model.Commission{
		ID:            model.NewID(model.PrefixCommission),
		ProgramID:     program.ID,
		PartnerID:     partner.ID,
		CustomerID:    customerID,
		CustomerEmail: t.customer.Email,
		LinkID:        enrollment.LinkID,
		InvoiceID:     t.invoiceID,
		EventID:       t.eventID,
		Type:          t.typ,
		Amount:        t.amount,
		Earnings:      earnings,
		Quantity:      max(t.quantity, 1),
		Currency:      currency,
		Status:        model.CommissionPending,
		Description:   t.description,
	})
	if err != nil {
		if sqlerr.IsUniqueViolation(err, uniqueCommissionInvoiceIdx) {
			return nil, errCommissionExists
		}
		return nil, err
	}

	s.fraud.RecordAll(ctx, program.ID, partner.ID, signals, &commission.ID, customerID)
	s.announce(ctx, program, partner, commission)
	return &model.TrackResponse{Commission: commission}, nil
}

func (s *CommissionService) enrollmentFor(ctx context.Context, programID string, partnerID, linkID *string) (*model.ProgramEnrollment, error) {
	if partnerID != nil {
		return s.enrollments.Get(ctx, programID, *partnerID)
	}
	return s.enrollments.GetByLink(ctx, programID, *linkID)
}

func (s *CommissionService) announce(ctx context.Context, program *model.Program, partner *model.Partner, c *model.Commission) {
	s.effects.webhook(ctx, program.WorkspaceID, model.WebhookCommissionCreated, c)
	s.effects.email(ctx, partner.Email, email.TemplateNewCommission, map[string]string{
		"PartnerName": partner.Name,
		"ProgramName": program.Name,
		"Earnings":    formatCents(c.Earnings, c.Currency),
		"Type":        string(c.Type),
	})
}

// Create records a commission with explicit earnings.
func (s *CommissionService) Create(ctx context.Context, actor model.Actor, req *model.CreateCommissionRequest) (*model.Commission, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if _, err := approvedEnrollment(ctx, s.enrollments, program.ID, req.PartnerID); err != nil {
		return nil, err
	}

	currency := strings.ToLower(req.Currency)
	if currency == "" {
		currency = defaultCurrency
	}

	c, err := s.commissions.Create(ctx, &model.Commission{
		ID:          model.NewID(model.PrefixCommission),
		ProgramID:   program.ID,
		PartnerID:   req.PartnerID,
		CustomerID:  req.CustomerID,
		InvoiceID:   req.InvoiceID,
		Type:        req.Type,
		Amount:      req.Amount,
		Earnings:    req.Earnings,
		Quantity:    1,
		Currency:    currency,
		Status:      model.CommissionPending,
		Description: req.Description,
	})
	if err != nil {
		if sqlerr.IsUniqueViolation(err, uniqueCommissionInvoiceIdx) {
			return nil, errCommissionExists
		}
		return nil, err
	}

	if partner, err := s.partners.GetByID(ctx, c.PartnerID); err == nil {
		s.announce(ctx, program, partner, c)
	}
	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "commission.created",
		TargetType: "commission", TargetID: c.ID,
	})
	return c, nil
}

// Update edits amount, earnings or description of a pending commission.
func (s *CommissionService) Update(ctx context.Context, actor model.Actor, req *model.UpdateCommissionRequest) (*model.Commission, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	c, err := s.commissions.GetByID(ctx, req.ProgramID, req.CommissionID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.CommissionPending {
		return nil, errs.NewUnprocessableError("Only pending commissions can be edited", errs.Code("COMMISSION_NOT_PENDING"))
	}

	if req.Amount != nil {
		c.Amount = *req.Amount
	}
	if req.Earnings != nil {
		c.Earnings = *req.Earnings
	}
	if req.Description != nil {
		c.Description = req.Description
	}

	updated, err := s.commissions.Update(ctx, c, model.CommissionPending)
	if err != nil {
		return nil, conflictOnStale(err, "Commission changed status concurrently", "COMMISSION_CHANGED")
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: "commission.updated",
		TargetType: "commission", TargetID: c.ID,
	})
	return updated, nil
}

func (s *CommissionService) MarkDuplicate(ctx context.Context, actor model.Actor, req *model.CommissionRef) (*model.Commission, error) {
	return s.settle(ctx, actor, req, model.CommissionDuplicate, model.PayableCommissionStatuses, "commission.marked_duplicate")
}

func (s *CommissionService) MarkFraud(ctx context.Context, actor model.Actor, req *model.CommissionRef) (*model.Commission, error) {
	return s.settle(ctx, actor, req, model.CommissionFraud, model.PayableCommissionStatuses, "commission.marked_fraud")
}

// Refund applies to sale commissions only.
func (s *CommissionService) Refund(ctx context.Context, actor model.Actor, req *model.CommissionRef) (*model.Commission, error) {
	return s.settle(ctx, actor, req, model.CommissionRefunded,
		[]model.CommissionStatus{model.CommissionPending, model.CommissionProcessed, model.CommissionPaid},
		"commission.refunded")
}

// settle moves a commission out of the payable pool and brings a pending
// payout that carried it back in line with what remains.
func (s *CommissionService) settle(ctx context.Context, actor model.Actor, req *model.CommissionRef, to model.CommissionStatus, from []model.CommissionStatus, action string) (*model.Commission, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	c, err := s.commissions.GetByID(ctx, req.ProgramID, req.CommissionID)
	if err != nil {
		return nil, err
	}
	if to == model.CommissionRefunded && c.Type != model.CommissionTypeSale {
		return nil, errs.NewUnprocessableError("Only sale commissions can be refunded", errs.Code("COMMISSION_NOT_REFUNDABLE"))
	}
	if !slices.Contains(from, c.Status) {
		return nil, invalidTransition("commission", c.Status, to)
	}

	var updated *model.Commission
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		current := c.Status
		c.Status = to
		updated, err = s.commissions.Update(ctx, c, current)
		if err != nil {
			return conflictOnStale(err, "Commission changed status concurrently", "COMMISSION_CHANGED")
		}
		if updated.PayoutID == nil {
			return nil
		}
		return s.recomputePayout(ctx, req.ProgramID, *updated.PayoutID)
	})
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: req.ProgramID, Action: action,
		TargetType: "commission", TargetID: c.ID,
	})
	return updated, nil
}

// recomputePayout resets a pending payout's amount to the earnings still
// payable through it, deleting the payout when nothing is left. Payouts
// that already left pending are not touched.
func (s *CommissionService) recomputePayout(ctx context.Context, programID, payoutID string) error {
	p, err := s.payouts.GetByID(ctx, programID, payoutID)
	if err != nil {
		return err
	}
	if p.Status != model.PayoutPending {
		return nil
	}

	sum, n, err := s.commissions.SumPayable(ctx, p.ID)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.payouts.Delete(ctx, p.ID)
	}

	p.Amount = sum
	_, err = s.payouts.UpdateAmount(ctx, p)
	return conflictOnStale(err, "Payout changed status concurrently", "PAYOUT_CHANGED")
}

func (s *CommissionService) List(ctx context.Context, actor model.Actor, req *model.ListCommissionsRequest) (*model.PaginatedResponse[model.Commission], error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	items, total, err := s.commissions.List(ctx, req.Filter())
	if err != nil {
		return nil, err
	}
	return model.NewPaginatedResponse(items, req.Pagination, total), nil
}

func (s *CommissionService) Get(ctx context.Context, actor model.Actor, req *model.CommissionRef) (*model.Commission, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	return s.commissions.GetByID(ctx, req.ProgramID, req.CommissionID)
}

// formatCents renders 1234 usd as "12.34 USD".
func formatCents(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + strings.ToUpper(currency)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
