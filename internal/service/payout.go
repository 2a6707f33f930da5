package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/deppfellow/partners/internal/config"
	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/repository"
)

// PayoutProvider moves money to a partner.
type PayoutProvider interface {
	Send(ctx context.Context, payout *model.Payout, partner *model.Partner) error
}

// LocalPayoutProvider accepts every payout without contacting a processor.
type LocalPayoutProvider struct {
	logger *zerolog.Logger
}

func NewLocalPayoutProvider(logger *zerolog.Logger) *LocalPayoutProvider {
	return &LocalPayoutProvider{logger: logger}
}

func (p *LocalPayoutProvider) Send(ctx context.Context, payout *model.Payout, partner *model.Partner) error {
	if partner.PayoutsEnabledAt == nil {
		return errors.New("partner has no payout method")
	}
	logger.FromContext(ctx, p.logger).Info().
		Str("payout_id", payout.ID).
		Str("partner_id", partner.ID).
		Int64("amount", payout.Amount).
		Msg("payout sent")
	return nil
}

type PayoutService struct {
	programs    *ProgramService
	partners    PartnerStore
	commissions CommissionStore
	payouts     PayoutStore
	invoices    InvoiceStore
	provider    PayoutProvider
	tx          Transactor
	effects     *effects
	cfg         *config.PayoutsConfig
	logger      *zerolog.Logger
	now         func() time.Time
}

func NewPayoutService(
	programs *ProgramService,
	partners PartnerStore,
	commissions CommissionStore,
	payouts PayoutStore,
	invoices InvoiceStore,
	provider PayoutProvider,
	tx Transactor,
	fx *effects,
	cfg *config.PayoutsConfig,
	logger *zerolog.Logger,
) *PayoutService {
	return &PayoutService{
		programs:    programs,
		partners:    partners,
		commissions: commissions,
		payouts:     payouts,
		invoices:    invoices,
		provider:    provider,
		tx:          tx,
		effects:     fx,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// AggregateDueCommissions collects commissions past their holding period
// into one pending payout per partner. An empty programID covers every
// program. Failures of one partner do not stop the others.
func (s *PayoutService) AggregateDueCommissions(ctx context.Context, programID string) error {
	ids := []string{programID}
	if programID == "" {
		var err error
		if ids, err = s.programs.ListIDs(ctx); err != nil {
			return err
		}
	}

	var failures []error
	for _, id := range ids {
		if err := s.aggregateProgram(ctx, id); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func (s *PayoutService) aggregateProgram(ctx context.Context, programID string) error {
	log := logger.FromContext(ctx, s.logger).With().Str("program_id", programID).Logger()

	program, err := s.programs.ByID(ctx, programID)
	if err != nil {
		return err
	}

	cutoff := s.now().AddDate(0, 0, -program.HoldingPeriodDays)
	due, err := s.commissions.ListDue(ctx, program.ID, cutoff)
	if err != nil {
		return err
	}

	var failures []error
	for _, group := range groupByPayee(due) {
		if err := s.aggregatePartner(ctx, program, group); err != nil {
			log.Error().Err(err).Str("partner_id", group[0].PartnerID).Msg("failed to aggregate partner commissions")
			failures = append(failures, err)
		}
	}

	if len(due) > 0 {
		log.Info().Int("commissions", len(due)).Msg("aggregated due commissions")
	}
	return errors.Join(failures...)
}

// commissionCurrency is the currency a commission is paid out in.
func commissionCurrency(c model.Commission) string {
	if c.Currency == "" {
		return defaultCurrency
	}
	return c.Currency
}

// groupByPayee splits commissions into runs of one partner and currency,
// keeping the order of first appearance. A payout never mixes currencies.
func groupByPayee(commissions []model.Commission) [][]model.Commission {
	type payee struct{ partnerID, currency string }
	index := map[payee]int{}
	var groups [][]model.Commission
	for _, c := range commissions {
		key := payee{c.PartnerID, commissionCurrency(c)}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], c)
	}
	return groups
}

func (s *PayoutService) aggregatePartner(ctx context.Context, program *model.Program, due []model.Commission) error {
	partnerID := due[0].PartnerID
	currency := commissionCurrency(due[0])

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		payout, err := s.payouts.GetPendingForPartner(ctx, program.ID, partnerID, currency)
		if isNotFound(err) {
			payout, err = s.payouts.Create(ctx, &model.Payout{
				ID:        model.NewID(model.PrefixPayout),
				ProgramID: program.ID,
				PartnerID: partnerID,
				Currency:  currency,
				Status:    model.PayoutPending,
				Mode:      model.PayoutModeInternal,
			})
		}
		if err != nil {
			return err
		}

		ids := make([]string, len(due))
		for i, c := range due {
			ids[i] = c.ID
			payout.WidenPeriod(c.CreatedAt)
		}
		if _, err := s.commissions.AttachToPayout(ctx, payout.ID, ids); err != nil {
			return err
		}

		sum, _, err := s.commissions.SumPayable(ctx, payout.ID)
		if err != nil {
			return err
		}
		payout.Amount = sum
		_, err = s.payouts.UpdateAmount(ctx, payout)
		return err
	})
}

// ConfirmPayouts bills the workspace for the selected pending payouts and
// queues them for sending.
func (s *PayoutService) ConfirmPayouts(ctx context.Context, actor model.Actor, req *model.ConfirmPayoutsRequest) (*model.ConfirmPayoutsResponse, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	var (
		invoice *model.Invoice
		payouts []model.Payout
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		payouts, err = s.payouts.ListConfirmable(ctx, program.ID, program.MinPayoutAmount, req.PayoutIDs, req.ExcludedPayoutIDs)
		if err != nil {
			return err
		}
		if len(payouts) == 0 {
			return errs.NewBadRequestError("No payouts are eligible for confirmation", true, errs.Code("NO_PAYOUTS_TO_CONFIRM"), nil, nil)
		}

		var amount int64
		ids := make([]string, len(payouts))
		for i, p := range payouts {
			amount += p.Amount
			ids[i] = p.ID
		}
		fee := PayoutFee(amount, s.cfg.FeeBasisPoints)

		id := model.NewID(model.PrefixInvoice)
		invoice, err = s.invoices.Create(ctx, &model.Invoice{
			ID:          id,
			WorkspaceID: program.WorkspaceID,
			ProgramID:   program.ID,
			Number:      invoiceNumber(s.now(), id),
			Amount:      amount,
			Fee:         fee,
			Total:       amount + fee,
			Status:      model.InvoiceProcessing,
		})
		if err != nil {
			return err
		}

		_, err = s.payouts.AssignInvoice(ctx, ids, invoice.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range payouts {
		payouts[i].Status = model.PayoutProcessing
		payouts[i].InvoiceID = &invoice.ID
	}

	s.enqueueInvoice(ctx, invoice.ID)
	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "payouts.confirmed",
		TargetType: "invoice", TargetID: invoice.ID,
		Metadata: map[string]any{"payouts": len(payouts), "total": invoice.Total},
	})
	return &model.ConfirmPayoutsResponse{Invoice: invoice, Payouts: payouts}, nil
}

// PayoutFee is amount × bps / 10000, rounded half up.
func PayoutFee(amount int64, bps int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(bps)).
		Div(basisPoints).
		Round(0).
		IntPart()
}

func invoiceNumber(now time.Time, id string) string {
	return "INV-" + now.UTC().Format("20060102") + "-" + strings.ToUpper(id[len(id)-8:])
}

func (s *PayoutService) enqueueInvoice(ctx context.Context, invoiceID string) {
	task, err := job.NewProcessInvoiceTask(invoiceID)
	if err == nil {
		_, err = s.effects.jobs.EnqueueContext(ctx, task)
	}
	if err != nil {
		logger.FromContext(ctx, s.logger).Error().Err(err).Str("invoice_id", invoiceID).Msg("failed to enqueue invoice processing")
	}
}

// ProcessInvoice hands every processing payout of the invoice to the
// provider. The invoice completes when no payout failed.
func (s *PayoutService) ProcessInvoice(ctx context.Context, invoiceID string) error {
	log := logger.FromContext(ctx, s.logger).With().Str("invoice_id", invoiceID).Logger()

	invoice, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status != model.InvoiceProcessing {
		log.Info().Str("status", string(invoice.Status)).Msg("invoice already processed, skipping")
		return nil
	}

	program, err := s.programs.ByID(ctx, invoice.ProgramID)
	if err != nil {
		return err
	}

	payouts, err := s.payouts.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		return err
	}

	failed := 0
	for i := range payouts {
		p := &payouts[i]
		switch p.Status {
		case model.PayoutProcessing:
		case model.PayoutFailed:
			failed++
			continue
		default:
			continue
		}

		if err := s.sendPayout(ctx, program, p); err != nil {
			failed++
		}
	}

	status := model.InvoiceCompleted
	if failed > 0 {
		status = model.InvoiceFailed
	}
	if _, err := s.invoices.UpdateStatus(ctx, invoice.ID, status); err != nil {
		return err
	}

	log.Info().Int("payouts", len(payouts)).Int("failed", failed).Str("status", string(status)).Msg("invoice processed")
	return nil
}

// sendPayout returns an error only when the provider rejected the payout.
func (s *PayoutService) sendPayout(ctx context.Context, program *model.Program, p *model.Payout) error {
	log := logger.FromContext(ctx, s.logger).With().Str("payout_id", p.ID).Logger()

	partner, err := s.partners.GetByID(ctx, p.PartnerID)
	if err == nil {
		err = s.provider.Send(ctx, p, partner)
	}

	if err != nil {
		reason := err.Error()
		if _, terr := s.payouts.Transition(ctx, p.ID, repository.PayoutTransition{
			From:          []model.PayoutStatus{model.PayoutProcessing},
			To:            model.PayoutFailed,
			FailureReason: &reason,
		}); terr != nil {
			log.Error().Err(terr).Msg("failed to mark payout failed")
		}
		log.Warn().Err(err).Msg("payout failed")
		return err
	}

	sent, err := s.payouts.Transition(ctx, p.ID, repository.PayoutTransition{
		From: []model.PayoutStatus{model.PayoutProcessing},
		To:   model.PayoutSent,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to mark payout sent")
		return nil
	}

	s.effects.email(ctx, partner.Email, email.TemplatePayoutSent, payoutEmailData(program, partner, sent))
	return nil
}

func payoutEmailData(program *model.Program, partner *model.Partner, p *model.Payout) map[string]string {
	period := ""
	if p.PeriodStart != nil && p.PeriodEnd != nil {
		period = p.PeriodStart.Format("Jan 2, 2006") + " - " + p.PeriodEnd.Format("Jan 2, 2006")
	}
	return map[string]string{
		"PartnerName": partner.Name,
		"ProgramName": program.Name,
		"Amount":      formatCents(p.Amount, p.Currency),
		"Period":      period,
	}
}

// MarkPaid records a payout settled outside the platform.
func (s *PayoutService) MarkPaid(ctx context.Context, actor model.Actor, req *model.PayoutRef) (*model.Payout, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	p, err := s.payouts.GetByID(ctx, program.ID, req.PayoutID)
	if err != nil {
		return nil, err
	}
	from := []model.PayoutStatus{model.PayoutPending, model.PayoutProcessing}
	if p.Status != model.PayoutPending && p.Status != model.PayoutProcessing {
		return nil, invalidTransition("payout", p.Status, model.PayoutCompleted)
	}

	var paid *model.Payout
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		now := s.now()
		paid, err = s.payouts.Transition(ctx, p.ID, repository.PayoutTransition{
			From:   from,
			To:     model.PayoutCompleted,
			PaidAt: &now,
		})
		if err != nil {
			return conflictOnStale(err, "Payout changed status concurrently", "PAYOUT_CHANGED")
		}
		_, err = s.commissions.MarkPaidByPayout(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if partner, err := s.partners.GetByID(ctx, paid.PartnerID); err == nil {
		s.effects.email(ctx, partner.Email, email.TemplatePayoutSent, payoutEmailData(program, partner, paid))
	}
	s.effects.webhook(ctx, program.WorkspaceID, model.WebhookPayoutConfirmed, paid)
	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "payout.marked_paid",
		TargetType: "payout", TargetID: paid.ID,
	})
	return paid, nil
}

// RetryFailed puts a failed payout back into processing and queues its
// invoice again. A payout that is no longer failed is a conflict.
func (s *PayoutService) RetryFailed(ctx context.Context, actor model.Actor, req *model.PayoutRef) (*model.Payout, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	p, err := s.payouts.GetByID(ctx, program.ID, req.PayoutID)
	if err != nil {
		return nil, err
	}

	var retried *model.Payout
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		retried, err = s.payouts.Transition(ctx, p.ID, repository.PayoutTransition{
			From: []model.PayoutStatus{model.PayoutFailed},
			To:   model.PayoutProcessing,
		})
		if err != nil {
			return conflictOnStale(err, "Only failed payouts can be retried", "PAYOUT_NOT_FAILED")
		}
		if retried.InvoiceID == nil {
			return nil
		}
		_, err = s.invoices.UpdateStatus(ctx, *retried.InvoiceID, model.InvoiceProcessing)
		return err
	})
	if err != nil {
		return nil, err
	}

	if retried.InvoiceID != nil {
		s.enqueueInvoice(ctx, *retried.InvoiceID)
	}
	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "payout.retried",
		TargetType: "payout", TargetID: retried.ID,
	})
	return retried, nil
}

// Cancel cancels a pending payout and returns its commissions to the pool.
func (s *PayoutService) Cancel(ctx context.Context, actor model.Actor, req *model.PayoutRef) (*model.Payout, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}

	p, err := s.payouts.GetByID(ctx, program.ID, req.PayoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PayoutPending {
		return nil, invalidTransition("payout", p.Status, model.PayoutCanceled)
	}

	var canceled *model.Payout
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		canceled, err = s.payouts.Transition(ctx, p.ID, repository.PayoutTransition{
			From: []model.PayoutStatus{model.PayoutPending},
			To:   model.PayoutCanceled,
		})
		if err != nil {
			return conflictOnStale(err, "Payout changed status concurrently", "PAYOUT_CHANGED")
		}
		_, err = s.commissions.DetachFromPayout(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.effects.record(ctx, AuditEntry{
		Actor: actor, ProgramID: program.ID, Action: "payout.canceled",
		TargetType: "payout", TargetID: canceled.ID,
	})
	return canceled, nil
}

func (s *PayoutService) List(ctx context.Context, actor model.Actor, req *model.ListPayoutsRequest) (*model.PaginatedResponse[model.Payout], error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}

	items, total, err := s.payouts.List(ctx, req.Filter())
	if err != nil {
		return nil, err
	}
	return model.NewPaginatedResponse(items, req.Pagination, total), nil
}

func (s *PayoutService) Get(ctx context.Context, actor model.Actor, req *model.PayoutRef) (*model.Payout, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	return s.payouts.GetByID(ctx, req.ProgramID, req.PayoutID)
}
