package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/repository"
)

// Store mocks embed their interface so only the methods a test sets are
// implemented; calling anything else panics on the nil embed.

var (
	testLogger = zerolog.Nop()
	testNow    = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	testActor  = model.Actor{UserID: "user_1", WorkspaceID: "ws_1", Role: model.RoleOwner}
)

func missing(table string) error {
	return fmt.Errorf("table:%s: %w", table, pgx.ErrNoRows)
}

// requireHTTPError asserts err is an HTTPError with status and, when given,
// code.
func requireHTTPError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected HTTPError, got %v", err)
	assert.Equal(t, status, httpErr.Status)
	if code != "" {
		assert.Equal(t, code, httpErr.Code)
	}
}

type passthroughTx struct{ calls int }

func (t *passthroughTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type recordingEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (e *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	if e.err != nil {
		return nil, e.err
	}
	return &asynq.TaskInfo{ID: fmt.Sprintf("task_%d", len(e.tasks)), Type: task.Type()}, nil
}

func (e *recordingEnqueuer) types() []string {
	out := make([]string, len(e.tasks))
	for i, t := range e.tasks {
		out[i] = t.Type()
	}
	return out
}

type recordingDispatcher struct {
	events []model.WebhookEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, _ string, event model.WebhookEvent, _ any) {
	d.events = append(d.events, event)
}

type recordingAudit struct {
	entries []AuditEntry
}

func (a *recordingAudit) Record(_ context.Context, entry AuditEntry) {
	a.entries = append(a.entries, entry)
}

func (a *recordingAudit) actions() []string {
	out := make([]string, len(a.entries))
	for i, e := range a.entries {
		out[i] = e.Action
	}
	return out
}

type testEffects struct {
	*effects
	jobs     *recordingEnqueuer
	webhooks *recordingDispatcher
	audit    *recordingAudit
}

func newTestEffects() testEffects {
	jobs := &recordingEnqueuer{}
	webhooks := &recordingDispatcher{}
	audit := &recordingAudit{}
	return testEffects{
		effects:  &effects{jobs: jobs, webhooks: webhooks, audit: audit, logger: &testLogger},
		jobs:     jobs,
		webhooks: webhooks,
		audit:    audit,
	}
}

type programStoreMock struct {
	ProgramStore
	programs map[string]*model.Program
}

func (m *programStoreMock) GetByID(_ context.Context, id string) (*model.Program, error) {
	p, ok := m.programs[id]
	if !ok {
		return nil, missing("programs")
	}
	cp := *p
	return &cp, nil
}

func (m *programStoreMock) GetBySlug(_ context.Context, slug string) (*model.Program, error) {
	for _, p := range m.programs {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, missing("programs")
}

func (m *programStoreMock) Update(_ context.Context, p *model.Program) (*model.Program, error) {
	if _, ok := m.programs[p.ID]; !ok {
		return nil, missing("programs")
	}
	cp := *p
	m.programs[p.ID] = &cp
	return p, nil
}

func (m *programStoreMock) ListIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.programs))
	for id := range m.programs {
		ids = append(ids, id)
	}
	return ids, nil
}

// nopCache always misses.
type nopCache struct{}

func (nopCache) GetByID(context.Context, string) (*model.Program, error)   { return nil, nil }
func (nopCache) GetBySlug(context.Context, string) (*model.Program, error) { return nil, nil }
func (nopCache) Set(context.Context, *model.Program) error                 { return nil }
func (nopCache) Invalidate(context.Context, *model.Program) error          { return nil }

func newTestPrograms(fx *effects, programs ...*model.Program) *ProgramService {
	store := &programStoreMock{programs: map[string]*model.Program{}}
	for _, p := range programs {
		store.programs[p.ID] = p
	}
	return NewProgramService(store, &discountStoreMock{}, nopCache{}, nil, fx, &testLogger)
}

func testProgram() *model.Program {
	return &model.Program{
		ID:                "prog_1",
		WorkspaceID:       testActor.WorkspaceID,
		Name:              "Acme",
		Slug:              "acme",
		HoldingPeriodDays: 30,
		MinPayoutAmount:   1000,
		MessagingEnabled:  true,
		SupportEmail:      ptr("partners@acme.com"),
	}
}

type partnerStoreMock struct {
	PartnerStore
	partners map[string]*model.Partner
}

func (m *partnerStoreMock) GetByID(_ context.Context, id string) (*model.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return nil, missing("partners")
	}
	return p, nil
}

func (m *partnerStoreMock) GetByUserID(_ context.Context, userID string) (*model.Partner, error) {
	for _, p := range m.partners {
		if p.UserID != nil && *p.UserID == userID {
			return p, nil
		}
	}
	return nil, missing("partners")
}

func (m *partnerStoreMock) GetByEmail(_ context.Context, email string) (*model.Partner, error) {
	for _, p := range m.partners {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, missing("partners")
}

func (m *partnerStoreMock) Create(_ context.Context, p *model.Partner) (*model.Partner, error) {
	m.partners[p.ID] = p
	return p, nil
}

func (m *partnerStoreMock) LinkUser(_ context.Context, id, userID string) (*model.Partner, error) {
	p, ok := m.partners[id]
	if !ok {
		return nil, missing("partners")
	}
	p.UserID = &userID
	return p, nil
}

func newPartnerStore(partners ...*model.Partner) *partnerStoreMock {
	m := &partnerStoreMock{partners: map[string]*model.Partner{}}
	for _, p := range partners {
		m.partners[p.ID] = p
	}
	return m
}

type rewardStoreMock struct {
	RewardStore
	rewards map[string]*model.Reward
}

func (m *rewardStoreMock) GetByID(_ context.Context, programID, id string) (*model.Reward, error) {
	r, ok := m.rewards[id]
	if !ok || r.ProgramID != programID {
		return nil, missing("rewards")
	}
	return r, nil
}

func (m *rewardStoreMock) Create(_ context.Context, r *model.Reward) (*model.Reward, error) {
	if m.rewards == nil {
		m.rewards = map[string]*model.Reward{}
	}
	m.rewards[r.ID] = r
	return r, nil
}

type discountStoreMock struct {
	DiscountStore
	discounts map[string]*model.Discount
}

func (m *discountStoreMock) GetByID(_ context.Context, programID, id string) (*model.Discount, error) {
	d, ok := m.discounts[id]
	if !ok || d.ProgramID != programID {
		return nil, missing("discounts")
	}
	return d, nil
}

func (m *discountStoreMock) Create(_ context.Context, d *model.Discount) (*model.Discount, error) {
	if m.discounts == nil {
		m.discounts = map[string]*model.Discount{}
	}
	m.discounts[d.ID] = d
	return d, nil
}

func (m *discountStoreMock) Delete(ctx context.Context, programID, id string) error {
	if _, err := m.GetByID(ctx, programID, id); err != nil {
		return err
	}
	delete(m.discounts, id)
	return nil
}

type enrollmentStoreMock struct {
	EnrollmentStore
	create                func(e *model.ProgramEnrollment) (*model.ProgramEnrollment, error)
	get                   func(programID, partnerID string) (*model.ProgramEnrollment, error)
	update                func(e *model.ProgramEnrollment, from []model.EnrollmentStatus) (*model.ProgramEnrollment, error)
	listApprovedElsewhere func(partnerID, programID string) ([]model.ProgramEnrollment, error)
	listApprovedIDs       func(programID string) ([]string, error)
}

func (m *enrollmentStoreMock) Create(_ context.Context, e *model.ProgramEnrollment) (*model.ProgramEnrollment, error) {
	return m.create(e)
}

func (m *enrollmentStoreMock) Get(_ context.Context, programID, partnerID string) (*model.ProgramEnrollment, error) {
	return m.get(programID, partnerID)
}

func (m *enrollmentStoreMock) Update(_ context.Context, e *model.ProgramEnrollment, from ...model.EnrollmentStatus) (*model.ProgramEnrollment, error) {
	return m.update(e, from)
}

func (m *enrollmentStoreMock) ListApprovedElsewhere(_ context.Context, partnerID, programID string) ([]model.ProgramEnrollment, error) {
	if m.listApprovedElsewhere == nil {
		return nil, nil
	}
	return m.listApprovedElsewhere(partnerID, programID)
}

func (m *enrollmentStoreMock) ListApprovedPartnerIDs(_ context.Context, programID string) ([]string, error) {
	return m.listApprovedIDs(programID)
}

// enrollmentsWith serves fixed enrollments keyed by partner id.
func enrollmentsWith(enrollments ...*model.ProgramEnrollment) *enrollmentStoreMock {
	return &enrollmentStoreMock{
		get: func(programID, partnerID string) (*model.ProgramEnrollment, error) {
			for _, e := range enrollments {
				if e.ProgramID == programID && e.PartnerID == partnerID {
					cp := *e
					return &cp, nil
				}
			}
			return nil, missing("program_enrollments")
		},
	}
}

type commissionStoreMock struct {
	CommissionStore
	getByID          func(programID, id string) (*model.Commission, error)
	create           func(c *model.Commission) (*model.Commission, error)
	update           func(c *model.Commission, from []model.CommissionStatus) (*model.Commission, error)
	cancelForBan     func(programID, partnerID string) (int64, error)
	listDue          func(programID string, cutoff time.Time) ([]model.Commission, error)
	attachToPayout   func(payoutID string, ids []string) (int64, error)
	sumPayable       func(payoutID string) (int64, int, error)
	markPaidByPayout func(payoutID string) (int64, error)
	totals           func(programID, partnerID string, since time.Time) (model.PartnerTotals, error)
	existsForEvent   func(programID, eventID string) (bool, error)
	firstForCustomer func(programID, partnerID, customerID string, typ model.CommissionType) (*time.Time, error)
	detachFromPayout func(payoutID string) (int64, error)
}

func (m *commissionStoreMock) GetByID(_ context.Context, programID, id string) (*model.Commission, error) {
	return m.getByID(programID, id)
}

func (m *commissionStoreMock) Create(_ context.Context, c *model.Commission) (*model.Commission, error) {
	return m.create(c)
}

func (m *commissionStoreMock) Update(_ context.Context, c *model.Commission, from ...model.CommissionStatus) (*model.Commission, error) {
	return m.update(c, from)
}

func (m *commissionStoreMock) CancelForBan(_ context.Context, programID, partnerID string) (int64, error) {
	return m.cancelForBan(programID, partnerID)
}

func (m *commissionStoreMock) ListDue(_ context.Context, programID string, cutoff time.Time) ([]model.Commission, error) {
	return m.listDue(programID, cutoff)
}

func (m *commissionStoreMock) AttachToPayout(_ context.Context, payoutID string, ids []string) (int64, error) {
	return m.attachToPayout(payoutID, ids)
}

func (m *commissionStoreMock) SumPayable(_ context.Context, payoutID string) (int64, int, error) {
	return m.sumPayable(payoutID)
}

func (m *commissionStoreMock) MarkPaidByPayout(_ context.Context, payoutID string) (int64, error) {
	return m.markPaidByPayout(payoutID)
}

func (m *commissionStoreMock) ExistsForEvent(_ context.Context, programID, eventID string) (bool, error) {
	return m.existsForEvent(programID, eventID)
}

func (m *commissionStoreMock) FirstForCustomer(_ context.Context, programID, partnerID, customerID string, typ model.CommissionType) (*time.Time, error) {
	return m.firstForCustomer(programID, partnerID, customerID, typ)
}

func (m *commissionStoreMock) DetachFromPayout(_ context.Context, payoutID string) (int64, error) {
	return m.detachFromPayout(payoutID)
}

func (m *commissionStoreMock) Totals(_ context.Context, programID, partnerID string, since time.Time) (model.PartnerTotals, error) {
	return m.totals(programID, partnerID, since)
}

type payoutStoreMock struct {
	PayoutStore
	getByID              func(programID, id string) (*model.Payout, error)
	getPendingForPartner func(programID, partnerID, currency string) (*model.Payout, error)
	create               func(p *model.Payout) (*model.Payout, error)
	updateAmount         func(p *model.Payout) (*model.Payout, error)
	transition           func(id string, t repository.PayoutTransition) (*model.Payout, error)
	delete               func(id string) error
	cancelPending        func(programID, partnerID string) (int64, error)
	listConfirmable      func(programID string, minAmount int64, include, exclude []string) ([]model.Payout, error)
	assignInvoice        func(ids []string, invoiceID string) (int64, error)
	listByInvoice        func(invoiceID string) ([]model.Payout, error)
}

func (m *payoutStoreMock) GetByID(_ context.Context, programID, id string) (*model.Payout, error) {
	return m.getByID(programID, id)
}

func (m *payoutStoreMock) GetPendingForPartner(_ context.Context, programID, partnerID, currency string) (*model.Payout, error) {
	return m.getPendingForPartner(programID, partnerID, currency)
}

func (m *payoutStoreMock) Create(_ context.Context, p *model.Payout) (*model.Payout, error) {
	return m.create(p)
}

func (m *payoutStoreMock) UpdateAmount(_ context.Context, p *model.Payout) (*model.Payout, error) {
	return m.updateAmount(p)
}

func (m *payoutStoreMock) Transition(_ context.Context, id string, t repository.PayoutTransition) (*model.Payout, error) {
	return m.transition(id, t)
}

func (m *payoutStoreMock) Delete(_ context.Context, id string) error {
	return m.delete(id)
}

func (m *payoutStoreMock) CancelPendingForPartner(_ context.Context, programID, partnerID string) (int64, error) {
	return m.cancelPending(programID, partnerID)
}

func (m *payoutStoreMock) ListConfirmable(_ context.Context, programID string, minAmount int64, include, exclude []string) ([]model.Payout, error) {
	return m.listConfirmable(programID, minAmount, include, exclude)
}

func (m *payoutStoreMock) AssignInvoice(_ context.Context, ids []string, invoiceID string) (int64, error) {
	return m.assignInvoice(ids, invoiceID)
}

func (m *payoutStoreMock) ListByInvoice(_ context.Context, invoiceID string) ([]model.Payout, error) {
	return m.listByInvoice(invoiceID)
}

type invoiceStoreMock struct {
	InvoiceStore
	create       func(inv *model.Invoice) (*model.Invoice, error)
	getByID      func(id string) (*model.Invoice, error)
	updateStatus func(id string, status model.InvoiceStatus) (*model.Invoice, error)
}

func (m *invoiceStoreMock) Create(_ context.Context, inv *model.Invoice) (*model.Invoice, error) {
	return m.create(inv)
}

func (m *invoiceStoreMock) GetByID(_ context.Context, id string) (*model.Invoice, error) {
	return m.getByID(id)
}

func (m *invoiceStoreMock) UpdateStatus(_ context.Context, id string, status model.InvoiceStatus) (*model.Invoice, error) {
	return m.updateStatus(id, status)
}

// fraudStoreMock keeps groups in memory, one pending group per
// program, partner and type.
type fraudStoreMock struct {
	FraudStore
	groups             map[string]*model.FraudEventGroup
	events             []model.FraudEvent
	resolvedForPartner []string
}

func newFraudStore() *fraudStoreMock {
	return &fraudStoreMock{groups: map[string]*model.FraudEventGroup{}}
}

func (m *fraudStoreMock) UpsertGroup(_ context.Context, programID, partnerID string, typ model.FraudRuleType) (*model.FraudEventGroup, error) {
	key := programID + "/" + partnerID + "/" + string(typ)
	g, ok := m.groups[key]
	if !ok {
		g = &model.FraudEventGroup{
			ID:        "frg_" + key,
			ProgramID: programID,
			PartnerID: partnerID,
			Type:      typ,
			Status:    model.FraudGroupPending,
		}
		m.groups[key] = g
	}
	g.EventCount++
	return g, nil
}

func (m *fraudStoreMock) CreateEvent(_ context.Context, e *model.FraudEvent) (*model.FraudEvent, error) {
	m.events = append(m.events, *e)
	return e, nil
}

func (m *fraudStoreMock) GetGroup(_ context.Context, programID, id string) (*model.FraudEventGroup, error) {
	for _, g := range m.groups {
		if g.ID == id && g.ProgramID == programID {
			return g, nil
		}
	}
	return nil, missing("fraud_event_groups")
}

func (m *fraudStoreMock) ResolvePendingForPartner(_ context.Context, programID, partnerID, _, _ string) (int64, error) {
	m.resolvedForPartner = append(m.resolvedForPartner, programID+"/"+partnerID)
	var n int64
	for _, g := range m.groups {
		if g.ProgramID == programID && g.PartnerID == partnerID && g.Status == model.FraudGroupPending {
			g.Status = model.FraudGroupResolved
			n++
		}
	}
	return n, nil
}

func (m *fraudStoreMock) groupTypes(programID, partnerID string) []model.FraudRuleType {
	var out []model.FraudRuleType
	for _, g := range m.groups {
		if g.ProgramID == programID && g.PartnerID == partnerID {
			out = append(out, g.Type)
		}
	}
	return out
}

type bountyStoreMock struct {
	BountyStore
	getByID               func(programID, id string) (*model.Bounty, error)
	getSubmission         func(bountyID, id string) (*model.BountySubmission, error)
	review                func(s *model.BountySubmission) (*model.BountySubmission, error)
	hasSubmission         func(bountyID, partnerID string) (bool, error)
	createSubmission      func(s *model.BountySubmission) (*model.BountySubmission, error)
	listActivePerformance func(now time.Time) ([]model.Bounty, error)
}

func (m *bountyStoreMock) GetByID(_ context.Context, programID, id string) (*model.Bounty, error) {
	return m.getByID(programID, id)
}

func (m *bountyStoreMock) GetSubmission(_ context.Context, bountyID, id string) (*model.BountySubmission, error) {
	return m.getSubmission(bountyID, id)
}

func (m *bountyStoreMock) Review(_ context.Context, s *model.BountySubmission) (*model.BountySubmission, error) {
	return m.review(s)
}

func (m *bountyStoreMock) HasSubmission(_ context.Context, bountyID, partnerID string) (bool, error) {
	return m.hasSubmission(bountyID, partnerID)
}

func (m *bountyStoreMock) CreateSubmission(_ context.Context, s *model.BountySubmission) (*model.BountySubmission, error) {
	return m.createSubmission(s)
}

func (m *bountyStoreMock) ListActivePerformance(_ context.Context, now time.Time) ([]model.Bounty, error) {
	return m.listActivePerformance(now)
}

type messageStoreMock struct {
	MessageStore
	created        []model.Message
	unnotified     []model.Message
	emailed        []string
	markReadCalled []model.MessageDirection
}

func (m *messageStoreMock) Create(_ context.Context, msg *model.Message) (*model.Message, error) {
	msg.CreatedAt = testNow
	m.created = append(m.created, *msg)
	return msg, nil
}

func (m *messageStoreMock) MarkRead(_ context.Context, _, _ string, direction model.MessageDirection) (int64, error) {
	m.markReadCalled = append(m.markReadCalled, direction)
	return 2, nil
}

func (m *messageStoreMock) ListUnnotified(context.Context, string, string, model.MessageDirection) ([]model.Message, error) {
	return m.unnotified, nil
}

func (m *messageStoreMock) MarkEmailed(_ context.Context, ids []string) (int64, error) {
	m.emailed = append(m.emailed, ids...)
	return int64(len(ids)), nil
}

type webhookStoreMock struct {
	WebhookStore
	webhook       *model.Webhook
	failures      int
	successCalls  int
	maxFailuresIn int
}

func (m *webhookStoreMock) GetByID(_ context.Context, id string) (*model.Webhook, error) {
	if m.webhook == nil || m.webhook.ID != id {
		return nil, missing("webhooks")
	}
	return m.webhook, nil
}

func (m *webhookStoreMock) RecordSuccess(context.Context, string) error {
	m.successCalls++
	m.webhook.ConsecutiveFailures = 0
	return nil
}

func (m *webhookStoreMock) RecordFailure(_ context.Context, _ string, maxFailures int) (*model.Webhook, error) {
	m.failures++
	m.maxFailuresIn = maxFailures
	m.webhook.ConsecutiveFailures++
	if m.webhook.ConsecutiveFailures >= maxFailures {
		m.webhook.DisabledAt = &testNow
	}
	return m.webhook, nil
}

type senderFunc func(ctx context.Context, url, secret string, event model.WebhookEvent, body []byte) error

func (f senderFunc) Send(ctx context.Context, url, secret string, event model.WebhookEvent, body []byte) error {
	return f(ctx, url, secret, event, body)
}
