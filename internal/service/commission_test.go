package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/repository"
)

type commissionFixture struct {
	svc         *CommissionService
	fx          testEffects
	tx          *passthroughTx
	commissions *commissionStoreMock
	payouts     *payoutStoreMock
	deleted     []string
	amounts     map[string]int64
}

func newCommissionFixture(c *model.Commission, payout *model.Payout, remaining int64, remainingCount int) *commissionFixture {
	f := &commissionFixture{fx: newTestEffects(), tx: &passthroughTx{}, amounts: map[string]int64{}}

	f.commissions = &commissionStoreMock{
		getByID: func(programID, id string) (*model.Commission, error) {
			if id != c.ID {
				return nil, missing("commissions")
			}
			cp := *c
			return &cp, nil
		},
		update: func(updated *model.Commission, from []model.CommissionStatus) (*model.Commission, error) {
			if len(from) != 1 || from[0] != c.Status {
				return nil, repository.ErrStatusChanged
			}
			cp := *updated
			return &cp, nil
		},
		sumPayable: func(string) (int64, int, error) {
			return remaining, remainingCount, nil
		},
	}

	f.payouts = &payoutStoreMock{
		getByID: func(_, id string) (*model.Payout, error) {
			if payout == nil || payout.ID != id {
				return nil, missing("payouts")
			}
			cp := *payout
			return &cp, nil
		},
		delete: func(id string) error {
			f.deleted = append(f.deleted, id)
			return nil
		},
		updateAmount: func(p *model.Payout) (*model.Payout, error) {
			f.amounts[p.ID] = p.Amount
			return p, nil
		},
	}

	programs := newTestPrograms(f.fx.effects, testProgram())
	f.svc = NewCommissionService(programs, newPartnerStore(), enrollmentsWith(), f.commissions, f.payouts, nil, nil, nil, f.tx, f.fx.effects, &testLogger)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func saleCommission(status model.CommissionStatus, payoutID *string) *model.Commission {
	return &model.Commission{
		ID:        "cm_1",
		ProgramID: "prog_1",
		PartnerID: "pn_1",
		PayoutID:  payoutID,
		Type:      model.CommissionTypeSale,
		Amount:    10000,
		Earnings:  1000,
		Currency:  "usd",
		Status:    status,
	}
}

func TestMarkFraudDeletesEmptiedPayout(t *testing.T) {
	payout := &model.Payout{ID: "po_1", ProgramID: "prog_1", PartnerID: "pn_1", Amount: 1000, Status: model.PayoutPending}
	f := newCommissionFixture(saleCommission(model.CommissionPending, &payout.ID), payout, 0, 0)

	got, err := f.svc.MarkFraud(context.Background(), testActor, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	require.NoError(t, err)

	assert.Equal(t, model.CommissionFraud, got.Status)
	assert.Equal(t, []string{"po_1"}, f.deleted)
	assert.Empty(t, f.amounts)
	assert.Equal(t, 1, f.tx.calls)
	assert.Equal(t, []string{"commission.marked_fraud"}, f.fx.audit.actions())
}

func TestMarkDuplicateShrinksPayout(t *testing.T) {
	payout := &model.Payout{ID: "po_1", ProgramID: "prog_1", PartnerID: "pn_1", Amount: 3000, Status: model.PayoutPending}
	f := newCommissionFixture(saleCommission(model.CommissionPending, &payout.ID), payout, 2000, 2)

	_, err := f.svc.MarkDuplicate(context.Background(), testActor, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	require.NoError(t, err)

	assert.Empty(t, f.deleted)
	assert.Equal(t, map[string]int64{"po_1": 2000}, f.amounts)
}

func TestRefundPaidCommissionLeavesSettledPayoutAlone(t *testing.T) {
	payout := &model.Payout{ID: "po_1", ProgramID: "prog_1", PartnerID: "pn_1", Amount: 1000, Status: model.PayoutCompleted}
	f := newCommissionFixture(saleCommission(model.CommissionPaid, &payout.ID), payout, 0, 0)

	got, err := f.svc.Refund(context.Background(), testActor, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	require.NoError(t, err)

	assert.Equal(t, model.CommissionRefunded, got.Status)
	assert.Empty(t, f.deleted)
	assert.Empty(t, f.amounts)
}

func TestRefundRejectsNonSaleCommissions(t *testing.T) {
	lead := saleCommission(model.CommissionPending, nil)
	lead.Type = model.CommissionTypeLead
	f := newCommissionFixture(lead, nil, 0, 0)

	_, err := f.svc.Refund(context.Background(), testActor, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "COMMISSION_NOT_REFUNDABLE")
	assert.Zero(t, f.tx.calls)
}

func TestSettleRejectsFinalStatuses(t *testing.T) {
	f := newCommissionFixture(saleCommission(model.CommissionCanceled, nil), nil, 0, 0)

	_, err := f.svc.MarkFraud(context.Background(), testActor, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION")
}

func TestSettleReportsLostRace(t *testing.T) {
	f := newCommissionFixture(saleCommission(model.CommissionPending, nil), nil, 0, 0)
	f.commissions.update = func(*model.Commission, []model.CommissionStatus) (*model.Commission, error) {
		return nil, repository.ErrStatusChanged
	}

	_, err := f.svc.MarkDuplicate(context.Background(), testActor, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	requireHTTPError(t, err, http.StatusConflict, "COMMISSION_CHANGED")
	assert.Empty(t, f.fx.audit.entries)
}

func TestCommissionsOfOtherWorkspacesAreHidden(t *testing.T) {
	f := newCommissionFixture(saleCommission(model.CommissionPending, nil), nil, 0, 0)
	stranger := model.Actor{UserID: "user_2", WorkspaceID: "ws_2", Role: model.RoleOwner}

	_, err := f.svc.Get(context.Background(), stranger, &model.CommissionRef{ProgramID: "prog_1", CommissionID: "cm_1"})
	requireHTTPError(t, err, http.StatusNotFound, "")
}

func TestUpdateOnlyTouchesPendingCommissions(t *testing.T) {
	f := newCommissionFixture(saleCommission(model.CommissionProcessed, nil), nil, 0, 0)

	_, err := f.svc.Update(context.Background(), testActor, &model.UpdateCommissionRequest{
		ProgramID:    "prog_1",
		CommissionID: "cm_1",
		Earnings:     ptr(int64(5)),
	})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "COMMISSION_NOT_PENDING")
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "12.34 USD", formatCents(1234, "usd"))
	assert.Equal(t, "0.05 EUR", formatCents(5, "eur"))
}
