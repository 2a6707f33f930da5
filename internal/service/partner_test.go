package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/repository"
)

type partnerFixture struct {
	svc         *PartnerService
	fx          testEffects
	partners    *partnerStoreMock
	enrollments *enrollmentStoreMock
	commissions *commissionStoreMock
	payouts     *payoutStoreMock
	fraud       *fraudStoreMock
	updates     []model.ProgramEnrollment
	created     []model.ProgramEnrollment
	canceled    []string
}

func newPartnerFixture(enrollments ...*model.ProgramEnrollment) *partnerFixture {
	f := &partnerFixture{fx: newTestEffects(), fraud: newFraudStore()}

	f.enrollments = enrollmentsWith(enrollments...)
	f.enrollments.update = func(e *model.ProgramEnrollment, from []model.EnrollmentStatus) (*model.ProgramEnrollment, error) {
		for _, orig := range enrollments {
			if orig.PartnerID == e.PartnerID && len(from) == 1 && orig.Status != from[0] {
				return nil, repository.ErrStatusChanged
			}
		}
		f.updates = append(f.updates, *e)
		cp := *e
		return &cp, nil
	}
	f.enrollments.create = func(e *model.ProgramEnrollment) (*model.ProgramEnrollment, error) {
		f.created = append(f.created, *e)
		cp := *e
		return &cp, nil
	}

	f.commissions = &commissionStoreMock{
		cancelForBan: func(_, partnerID string) (int64, error) {
			f.canceled = append(f.canceled, "commissions:"+partnerID)
			return 4, nil
		},
	}
	f.payouts = &payoutStoreMock{
		cancelPending: func(_, partnerID string) (int64, error) {
			f.canceled = append(f.canceled, "payouts:"+partnerID)
			return 1, nil
		},
	}

	tx := &passthroughTx{}
	programs := newTestPrograms(f.fx.effects, testProgram(), &model.Program{ID: "prog_2", WorkspaceID: "ws_2", Name: "Other"})
	f.partners = newPartnerStore(
		&model.Partner{ID: "pn_1", Name: "Jane", Email: "jane@example.com", UserID: ptr("user_jane")},
		&model.Partner{ID: "pn_2", Name: "Joe", Email: "joe@example.com"},
	)
	fraud := NewFraudService(programs, f.fraud, tx, f.fx.effects, &testLogger)

	f.svc = NewPartnerService(programs, f.partners, f.enrollments, f.commissions, f.payouts, fraud, f.fraud, tx, f.fx.effects, &testLogger)
	f.svc.now = func() time.Time { return testNow }
	return f
}

func enrollment(partnerID string, status model.EnrollmentStatus) *model.ProgramEnrollment {
	return &model.ProgramEnrollment{ID: "pge_" + partnerID, ProgramID: "prog_1", PartnerID: partnerID, Status: status}
}

func TestBanCancelsEarningsAndFlagsOtherPrograms(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentApproved))
	f.enrollments.listApprovedElsewhere = func(partnerID, programID string) ([]model.ProgramEnrollment, error) {
		return []model.ProgramEnrollment{{ProgramID: "prog_2", PartnerID: partnerID, Status: model.EnrollmentApproved}}, nil
	}
	f.fraud.UpsertGroup(context.Background(), "prog_1", "pn_1", model.FraudCustomerEmailMatch)

	got, err := f.svc.Ban(context.Background(), testActor, &model.BanPartnerRequest{
		ProgramID: "prog_1",
		PartnerID: "pn_1",
		Reason:    model.BanReasonFraud,
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentBanned, got.Status)
	require.NotNil(t, got.BannedAt)
	assert.Equal(t, testNow, *got.BannedAt)
	assert.Equal(t, model.BanReasonFraud, *got.BannedReason)

	assert.Equal(t, []string{"commissions:pn_1", "payouts:pn_1"}, f.canceled)
	assert.Equal(t, []string{"prog_1/pn_1"}, f.fraud.resolvedForPartner)
	assert.Equal(t, []model.FraudRuleType{model.FraudCrossProgramBan}, f.fraud.groupTypes("prog_2", "pn_1"))

	assert.Equal(t, []model.WebhookEvent{model.WebhookPartnerBanned}, f.fx.webhooks.events)
	assert.Equal(t, []string{job.TaskSendEmail}, f.fx.jobs.types())
	assert.Equal(t, []string{"partner.banned"}, f.fx.audit.actions())
}

func TestBanRejectsPendingApplications(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentPending))

	_, err := f.svc.Ban(context.Background(), testActor, &model.BanPartnerRequest{
		ProgramID: "prog_1",
		PartnerID: "pn_1",
		Reason:    model.BanReasonSpam,
	})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION")
	assert.Empty(t, f.canceled)
}

func TestBanFromResolvedFraudGroupConflicts(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentApproved))
	group, _ := f.fraud.UpsertGroup(context.Background(), "prog_1", "pn_1", model.FraudPaidTrafficDetected)
	group.Status = model.FraudGroupResolved

	_, err := f.svc.BanFromFraudGroup(context.Background(), testActor, &model.ResolveAndBanRequest{
		ProgramID: "prog_1",
		GroupID:   group.ID,
		Reason:    model.BanReasonFakeTraffic,
	})
	requireHTTPError(t, err, http.StatusConflict, "FRAUD_GROUP_ALREADY_RESOLVED")
}

func TestApproveIsAllOrNothing(t *testing.T) {
	f := newPartnerFixture(
		enrollment("pn_1", model.EnrollmentPending),
		enrollment("pn_2", model.EnrollmentBanned),
	)

	_, err := f.svc.Approve(context.Background(), testActor, &model.ApprovePartnersRequest{
		ProgramID:  "prog_1",
		PartnerIDs: []string{"pn_1", "pn_2"},
	})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION")
	assert.Empty(t, f.updates)
}

func TestApproveOnlyReviewsApplications(t *testing.T) {
	for _, status := range []model.EnrollmentStatus{
		model.EnrollmentBanned,
		model.EnrollmentArchived,
		model.EnrollmentDeactivated,
		model.EnrollmentApproved,
	} {
		t.Run(string(status), func(t *testing.T) {
			e := enrollment("pn_1", status)
			if status == model.EnrollmentBanned {
				e.BannedAt = &testNow
				e.BannedReason = ptr(model.BanReasonFraud)
			}
			f := newPartnerFixture(e)

			_, err := f.svc.Approve(context.Background(), testActor, &model.ApprovePartnersRequest{
				ProgramID:  "prog_1",
				PartnerIDs: []string{"pn_1"},
			})
			requireHTTPError(t, err, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION")
			assert.Empty(t, f.updates)
			assert.Empty(t, f.fx.jobs.tasks)
			assert.Empty(t, f.fx.webhooks.events)
		})
	}
}

func TestRejectOnlyPendingApplications(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentPending), enrollment("pn_2", model.EnrollmentApproved))

	_, err := f.svc.Reject(context.Background(), testActor, &model.BulkPartnersRequest{
		ProgramID:  "prog_1",
		PartnerIDs: []string{"pn_1", "pn_2"},
	})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION")
	assert.Empty(t, f.updates)

	got, err := f.svc.Reject(context.Background(), testActor, &model.BulkPartnersRequest{
		ProgramID:  "prog_1",
		PartnerIDs: []string{"pn_1"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EnrollmentRejected, got[0].Status)
}

func TestApproveAssignsProgramDefaults(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentPending))
	program := testProgram()
	program.DefaultSaleRewardID = ptr("rw_sale")
	f.svc.programs = newTestPrograms(f.fx.effects, program)

	got, err := f.svc.Approve(context.Background(), testActor, &model.ApprovePartnersRequest{
		ProgramID:  "prog_1",
		PartnerIDs: []string{"pn_1", "pn_1"},
	})
	require.NoError(t, err)

	require.Len(t, got, 1, "duplicate ids are approved once")
	assert.Equal(t, model.EnrollmentApproved, got[0].Status)
	require.NotNil(t, got[0].SaleRewardID)
	assert.Equal(t, "rw_sale", *got[0].SaleRewardID)
	assert.Equal(t, []model.WebhookEvent{model.WebhookPartnerEnrolled}, f.fx.webhooks.events)
}

func TestApproveWithRewardGroupOverridesDefaults(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentRejected))

	got, err := f.svc.Approve(context.Background(), testActor, &model.ApprovePartnersRequest{
		ProgramID:    "prog_1",
		PartnerIDs:   []string{"pn_1"},
		LeadRewardID: ptr("rw_lead_vip"),
	})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "rw_lead_vip", *got[0].LeadRewardID)
	assert.Nil(t, got[0].SaleRewardID)
}

func TestUnbanClearsBanDetails(t *testing.T) {
	banned := enrollment("pn_1", model.EnrollmentBanned)
	banned.BannedAt = &testNow
	banned.BannedReason = ptr(model.BanReasonSpam)
	f := newPartnerFixture(banned)

	got, err := f.svc.Unban(context.Background(), testActor, &model.PartnerRef{ProgramID: "prog_1", PartnerID: "pn_1"})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentApproved, got.Status)
	assert.Nil(t, got.BannedAt)
	assert.Nil(t, got.BannedReason)
	assert.Equal(t, []string{"partner.unbanned"}, f.fx.audit.actions())
}

func TestArchiveOnlyFromApproved(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentInvited))

	_, err := f.svc.Archive(context.Background(), testActor, &model.PartnerRef{ProgramID: "prog_1", PartnerID: "pn_1"})
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "INVALID_STATUS_TRANSITION")
}

func TestApprovedEnrollment(t *testing.T) {
	store := enrollmentsWith(enrollment("pn_1", model.EnrollmentApproved), enrollment("pn_2", model.EnrollmentPending))

	e, err := approvedEnrollment(context.Background(), store, "prog_1", "pn_1")
	require.NoError(t, err)
	assert.Equal(t, "pn_1", e.PartnerID)

	_, err = approvedEnrollment(context.Background(), store, "prog_1", "pn_2")
	requireHTTPError(t, err, http.StatusUnprocessableEntity, "PARTNER_NOT_APPROVED")

	_, err = approvedEnrollment(context.Background(), store, "prog_1", "pn_3")
	assert.True(t, isNotFound(err))
}

func TestApplyCreatesPendingApplication(t *testing.T) {
	f := newPartnerFixture()

	got, err := f.svc.Apply(context.Background(), "user_new", &model.ApplyRequest{
		ProgramSlug: "acme",
		Name:        "Ann",
		Email:       "ann@example.com",
		Notes:       ptr("I run a blog"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentPending, got.Status)
	require.Len(t, f.created, 1)
	assert.Equal(t, "I run a blog", *f.created[0].ApplicationNotes)

	partner, err := f.partners.GetByUserID(context.Background(), "user_new")
	require.NoError(t, err)
	assert.Equal(t, partner.ID, got.PartnerID)
	assert.Equal(t, "ann@example.com", partner.Email)

	assert.Empty(t, f.fx.webhooks.events, "nobody is enrolled yet")
	assert.Equal(t, []string{job.TaskSendEmail}, f.fx.jobs.types(), "program support is told")
}

func TestApplyAutoApproves(t *testing.T) {
	f := newPartnerFixture()
	program := testProgram()
	program.AutoApprovePartners = true
	program.DefaultLeadRewardID = ptr("rw_lead")
	f.svc.programs = newTestPrograms(f.fx.effects, program)

	got, err := f.svc.Apply(context.Background(), "user_new", &model.ApplyRequest{
		ProgramSlug: "acme",
		Name:        "Ann",
		Email:       "ann@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentApproved, got.Status)
	require.NotNil(t, got.LeadRewardID)
	assert.Equal(t, "rw_lead", *got.LeadRewardID)
	assert.Equal(t, []model.WebhookEvent{model.WebhookPartnerEnrolled}, f.fx.webhooks.events)
}

func TestApplyAcceptsInvitation(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_2", model.EnrollmentInvited))

	got, err := f.svc.Apply(context.Background(), "user_joe", &model.ApplyRequest{
		ProgramSlug: "acme",
		Name:        "Joe",
		Email:       "joe@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "pn_2", got.PartnerID)
	assert.Equal(t, model.EnrollmentApproved, got.Status)
	assert.Empty(t, f.created, "the invitation is reused")
	require.Len(t, f.updates, 1)

	joe, err := f.partners.GetByID(context.Background(), "pn_2")
	require.NoError(t, err)
	require.NotNil(t, joe.UserID, "invited partner is linked to the signed-in user")
	assert.Equal(t, "user_joe", *joe.UserID)
	assert.Equal(t, []model.WebhookEvent{model.WebhookPartnerEnrolled}, f.fx.webhooks.events)
}

func TestApplyTwiceConflicts(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentPending))

	_, err := f.svc.Apply(context.Background(), "user_jane", &model.ApplyRequest{
		ProgramSlug: "acme",
		Name:        "Jane",
		Email:       "jane@example.com",
	})
	requireHTTPError(t, err, http.StatusConflict, "ALREADY_ENROLLED")
	assert.Empty(t, f.created)
	assert.Empty(t, f.updates)
}

func TestInviteCreatesInvitedEnrollment(t *testing.T) {
	f := newPartnerFixture()

	got, err := f.svc.Invite(context.Background(), testActor, &model.InvitePartnerRequest{
		ProgramID:    "prog_1",
		Name:         "Ann",
		Email:        "ann@example.com",
		SaleRewardID: ptr("rw_vip"),
	})
	require.NoError(t, err)

	assert.Equal(t, model.EnrollmentInvited, got.Status)
	require.NotNil(t, got.SaleRewardID)
	assert.Equal(t, "rw_vip", *got.SaleRewardID)

	partner, err := f.partners.GetByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Nil(t, partner.UserID, "no account until the invitation is accepted")
	assert.Equal(t, partner.ID, got.PartnerID)

	assert.Equal(t, []string{job.TaskSendEmail}, f.fx.jobs.types())
	assert.Equal(t, []string{"partner.invited"}, f.fx.audit.actions())
	assert.Empty(t, f.fx.webhooks.events)
}

func TestInviteEnrolledPartnerConflicts(t *testing.T) {
	f := newPartnerFixture(enrollment("pn_1", model.EnrollmentApproved))

	_, err := f.svc.Invite(context.Background(), testActor, &model.InvitePartnerRequest{
		ProgramID: "prog_1",
		Name:      "Jane",
		Email:     "jane@example.com",
	})
	requireHTTPError(t, err, http.StatusConflict, "ALREADY_ENROLLED")
	assert.Empty(t, f.created)
	assert.Empty(t, f.fx.jobs.tasks)
}
