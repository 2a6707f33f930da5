package model

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/validation"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role Role
		perm Permission
		want bool
	}{
		{RoleOwner, PermWebhooksWrite, true},
		{RoleMember, PermWebhooksWrite, false},
		{RoleBilling, PermPayoutsWrite, true},
		{RoleMember, PermPayoutsWrite, false},
		{RoleMember, PermPartnersWrite, true},
		{RoleBilling, PermPartnersWrite, false},
		{RoleBilling, PermCommissionsRead, true},
		{RoleOwner, Permission("unknown.perm"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, HasPermission(tt.role, tt.perm))
		})
	}
}

func TestRoleFromClerk(t *testing.T) {
	assert.Equal(t, RoleOwner, RoleFromClerk("org:admin"))
	assert.Equal(t, RoleBilling, RoleFromClerk("org:billing"))
	assert.Equal(t, RoleMember, RoleFromClerk("org:member"))
	assert.Equal(t, RoleMember, RoleFromClerk(""))
}

func TestEnrollmentTransitions(t *testing.T) {
	assert.True(t, EnrollmentPending.CanTransition(EnrollmentApproved))
	assert.True(t, EnrollmentInvited.CanTransition(EnrollmentApproved))
	assert.True(t, EnrollmentBanned.CanTransition(EnrollmentApproved))
	assert.True(t, EnrollmentArchived.CanTransition(EnrollmentBanned))

	assert.False(t, EnrollmentPending.CanTransition(EnrollmentBanned))
	assert.False(t, EnrollmentDeclined.CanTransition(EnrollmentApproved))
	assert.False(t, EnrollmentApproved.CanTransition(EnrollmentPending))
	assert.False(t, EnrollmentBanned.CanTransition(EnrollmentArchived))
}

func TestApplyProgramDefaultsKeepsOverrides(t *testing.T) {
	override := "rw_custom"
	program := &Program{
		DefaultLeadRewardID: ptrTo("rw_lead"),
		DefaultSaleRewardID: ptrTo("rw_sale"),
		DefaultDiscountID:   ptrTo("disc_1"),
	}
	e := &ProgramEnrollment{SaleRewardID: &override}

	e.ApplyProgramDefaults(program)

	assert.Nil(t, e.ClickRewardID)
	assert.Equal(t, "rw_lead", *e.LeadRewardID)
	assert.Equal(t, "rw_custom", *e.SaleRewardID)
	assert.Equal(t, "disc_1", *e.DiscountID)
	assert.Equal(t, "rw_lead", *e.RewardID(RewardEventLead))
}

func TestIsReferralSourceBanned(t *testing.T) {
	p := &Program{BannedReferralSources: []string{"spam.com", "www.Bad.io"}}

	assert.True(t, p.IsReferralSourceBanned("spam.com"))
	assert.True(t, p.IsReferralSourceBanned("www.spam.com"))
	assert.True(t, p.IsReferralSourceBanned("shop.spam.com"))
	assert.True(t, p.IsReferralSourceBanned("BAD.io"))
	assert.False(t, p.IsReferralSourceBanned("notspam.com"))
	assert.False(t, p.IsReferralSourceBanned(""))
}

func TestIsDefaultReward(t *testing.T) {
	p := &Program{DefaultSaleRewardID: ptrTo("rw_sale")}

	assert.True(t, p.IsDefaultReward("rw_sale"))
	assert.False(t, p.IsDefaultReward("rw_other"))
}

func TestValidateRewardShape(t *testing.T) {
	t.Run("flat lead reward", func(t *testing.T) {
		assert.NoError(t, ValidateRewardShape(RewardEventLead, RewardTypeFlat, 500, nil))
	})

	t.Run("percentage on a lead", func(t *testing.T) {
		err := ValidateRewardShape(RewardEventLead, RewardTypePercentage, 1000, nil)
		assertFields(t, err, "type")
	})

	t.Run("percentage above 100%", func(t *testing.T) {
		err := ValidateRewardShape(RewardEventSale, RewardTypePercentage, 10001, nil)
		assertFields(t, err, "amount")
	})

	t.Run("percentage modifier on a click", func(t *testing.T) {
		err := ValidateRewardShape(RewardEventClick, RewardTypeFlat, 10, []RewardModifier{
			{Condition: "true", Type: RewardTypePercentage, Amount: 100},
			{Condition: "true", Type: RewardTypePercentage, Amount: 200},
		})
		assertFields(t, err, "modifiers")
	})

	t.Run("percentage modifier above 100%", func(t *testing.T) {
		err := ValidateRewardShape(RewardEventSale, RewardTypePercentage, 1000, []RewardModifier{
			{Condition: "true", Type: RewardTypePercentage, Amount: 10000},
			{Condition: "true", Type: RewardTypeFlat, Amount: 50000},
			{Condition: "true", Type: RewardTypePercentage, Amount: 15000},
		})
		assertFields(t, err, "modifiers[2].amount")
	})
}

func TestCreateBountyRequestValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	before := start.Add(-time.Hour)

	base := func() *CreateBountyRequest {
		return &CreateBountyRequest{
			ProgramID:    "prog_1",
			Type:         BountyTypeSubmission,
			Name:         "Write a review",
			StartsAt:     start,
			RewardAmount: 5000,
		}
	}

	require.NoError(t, base().Validate())

	r := base()
	r.EndsAt = &before
	assertFields(t, r.Validate(), "endsAt")

	r = base()
	r.Type = BountyTypePerformance
	assertFields(t, r.Validate(), "performanceCondition")

	r = base()
	r.PerformanceCondition = ptrTo("sales.count > 10")
	assertFields(t, r.Validate(), "performanceCondition")

	r = base()
	r.RewardAmount = 0
	var ve validator.ValidationErrors
	require.True(t, errors.As(r.Validate(), &ve))
	assert.Equal(t, "rewardAmount", ve[0].Field())
}

func TestValidatorReportsPathParamNames(t *testing.T) {
	err := (&CommissionRef{}).Validate()

	var ve validator.ValidationErrors
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field())
	}
	assert.ElementsMatch(t, []string{"programId", "commissionId"}, fields)
}

func TestSlugValidation(t *testing.T) {
	valid := &CreateProgramRequest{Name: "Acme", Slug: "acme-partners"}
	assert.NoError(t, valid.Validate())

	for _, slug := range []string{"Acme", "acme--x", "-acme", "ac"} {
		err := (&CreateProgramRequest{Name: "Acme", Slug: slug}).Validate()
		assert.Error(t, err, slug)
	}
}

func TestPagination(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 500}.Limit())
	assert.Equal(t, 0, Pagination{Page: 1, PageSize: 10}.Offset())
	assert.Equal(t, 20, Pagination{Page: 3, PageSize: 10}.Offset())

	resp := NewPaginatedResponse[Payout](nil, Pagination{}, 0)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, 0, resp.ResultCount())
}

func TestNewID(t *testing.T) {
	a := NewID(PrefixCommission)
	b := NewID(PrefixCommission)

	assert.True(t, strings.HasPrefix(a, PrefixCommission))
	assert.Len(t, a, len(PrefixCommission)+26)
	assert.NotEqual(t, a, b)
}

func TestPayoutWidenPeriod(t *testing.T) {
	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	dec := time.Date(2025, 12, 20, 0, 0, 0, 0, time.UTC)

	p := &Payout{}
	p.WidenPeriod(jan)
	assert.Equal(t, jan, *p.PeriodStart)
	assert.Equal(t, jan, *p.PeriodEnd)

	p.WidenPeriod(feb)
	p.WidenPeriod(dec)
	assert.Equal(t, dec, *p.PeriodStart)
	assert.Equal(t, feb, *p.PeriodEnd)
}

func TestBountyIsActive(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	b := &Bounty{StartsAt: start, EndsAt: &end}

	assert.False(t, b.IsActive(start.Add(-time.Second)))
	assert.True(t, b.IsActive(start))
	assert.False(t, b.IsActive(end))

	b.EndsAt = nil
	assert.True(t, b.IsActive(end.AddDate(1, 0, 0)))
}

func TestWebhookSubscribes(t *testing.T) {
	w := &Webhook{Triggers: []WebhookEvent{WebhookCommissionCreated}}
	assert.True(t, w.Subscribes(WebhookCommissionCreated))
	assert.False(t, w.Subscribes(WebhookPartnerEnrolled))

	now := time.Now()
	w.DisabledAt = &now
	assert.False(t, w.Subscribes(WebhookCommissionCreated))
}

func TestMessageDirection(t *testing.T) {
	assert.Equal(t, FromPartner, (&Message{SenderPartnerID: ptrTo("pn_1")}).Direction())
	assert.Equal(t, FromProgram, (&Message{}).Direction())
}

func assertFields(t *testing.T, err error, want ...string) {
	t.Helper()
	var custom validation.CustomValidationErrors
	require.True(t, errors.As(err, &custom), "expected custom validation errors, got %v", err)

	got := make([]string, 0, len(custom))
	for _, ce := range custom {
		got = append(got, ce.Field)
	}
	assert.Equal(t, want, got)
}

func ptrTo[T any](v T) *T {
	return &v
}
