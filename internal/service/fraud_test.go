package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
)

func signalTypes(signals []model.FraudSignal) []model.FraudRuleType {
	out := make([]model.FraudRuleType, len(signals))
	for i, s := range signals {
		out[i] = s.Type
	}
	return out
}

func TestDetectFraud(t *testing.T) {
	program := &model.Program{BannedReferralSources: []string{"coupons.example"}}

	tests := []struct {
		name string
		c    Conversion
		want []model.FraudRuleType
	}{
		{
			name: "clean conversion",
			c: Conversion{
				PartnerEmail:  "jane@example.com",
				CustomerEmail: ptr("buyer@gmail.com"),
				Referer:       ptr("https://blog.example.com/post"),
				ClickURL:      ptr("https://acme.com/?via=jane"),
			},
			want: []model.FraudRuleType{},
		},
		{
			name: "self referral ignores case and spaces",
			c:    Conversion{PartnerEmail: "Jane@Example.com", CustomerEmail: ptr(" jane@example.com ")},
			want: []model.FraudRuleType{model.FraudCustomerEmailMatch},
		},
		{
			name: "disposable customer email",
			c:    Conversion{PartnerEmail: "jane@example.com", CustomerEmail: ptr("x@Mailinator.com")},
			want: []model.FraudRuleType{model.FraudCustomerEmailSuspicious},
		},
		{
			name: "banned referer subdomain",
			c:    Conversion{Referer: ptr("https://www.deals.coupons.example/acme")},
			want: []model.FraudRuleType{model.FraudReferralSourceBanned},
		},
		{
			name: "bare host referer",
			c:    Conversion{Referer: ptr("coupons.example")},
			want: []model.FraudRuleType{model.FraudReferralSourceBanned},
		},
		{
			name: "paid click id fires once",
			c:    Conversion{ClickURL: ptr("https://acme.com/?gclid=abc&fbclid=def")},
			want: []model.FraudRuleType{model.FraudPaidTrafficDetected},
		},
		{
			name: "several rules",
			c: Conversion{
				PartnerEmail:  "x@yopmail.com",
				CustomerEmail: ptr("x@yopmail.com"),
				ClickURL:      ptr("https://acme.com/?msclkid=1"),
			},
			want: []model.FraudRuleType{
				model.FraudCustomerEmailMatch,
				model.FraudCustomerEmailSuspicious,
				model.FraudPaidTrafficDetected,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, signalTypes(DetectFraud(program, tt.c)))
		})
	}
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "blog.example.com", hostOf("https://blog.example.com/a?b=c"))
	assert.Equal(t, "example.com", hostOf("example.com"))
	assert.Equal(t, "", hostOf("  "))
}

func TestRecordGroupsEventsByType(t *testing.T) {
	fx := newTestEffects()
	store := newFraudStore()
	tx := &passthroughTx{}
	svc := NewFraudService(newTestPrograms(fx.effects, testProgram()), store, tx, fx.effects, &testLogger)

	ctx := context.Background()
	match := model.FraudSignal{Type: model.FraudCustomerEmailMatch, Metadata: map[string]any{"email": "jane@example.com"}}
	paid := model.FraudSignal{Type: model.FraudPaidTrafficDetected}

	svc.RecordAll(ctx, "prog_1", "pn_1", []model.FraudSignal{match, paid}, ptr("cm_1"), nil)
	require.NoError(t, svc.Record(ctx, "prog_1", "pn_1", match, ptr("cm_2"), ptr("cus_1")))

	assert.Len(t, store.groups, 2)
	assert.Equal(t, 2, store.groups["prog_1/pn_1/"+string(model.FraudCustomerEmailMatch)].EventCount)
	require.Len(t, store.events, 3)
	assert.JSONEq(t, `{"email":"jane@example.com"}`, string(store.events[0].Metadata))
	assert.JSONEq(t, `{}`, string(store.events[1].Metadata))
	assert.Equal(t, 3, tx.calls)
}

func TestResolveRejectsResolvedGroup(t *testing.T) {
	fx := newTestEffects()
	store := newFraudStore()
	svc := NewFraudService(newTestPrograms(fx.effects, testProgram()), store, &passthroughTx{}, fx.effects, &testLogger)

	group, _ := store.UpsertGroup(context.Background(), "prog_1", "pn_1", model.FraudCustomerEmailSuspicious)
	group.Status = model.FraudGroupResolved

	_, err := svc.Resolve(context.Background(), testActor, &model.ResolveFraudGroupRequest{
		ProgramID: "prog_1",
		GroupID:   group.ID,
		Reason:    "checked manually",
	})
	requireHTTPError(t, err, http.StatusConflict, "FRAUD_GROUP_ALREADY_RESOLVED")
	assert.Empty(t, fx.audit.entries)
}
