package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
)

func TestRewardEvaluator(t *testing.T) {
	ev, err := NewRewardEvaluator()
	require.NoError(t, err)

	fact := RewardFact{
		CustomerEmail:   "buyer@example.com",
		CustomerCountry: "US",
		SaleAmount:      25000,
		SaleCurrency:    "usd",
		ProductID:       "prod_pro",
		PartnerCountry:  "DE",
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"country match", `customer.country == "US"`, true},
		{"country mismatch", `customer.country == "FR"`, false},
		{"amount threshold", `sale.amount >= 10000`, true},
		{"product and partner", `sale.product_id == "prod_pro" && partner.country == "DE"`, true},
		{"email suffix", `customer.email.endsWith("@example.com")`, true},
		{"in list", `customer.country in ["CA", "MX"]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(context.Background(), tt.expr, fact)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileRejectsBadExpressions(t *testing.T) {
	ev, err := NewRewardEvaluator()
	require.NoError(t, err)

	for _, expr := range []string{
		"",
		"customer.country ==",
		`unknown.field == "x"`,
		`"US"`,
	} {
		err := ev.Compile(expr)
		assert.ErrorIs(t, err, ErrInvalidExpression, expr)
	}

	assert.NoError(t, ev.Compile(`customer.country == "US"`))
}

func TestBountyEvaluator(t *testing.T) {
	ev, err := NewBountyEvaluator()
	require.NoError(t, err)

	fact := BountyFact(model.PartnerTotals{Leads: 12, Conversions: 3, SaleAmount: 90000})

	ok, err := ev.Evaluate(context.Background(), "conversions >= 3 && sale_amount > 50000", fact)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ev.Evaluate(context.Background(), "leads >= 100", fact)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, ev.Compile(`leads > "ten"`), ErrInvalidExpression)
}
