package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/lib/rules"
	"github.com/deppfellow/partners/internal/model"
)

func TestComputeEarnings(t *testing.T) {
	twoMonthsAgo := testNow.AddDate(0, -2, 0)

	tests := []struct {
		name     string
		terms    RewardTerms
		quantity int
		sale     int64
		first    *time.Time
		want     int64
	}{
		{
			name:     "flat times quantity",
			terms:    RewardTerms{Type: model.RewardTypeFlat, Amount: 500},
			quantity: 3,
			want:     1500,
		},
		{
			name:  "flat with zero quantity counts once",
			terms: RewardTerms{Type: model.RewardTypeFlat, Amount: 500},
			want:  500,
		},
		{
			name:  "percentage of sale",
			terms: RewardTerms{Type: model.RewardTypePercentage, Amount: 2000},
			sale:  10000,
			want:  2000,
		},
		{
			name:  "percentage rounds half up",
			terms: RewardTerms{Type: model.RewardTypePercentage, Amount: 1000},
			sale:  1995,
			want:  200,
		},
		{
			name:  "percentage rounds down below half",
			terms: RewardTerms{Type: model.RewardTypePercentage, Amount: 1000},
			sale:  1994,
			want:  199,
		},
		{
			name:  "percentage without sale amount",
			terms: RewardTerms{Type: model.RewardTypePercentage, Amount: 1000},
			want:  0,
		},
		{
			name:  "inside duration window",
			terms: RewardTerms{Type: model.RewardTypeFlat, Amount: 500, MaxDurationMonths: ptr(3)},
			first: &twoMonthsAgo,
			want:  500,
		},
		{
			name:  "past duration window",
			terms: RewardTerms{Type: model.RewardTypeFlat, Amount: 500, MaxDurationMonths: ptr(1)},
			first: &twoMonthsAgo,
			want:  0,
		},
		{
			name:  "zero duration pays first conversion",
			terms: RewardTerms{Type: model.RewardTypeFlat, Amount: 500, MaxDurationMonths: ptr(0)},
			want:  500,
		},
		{
			name:  "zero duration skips repeat conversions",
			terms: RewardTerms{Type: model.RewardTypeFlat, Amount: 500, MaxDurationMonths: ptr(0)},
			first: &twoMonthsAgo,
			want:  0,
		},
		{
			name:  "no duration pays forever",
			terms: RewardTerms{Type: model.RewardTypeFlat, Amount: 500},
			first: ptr(testNow.AddDate(-5, 0, 0)),
			want:  500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeEarnings(tt.terms, tt.quantity, tt.sale, tt.first, testNow)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectTerms(t *testing.T) {
	ev, err := rules.NewRewardEvaluator()
	require.NoError(t, err)

	reward := &model.Reward{
		ID:                "rw_1",
		Event:             model.RewardEventSale,
		Type:              model.RewardTypePercentage,
		Amount:            1000,
		MaxDurationMonths: ptr(12),
		Modifiers: []model.RewardModifier{
			{Condition: `customer.country ==`, Type: model.RewardTypeFlat, Amount: 1},
			{Condition: `customer.country == "US"`, Type: model.RewardTypePercentage, Amount: 2000},
			{Condition: `sale.amount >= 50000`, Type: model.RewardTypeFlat, Amount: 7500, MaxDurationMonths: ptr(0)},
		},
	}

	t.Run("first matching modifier wins", func(t *testing.T) {
		terms := SelectTerms(context.Background(), ev, reward, rules.RewardFact{CustomerCountry: "US", SaleAmount: 90000}, &testLogger)
		assert.Equal(t, model.RewardTypePercentage, terms.Type)
		assert.EqualValues(t, 2000, terms.Amount)
		require.NotNil(t, terms.MaxDurationMonths)
		assert.Equal(t, 12, *terms.MaxDurationMonths, "modifier without duration keeps the base one")
	})

	t.Run("modifier duration overrides base", func(t *testing.T) {
		terms := SelectTerms(context.Background(), ev, reward, rules.RewardFact{CustomerCountry: "DE", SaleAmount: 90000}, &testLogger)
		assert.Equal(t, model.RewardTypeFlat, terms.Type)
		assert.EqualValues(t, 7500, terms.Amount)
		require.NotNil(t, terms.MaxDurationMonths)
		assert.Equal(t, 0, *terms.MaxDurationMonths)
	})

	t.Run("base reward when nothing matches", func(t *testing.T) {
		terms := SelectTerms(context.Background(), ev, reward, rules.RewardFact{CustomerCountry: "DE", SaleAmount: 100}, &testLogger)
		assert.Equal(t, RewardTerms{Type: model.RewardTypePercentage, Amount: 1000, MaxDurationMonths: ptr(12)}, terms)
	})
}
