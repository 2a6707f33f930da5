package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/model"
)

// journal records the order in which commits and cache invalidations
// happen.
type journal struct{ entries []string }

func (j *journal) add(entry string) { j.entries = append(j.entries, entry) }

type journalTx struct{ j *journal }

func (t journalTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		t.j.add("rollback")
		return err
	}
	t.j.add("commit")
	return nil
}

type journalCache struct {
	nopCache
	j *journal
}

func (c journalCache) Invalidate(_ context.Context, p *model.Program) error {
	c.j.add("invalidate:" + p.ID)
	return nil
}

type programFixture struct {
	programs  *ProgramService
	rewards   *RewardService
	store     *programStoreMock
	discounts *discountStoreMock
	journal   *journal
	fx        testEffects
}

func newProgramFixture() *programFixture {
	f := &programFixture{
		fx:      newTestEffects(),
		journal: &journal{},
		store:   &programStoreMock{programs: map[string]*model.Program{"prog_1": testProgram()}},
		discounts: &discountStoreMock{discounts: map[string]*model.Discount{
			"dsc_1":     {ID: "dsc_1", ProgramID: "prog_1"},
			"dsc_other": {ID: "dsc_other", ProgramID: "prog_2"},
		}},
	}
	cache := journalCache{j: f.journal}
	f.programs = NewProgramService(f.store, f.discounts, cache, nil, f.fx.effects, &testLogger)
	f.rewards = NewRewardService(f.programs, &rewardStoreMock{}, f.discounts, nil, journalTx{j: f.journal}, f.fx.effects, &testLogger)
	return f
}

func TestProgramCacheInvalidatedAfterCommit(t *testing.T) {
	t.Run("default reward", func(t *testing.T) {
		f := newProgramFixture()

		reward, err := f.rewards.CreateReward(context.Background(), testActor, &model.CreateRewardRequest{
			ProgramID:   "prog_1",
			Event:       model.RewardEventSale,
			Type:        model.RewardTypeFlat,
			Amount:      500,
			MakeDefault: true,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"commit", "invalidate:prog_1"}, f.journal.entries)
		require.NotNil(t, f.store.programs["prog_1"].DefaultSaleRewardID)
		assert.Equal(t, reward.ID, *f.store.programs["prog_1"].DefaultSaleRewardID)
	})

	t.Run("default discount", func(t *testing.T) {
		f := newProgramFixture()

		_, err := f.rewards.CreateDiscount(context.Background(), testActor, &model.CreateDiscountRequest{
			ProgramID:   "prog_1",
			Type:        model.RewardTypePercentage,
			Amount:      1000,
			MakeDefault: true,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"commit", "invalidate:prog_1"}, f.journal.entries)
	})

	t.Run("deleting the default discount", func(t *testing.T) {
		f := newProgramFixture()
		f.store.programs["prog_1"].DefaultDiscountID = ptr("dsc_1")

		require.NoError(t, f.rewards.DeleteDiscount(context.Background(), testActor, &model.DiscountRef{ProgramID: "prog_1", DiscountID: "dsc_1"}))

		assert.Equal(t, []string{"commit", "invalidate:prog_1"}, f.journal.entries)
		assert.Nil(t, f.store.programs["prog_1"].DefaultDiscountID)
	})

	t.Run("non-default reward leaves the cache alone", func(t *testing.T) {
		f := newProgramFixture()

		_, err := f.rewards.CreateReward(context.Background(), testActor, &model.CreateRewardRequest{
			ProgramID: "prog_1",
			Event:     model.RewardEventLead,
			Type:      model.RewardTypeFlat,
			Amount:    100,
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"commit"}, f.journal.entries)
	})

	t.Run("rolled back change keeps the cache", func(t *testing.T) {
		f := newProgramFixture()

		err := f.rewards.DeleteDiscount(context.Background(), testActor, &model.DiscountRef{ProgramID: "prog_1", DiscountID: "dsc_missing"})
		require.Error(t, err)
		assert.Equal(t, []string{"rollback"}, f.journal.entries)
	})
}

func TestUpdateProgramDefaultDiscount(t *testing.T) {
	tests := []struct {
		name       string
		discountID string
		start      *string
		want       *string
		wantErr    bool
	}{
		{name: "own discount", discountID: "dsc_1", want: ptr("dsc_1")},
		{name: "empty clears", discountID: "", start: ptr("dsc_1"), want: nil},
		{name: "unknown discount", discountID: "dsc_missing", start: ptr("dsc_1"), wantErr: true},
		{name: "discount of another program", discountID: "dsc_other", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newProgramFixture()
			f.store.programs["prog_1"].DefaultDiscountID = tt.start

			got, err := f.programs.Update(context.Background(), testActor, &model.UpdateProgramRequest{
				ProgramID:         "prog_1",
				DefaultDiscountID: ptr(tt.discountID),
			})

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, isNotFound(err), "reported as a missing discount")
				assert.Equal(t, tt.start, f.store.programs["prog_1"].DefaultDiscountID, "program unchanged")
				assert.Empty(t, f.journal.entries)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.DefaultDiscountID)
			assert.Equal(t, []string{"invalidate:prog_1"}, f.journal.entries)
		})
	}
}
