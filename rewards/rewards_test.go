package rewards

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cotrain-ai/cotrain/round"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name          string
		pool          sdkmath.Int
		subs          []round.Submission
		bestPerformer string
		priors        map[string]uint64
		distributed   bool
		amounts       []int64
		bonus         int64
	}{
		{
			name: "proportional split",
			pool: sdkmath.NewInt(1000),
			subs: []round.Submission{
				{Participant: "alice", Score: 30, Accuracy: 9000},
				{Participant: "bob", Score: 70, Accuracy: 8800},
			},
			bestPerformer: "alice",
			distributed:   true,
			amounts:       []int64{300, 700},
			bonus:         100,
		},
		{
			name: "truncation leaves a residual",
			pool: sdkmath.NewInt(1000),
			subs: []round.Submission{
				{Participant: "alice", Score: 1, Accuracy: 9000},
				{Participant: "bob", Score: 2, Accuracy: 8800},
			},
			bestPerformer: "alice",
			distributed:   true,
			amounts:       []int64{333, 666},
			bonus:         100,
		},
		{
			name: "pool below bonus minimum",
			pool: sdkmath.NewInt(5),
			subs: []round.Submission{
				{Participant: "alice", Score: 1, Accuracy: 9000},
				{Participant: "bob", Score: 1, Accuracy: 8800},
				{Participant: "carol", Score: 1, Accuracy: 8700},
			},
			bestPerformer: "alice",
			distributed:   true,
			amounts:       []int64{1, 1, 1},
			bonus:         0,
		},
		{
			name: "pool exactly at bonus minimum",
			pool: sdkmath.NewInt(10),
			subs: []round.Submission{
				{Participant: "alice", Score: 1, Accuracy: 9000},
			},
			bestPerformer: "alice",
			distributed:   true,
			amounts:       []int64{10},
			bonus:         1,
		},
		{
			name: "no best performer recorded",
			pool: sdkmath.NewInt(1000),
			subs: []round.Submission{
				{Participant: "alice", Score: 10, Accuracy: 9000},
			},
			bestPerformer: "",
			distributed:   true,
			amounts:       []int64{1000},
			bonus:         0,
		},
		{
			name: "zero total score skips distribution",
			pool: sdkmath.NewInt(1000),
			subs: []round.Submission{
				{Participant: "alice", Score: 0, Accuracy: 9000},
				{Participant: "bob", Score: 0, Accuracy: 8800},
			},
			bestPerformer: "alice",
			distributed:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := Compute(tt.pool, tt.subs, tt.bestPerformer, tt.priors)

			assert.Equal(t, tt.distributed, plan.Distributed)
			if !tt.distributed {
				assert.Empty(t, plan.Payouts)
				assert.Empty(t, plan.Reputations)
				assert.True(t, plan.Bonus.IsZero())

				return
			}

			require.Len(t, plan.Payouts, len(tt.amounts))
			for i, want := range tt.amounts {
				assert.Equal(t, tt.subs[i].Participant, plan.Payouts[i].Participant)
				assert.Equal(t, sdkmath.NewInt(want).String(), plan.Payouts[i].Amount.String())
			}
			assert.Equal(t, sdkmath.NewInt(tt.bonus).String(), plan.Bonus.String())
			if tt.bonus > 0 {
				assert.Equal(t, tt.bestPerformer, plan.BestPerformer)
			}
		})
	}
}

func TestComputeReputations(t *testing.T) {
	pool := sdkmath.NewInt(100)
	subs := []round.Submission{
		{Participant: "alice", Score: 1, Accuracy: 8500},
		{Participant: "bob", Score: 1, Accuracy: 9099},
	}
	priors := map[string]uint64{"alice": 200}

	plan := Compute(pool, subs, "bob", priors)

	require.True(t, plan.Distributed)
	// 200*95/100 + 8500/100 = 190 + 85.
	assert.Equal(t, uint64(275), plan.Reputations["alice"])
	// 0 + 9099/100 truncates to 90.
	assert.Equal(t, uint64(90), plan.Reputations["bob"])
}

func TestNextReputation(t *testing.T) {
	tests := []struct {
		name     string
		prior    uint64
		accuracy uint64
		want     uint64
	}{
		{name: "fresh participant", prior: 0, accuracy: 9000, want: 90},
		{name: "decay then add", prior: 200, accuracy: 8500, want: 275},
		{name: "decay truncates", prior: 99, accuracy: 100, want: 95},
		{name: "accuracy truncates", prior: 0, accuracy: 199, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextReputation(tt.prior, tt.accuracy))
		})
	}
}
