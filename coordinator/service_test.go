package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/benbjohnson/clock"
	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cotrain-ai/cotrain/model"
	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
	"github.com/cotrain-ai/cotrain/pkg/ledger"
	ledgermocks "github.com/cotrain-ai/cotrain/pkg/ledger/mocks"
	"github.com/cotrain-ai/cotrain/pkg/mqtt"
	mqttmocks "github.com/cotrain-ai/cotrain/pkg/mqtt/mocks"
	"github.com/cotrain-ai/cotrain/pkg/storage"
	"github.com/cotrain-ai/cotrain/round"
)

const (
	escrowID  = "escrow"
	baseTopic = "cotrain"
	creator   = "dave"
)

func newTestService(tokens ledger.Ledger) (Service, *clock.Mock, *mqttmocks.MockPubSub) {
	clk := clock.NewMock()
	pubsub := &mqttmocks.MockPubSub{}
	pubsub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := NewService(
		storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(),
		storage.NewInMemoryStorage(),
		tokens, escrowID, pubsub, baseTopic, clk, logger,
	)

	return svc, clk, pubsub
}

func testModel() model.Model {
	return model.Model{
		Creator:           creator,
		Name:              "mnist-classifier",
		ArtifactRef:       "ipfs://QmModel",
		MinStake:          model.MinStakeFloor,
		AccuracyThreshold: 8000,
	}
}

// fundAndStake mints tokens for the participant, approves the escrow and
// stakes the full amount.
func fundAndStake(t *testing.T, svc Service, l interface {
	Mint(string, sdkmath.Int)
	Approve(context.Context, string, string, sdkmath.Int) error
}, account string, amount sdkmath.Int,
) {
	t.Helper()
	ctx := context.Background()

	l.Mint(account, amount)
	require.NoError(t, l.Approve(ctx, account, escrowID, amount))
	_, err := svc.Stake(ctx, account, amount)
	require.NoError(t, err)
}

func TestCreateModel(t *testing.T) {
	tests := []struct {
		name string
		m    model.Model
		err  error
	}{
		{
			name: "valid model",
			m:    testModel(),
		},
		{
			name: "missing name",
			m: model.Model{
				Creator:           creator,
				ArtifactRef:       "ipfs://QmModel",
				MinStake:          model.MinStakeFloor,
				AccuracyThreshold: 8000,
			},
			err: pkgerrors.ErrInvalidInput,
		},
		{
			name: "missing artifact",
			m: model.Model{
				Creator:           creator,
				Name:              "mnist",
				MinStake:          model.MinStakeFloor,
				AccuracyThreshold: 8000,
			},
			err: pkgerrors.ErrInvalidInput,
		},
		{
			name: "stake below floor",
			m: model.Model{
				Creator:           creator,
				Name:              "mnist",
				ArtifactRef:       "ipfs://QmModel",
				MinStake:          model.MinStakeFloor.SubRaw(1),
				AccuracyThreshold: 8000,
			},
			err: pkgerrors.ErrInvalidInput,
		},
		{
			name: "zero accuracy threshold",
			m: model.Model{
				Creator:     creator,
				Name:        "mnist",
				ArtifactRef: "ipfs://QmModel",
				MinStake:    model.MinStakeFloor,
			},
			err: pkgerrors.ErrInvalidInput,
		},
		{
			name: "accuracy threshold above maximum",
			m: model.Model{
				Creator:           creator,
				Name:              "mnist",
				ArtifactRef:       "ipfs://QmModel",
				MinStake:          model.MinStakeFloor,
				AccuracyThreshold: 10001,
			},
			err: pkgerrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newTestService(ledger.NewInMemoryLedger(escrowID))

			m, err := svc.CreateModel(context.Background(), tt.m)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint64(1), m.ID)
			assert.Equal(t, model.Active, m.Status)
			assert.True(t, m.TotalRewards.IsZero())
		})
	}
}

func TestCreateModelSequentialIDs(t *testing.T) {
	svc, _, _ := newTestService(ledger.NewInMemoryLedger(escrowID))
	ctx := context.Background()

	m1, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)
	m2, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), m1.ID)
	assert.Equal(t, uint64(2), m2.ID)

	counters, err := svc.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), counters.Models)
	assert.Equal(t, uint64(0), counters.Rounds)
}

func TestStakeAndWithdraw(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	amount := sdkmath.NewIntWithDecimal(5, 18)
	l.Mint("alice", amount)
	require.NoError(t, l.Approve(ctx, "alice", escrowID, amount))

	acct, err := svc.Stake(ctx, "alice", amount)
	require.NoError(t, err)
	assert.Equal(t, amount.String(), acct.Stake.String())

	b, err := l.BalanceOf(ctx, escrowID)
	require.NoError(t, err)
	assert.Equal(t, amount.String(), b.String())

	half := sdkmath.NewIntWithDecimal(25, 17)
	acct, err = svc.Withdraw(ctx, "alice", half)
	require.NoError(t, err)
	assert.Equal(t, half.String(), acct.Stake.String())

	b, err = l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, half.String(), b.String())

	_, err = svc.Withdraw(ctx, "alice", amount)
	assert.ErrorIs(t, err, pkgerrors.ErrInsufficientStake)
}

func TestStakeTransferFailureRollsBack(t *testing.T) {
	// No allowance granted: the deposit transfer fails and the recorded
	// stake must be rolled back.
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	_, err := svc.Stake(ctx, "alice", sdkmath.NewInt(100))
	assert.ErrorIs(t, err, pkgerrors.ErrTransferFailed)

	acct, err := svc.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, acct.Stake.IsZero())
}

func TestStakeInvalidInput(t *testing.T) {
	svc, _, _ := newTestService(ledger.NewInMemoryLedger(escrowID))
	ctx := context.Background()

	_, err := svc.Stake(ctx, "", sdkmath.NewInt(1))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

	_, err = svc.Stake(ctx, "alice", sdkmath.ZeroInt())
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)

	_, err = svc.Withdraw(ctx, "alice", sdkmath.NewInt(-5))
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestStartRound(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)

	pool := sdkmath.NewInt(1000)
	l.Mint(creator, pool)
	require.NoError(t, l.Approve(ctx, creator, escrowID, pool))

	r, err := svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, pool, creator)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), r.ID)
	assert.Equal(t, m.ID, r.ModelID)
	assert.Equal(t, pool.String(), r.RewardPool.String())
	assert.Equal(t, r.StartedAt.Add(24*time.Hour), r.EndsAt)

	got, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Training, got.Status)

	b, err := l.BalanceOf(ctx, escrowID)
	require.NoError(t, err)
	assert.Equal(t, pool.String(), b.String())

	active, err := svc.IsRoundActive(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, active)

	// Model already training: a second round is rejected.
	_, err = svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, pool, creator)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
}

func TestStartRoundValidation(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)

	pool := sdkmath.NewInt(1000)

	tests := []struct {
		name      string
		modelID   uint64
		duration  time.Duration
		pool      sdkmath.Int
		initiator string
		err       error
	}{
		{
			name:      "unknown model",
			modelID:   99,
			duration:  24 * time.Hour,
			pool:      pool,
			initiator: creator,
			err:       pkgerrors.ErrNotFound,
		},
		{
			name:      "not the creator",
			modelID:   m.ID,
			duration:  24 * time.Hour,
			pool:      pool,
			initiator: "mallory",
			err:       pkgerrors.ErrUnauthorized,
		},
		{
			name:      "duration too short",
			modelID:   m.ID,
			duration:  30 * time.Minute,
			pool:      pool,
			initiator: creator,
			err:       pkgerrors.ErrInvalidInput,
		},
		{
			name:      "duration too long",
			modelID:   m.ID,
			duration:  8 * 24 * time.Hour,
			pool:      pool,
			initiator: creator,
			err:       pkgerrors.ErrInvalidInput,
		},
		{
			name:      "non-positive pool",
			modelID:   m.ID,
			duration:  24 * time.Hour,
			pool:      sdkmath.ZeroInt(),
			initiator: creator,
			err:       pkgerrors.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartRound(ctx, tt.modelID, "ipfs://QmDataset", tt.duration, tt.pool, tt.initiator)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestStartRoundTransferFailureRollsBack(t *testing.T) {
	// Creator has no funds: the escrow transfer fails and the round, the
	// model status and the id counter all roll back.
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)

	_, err = svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, sdkmath.NewInt(1000), creator)
	assert.ErrorIs(t, err, pkgerrors.ErrTransferFailed)

	_, err = svc.GetRound(ctx, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	got, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Active, got.Status)

	counters, err := svc.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), counters.Rounds)
}

func TestSubmitValidation(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(1, 18))

	tests := []struct {
		name string
		sub  round.Submission
		err  error
	}{
		{
			name: "missing participant",
			sub:  round.Submission{RoundID: r.ID, ResultRef: "ipfs://r", Accuracy: 9000, Proof: []byte{0x01}},
			err:  pkgerrors.ErrInvalidInput,
		},
		{
			name: "missing result ref",
			sub:  round.Submission{RoundID: r.ID, Participant: "alice", Accuracy: 9000, Proof: []byte{0x01}},
			err:  pkgerrors.ErrInvalidInput,
		},
		{
			name: "trivial proof",
			sub:  round.Submission{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://r", Accuracy: 9000, Proof: []byte{0x00, 0x00}},
			err:  pkgerrors.ErrInvalidInput,
		},
		{
			name: "unknown round",
			sub:  round.Submission{RoundID: 99, Participant: "alice", ResultRef: "ipfs://r", Accuracy: 9000, Proof: []byte{0x01}},
			err:  pkgerrors.ErrNotFound,
		},
		{
			name: "below accuracy threshold",
			sub:  round.Submission{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://r", Accuracy: 7999, Proof: []byte{0x01}},
			err:  pkgerrors.ErrBelowAccuracyThreshold,
		},
		{
			name: "unstaked participant",
			sub:  round.Submission{RoundID: r.ID, Participant: "bob", ResultRef: "ipfs://r", Accuracy: 9000, Proof: []byte{0x01}},
			err:  pkgerrors.ErrInsufficientStake,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.sub)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func startTestRoundInMem(t *testing.T, svc Service, l interface {
	Mint(string, sdkmath.Int)
	Approve(context.Context, string, string, sdkmath.Int) error
}, pool sdkmath.Int,
) round.Round {
	t.Helper()
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)

	l.Mint(creator, pool)
	require.NoError(t, l.Approve(ctx, creator, escrowID, pool))

	r, err := svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, pool, creator)
	require.NoError(t, err)

	return r
}

func TestSubmitRecordsAndTracksBest(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(10, 18))
	fundAndStake(t, svc, l, "bob", sdkmath.NewIntWithDecimal(20, 18))

	sub, err := svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "alice",
		ResultRef:   "ipfs://alice",
		Accuracy:    9000,
		Proof:       []byte{0x64}, // 100
	})
	require.NoError(t, err)
	// 100 from the proof plus 10 whole staked tokens.
	assert.Equal(t, uint64(110), sub.Score)

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.BestPerformer)
	assert.Equal(t, uint64(9000), got.BestAccuracy)
	assert.Equal(t, "ipfs://alice", got.BestResultRef)
	assert.Equal(t, []string{"alice"}, got.Participants)

	// Equal accuracy does not displace the earlier best.
	_, err = svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "bob",
		ResultRef:   "ipfs://bob",
		Accuracy:    9000,
		Proof:       []byte{0x64},
	})
	require.NoError(t, err)

	got, err = svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.BestPerformer)
	assert.Len(t, got.Participants, 2)
}

func TestSubmitResubmissionOverwrites(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(1, 18))

	_, err := svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "alice",
		ResultRef:   "ipfs://v1",
		Accuracy:    8500,
		Proof:       []byte{0x01},
	})
	require.NoError(t, err)

	_, err = svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "alice",
		ResultRef:   "ipfs://v2",
		Accuracy:    9100,
		Proof:       []byte{0x02},
	})
	require.NoError(t, err)

	subs, err := svc.ListParticipants(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "ipfs://v2", subs[0].ResultRef)
	assert.Equal(t, uint64(9100), subs[0].Accuracy)

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(9100), got.BestAccuracy)
}

func TestSubmitAfterExpiry(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, clk, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(1, 18))

	clk.Add(25 * time.Hour)

	_, err := svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "alice",
		ResultRef:   "ipfs://late",
		Accuracy:    9000,
		Proof:       []byte{0x01},
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	active, err := svc.IsRoundActive(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestQuorumCompletesAndDistributes(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	pool := sdkmath.NewInt(1000)
	r := startTestRoundInMem(t, svc, l, pool)
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(10, 18))
	fundAndStake(t, svc, l, "bob", sdkmath.NewIntWithDecimal(20, 18))
	fundAndStake(t, svc, l, "carol", sdkmath.NewIntWithDecimal(30, 18))

	submissions := []round.Submission{
		{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://a", Accuracy: 9000, Proof: []byte{0x64}}, // score 110
		{RoundID: r.ID, Participant: "bob", ResultRef: "ipfs://b", Accuracy: 8950, Proof: []byte{0xc8}},   // score 220
		{RoundID: r.ID, Participant: "carol", ResultRef: "ipfs://c", Accuracy: 8920, Proof: []byte{0x6e}}, // score 140
	}
	for _, sub := range submissions {
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	m, err := svc.GetModel(ctx, got.ModelID)
	require.NoError(t, err)
	assert.Equal(t, model.Completed, m.Status)
	assert.Equal(t, pool.String(), m.TotalRewards.String())

	// Total score 470: floor splits of the 1000 pool, plus pool/10 bonus
	// for the best performer.
	tests := []struct {
		account string
		balance int64
	}{
		{account: "alice", balance: 234 + 100},
		{account: "bob", balance: 468},
		{account: "carol", balance: 297},
	}
	for _, tt := range tests {
		b, err := l.BalanceOf(ctx, tt.account)
		require.NoError(t, err)
		assert.Equal(t, sdkmath.NewInt(tt.balance).String(), b.String(), tt.account)
	}

	for account, reputation := range map[string]uint64{"alice": 90, "bob": 89, "carol": 89} {
		acct, err := svc.GetAccount(ctx, account)
		require.NoError(t, err)
		assert.Equal(t, reputation, acct.Reputation, account)
	}

	// Completed rounds accept no further submissions.
	_, err = svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "alice",
		ResultRef:   "ipfs://again",
		Accuracy:    9500,
		Proof:       []byte{0x01},
	})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)
}

func TestQuorumNotReachedOnSpreadAccuracies(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(1, 18))
	fundAndStake(t, svc, l, "bob", sdkmath.NewIntWithDecimal(1, 18))
	fundAndStake(t, svc, l, "carol", sdkmath.NewIntWithDecimal(1, 18))

	for _, sub := range []round.Submission{
		{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://a", Accuracy: 8500, Proof: []byte{0x01}},
		{RoundID: r.ID, Participant: "bob", ResultRef: "ipfs://b", Accuracy: 8550, Proof: []byte{0x01}},
		{RoundID: r.ID, Participant: "carol", ResultRef: "ipfs://c", Accuracy: 9000, Proof: []byte{0x01}},
	} {
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestZeroScoreCompletionSkipsDistribution(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	pool := sdkmath.NewInt(1000)
	r := startTestRoundInMem(t, svc, l, pool)

	// Stakes below one whole token and proofs that reduce to zero: every
	// score is zero.
	stake := model.MinStakeFloor
	for _, p := range []string{"alice", "bob", "carol"} {
		fundAndStake(t, svc, l, p, stake)
	}

	escrowBefore, err := l.BalanceOf(ctx, escrowID)
	require.NoError(t, err)

	for i, p := range []string{"alice", "bob", "carol"} {
		_, err := svc.Submit(ctx, round.Submission{
			RoundID:     r.ID,
			Participant: p,
			ResultRef:   fmt.Sprintf("ipfs://%d", i),
			Accuracy:    9000,
			Proof:       []byte{0x03, 0xe8}, // 1000, reduces to 0
		})
		require.NoError(t, err)
	}

	// The round still completes; the pool stays escrowed and reputation is
	// untouched.
	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	m, err := svc.GetModel(ctx, got.ModelID)
	require.NoError(t, err)
	assert.Equal(t, model.Completed, m.Status)
	assert.True(t, m.TotalRewards.IsZero())

	escrowAfter, err := l.BalanceOf(ctx, escrowID)
	require.NoError(t, err)
	assert.Equal(t, escrowBefore.String(), escrowAfter.String())

	acct, err := svc.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acct.Reputation)
}

func TestForceComplete(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, clk, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(10, 18))
	fundAndStake(t, svc, l, "bob", sdkmath.NewIntWithDecimal(20, 18))

	for _, sub := range []round.Submission{
		{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://a", Accuracy: 9000, Proof: []byte{0x64}}, // score 110
		{RoundID: r.ID, Participant: "bob", ResultRef: "ipfs://b", Accuracy: 8800, Proof: []byte{0x64}},   // score 120
	} {
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	// Still inside the window.
	_, err := svc.ForceComplete(ctx, r.ID, creator)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidState)

	clk.Add(25 * time.Hour)

	got, err := svc.ForceComplete(ctx, r.ID, creator)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	// Total score 230: floor(1000*110/230)=478, floor(1000*120/230)=521,
	// alice takes the 100 bonus as best performer.
	b, err := l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(578).String(), b.String())

	b, err = l.BalanceOf(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, sdkmath.NewInt(521).String(), b.String())

	_, err = svc.ForceComplete(ctx, r.ID, creator)
	assert.ErrorIs(t, err, pkgerrors.ErrAlreadyCompleted)
}

func TestForceCompleteUnknownRound(t *testing.T) {
	svc, _, _ := newTestService(ledger.NewInMemoryLedger(escrowID))

	_, err := svc.ForceComplete(context.Background(), 42, creator)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestCompletionTransferFailureRollsBack(t *testing.T) {
	tokens := &ledgermocks.MockLedger{}
	tokens.On("TransferFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tokens.On("Transfer", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	svc, _, _ := newTestService(tokens)
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)
	r, err := svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, sdkmath.NewInt(1000), creator)
	require.NoError(t, err)

	stake := sdkmath.NewIntWithDecimal(10, 18)
	for _, p := range []string{"alice", "bob", "carol"} {
		_, err := svc.Stake(ctx, p, stake)
		require.NoError(t, err)
	}

	subs := []round.Submission{
		{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://a", Accuracy: 9000, Proof: []byte{0x64}},
		{RoundID: r.ID, Participant: "bob", ResultRef: "ipfs://b", Accuracy: 8950, Proof: []byte{0x64}},
	}
	for _, sub := range subs {
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	// Third submission reaches quorum; the payout transfer fails, so the
	// whole completion rolls back, including the submission itself.
	_, err = svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "carol",
		ResultRef:   "ipfs://c",
		Accuracy:    8920,
		Proof:       []byte{0x64},
	})
	assert.ErrorIs(t, err, pkgerrors.ErrTransferFailed)

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
	assert.Len(t, got.Participants, 2)
	assert.NotContains(t, got.Members, "carol")

	_, err = svc.GetSubmission(ctx, r.ID, "carol")
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	mdl, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Training, mdl.Status)
}

func TestCompletionRetryAfterTransferFailure(t *testing.T) {
	tokens := &ledgermocks.MockLedger{}
	tokens.On("TransferFrom", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tokens.On("Transfer", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()
	tokens.On("Transfer", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc, _, _ := newTestService(tokens)
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, testModel())
	require.NoError(t, err)
	r, err := svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, sdkmath.NewInt(1000), creator)
	require.NoError(t, err)

	stake := sdkmath.NewIntWithDecimal(10, 18)
	for _, p := range []string{"alice", "bob", "carol"} {
		_, err := svc.Stake(ctx, p, stake)
		require.NoError(t, err)
	}

	subs := []round.Submission{
		{RoundID: r.ID, Participant: "alice", ResultRef: "ipfs://a", Accuracy: 9000, Proof: []byte{0x64}},
		{RoundID: r.ID, Participant: "bob", ResultRef: "ipfs://b", Accuracy: 8950, Proof: []byte{0x64}},
	}
	for _, sub := range subs {
		_, err := svc.Submit(ctx, sub)
		require.NoError(t, err)
	}

	carol := round.Submission{
		RoundID:     r.ID,
		Participant: "carol",
		ResultRef:   "ipfs://c",
		Accuracy:    8920,
		Proof:       []byte{0x64},
	}
	_, err = svc.Submit(ctx, carol)
	assert.ErrorIs(t, err, pkgerrors.ErrTransferFailed)

	// The rollback restored the two-member round, so the retry re-admits
	// carol and re-triggers completion.
	_, err = svc.Submit(ctx, carol)
	require.NoError(t, err)

	got, err := svc.GetRound(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, got.Completed)
	assert.Equal(t, []string{"alice", "bob", "carol"}, got.Participants)

	sub, err := svc.GetSubmission(ctx, r.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, uint64(110), sub.Score)

	mdl, err := svc.GetModel(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Completed, mdl.Status)
}

func TestSubmitCapacity(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	m, err := svc.CreateModel(ctx, model.Model{
		Creator:           creator,
		Name:              "mnist-classifier",
		ArtifactRef:       "ipfs://QmModel",
		MinStake:          model.MinStakeFloor,
		AccuracyThreshold: 1,
	})
	require.NoError(t, err)

	pool := sdkmath.NewInt(1000)
	l.Mint(creator, pool)
	require.NoError(t, l.Approve(ctx, creator, escrowID, pool))
	r, err := svc.StartRound(ctx, m.ID, "ipfs://QmDataset", 24*time.Hour, pool, creator)
	require.NoError(t, err)

	// Accuracies spaced beyond the agreement tolerance so quorum never
	// triggers while the round fills.
	for i := 0; i < round.MaxParticipants; i++ {
		p := fmt.Sprintf("participant-%02d", i)
		fundAndStake(t, svc, l, p, sdkmath.NewIntWithDecimal(1, 18))

		_, err := svc.Submit(ctx, round.Submission{
			RoundID:     r.ID,
			Participant: p,
			ResultRef:   "ipfs://" + p,
			Accuracy:    10000 - uint64(i)*200,
			Proof:       []byte{0x01},
		})
		require.NoError(t, err)
	}

	fundAndStake(t, svc, l, "latecomer", sdkmath.NewIntWithDecimal(1, 18))
	_, err = svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "latecomer",
		ResultRef:   "ipfs://late",
		Accuracy:    5000,
		Proof:       []byte{0x01},
	})
	assert.ErrorIs(t, err, pkgerrors.ErrCapacityExceeded)

	// Existing members may still resubmit at capacity.
	_, err = svc.Submit(ctx, round.Submission{
		RoundID:     r.ID,
		Participant: "participant-00",
		ResultRef:   "ipfs://update",
		Accuracy:    10000,
		Proof:       []byte{0x02},
	})
	require.NoError(t, err)
}

func TestSubmitCBOR(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(1, 18))

	payload, err := cbor.Marshal(map[string]any{
		"round_id":    r.ID,
		"participant": "alice",
		"result_ref":  "ipfs://cbor",
		"accuracy":    uint64(9000),
		"proof":       []byte{0x2a},
	})
	require.NoError(t, err)

	sub, err := svc.SubmitCBOR(ctx, payload)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub.Participant)
	assert.Equal(t, uint64(9000), sub.Accuracy)

	_, err = svc.SubmitCBOR(ctx, []byte("not cbor"))
	assert.Error(t, err)
}

func TestSubscribeIntake(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, pubsub := newTestService(l)
	ctx := context.Background()

	r := startTestRoundInMem(t, svc, l, sdkmath.NewInt(1000))
	fundAndStake(t, svc, l, "alice", sdkmath.NewIntWithDecimal(1, 18))

	pubsub.On("Subscribe", mock.Anything, baseTopic+"/rounds/submissions", mock.Anything).Return(nil)
	require.NoError(t, svc.Subscribe(ctx))

	handler, ok := pubsub.Calls[len(pubsub.Calls)-1].Arguments.Get(2).(mqtt.Handler)
	require.True(t, ok)

	err := handler(baseTopic+"/rounds/submissions", map[string]any{
		"round_id":    float64(r.ID),
		"participant": "alice",
		"result_ref":  "ipfs://mqtt",
		"accuracy":    float64(9000),
		"proof":       "Kg==", // 0x2a
	})
	require.NoError(t, err)

	sub, err := svc.GetSubmission(ctx, r.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "ipfs://mqtt", sub.ResultRef)

	err = handler(baseTopic+"/rounds/submissions", map[string]any{"round_id": "bogus"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)

	// Numbers must be exact non-negative integers, never truncated.
	for _, msg := range []map[string]any{
		{"round_id": 1.5, "participant": "alice", "result_ref": "ipfs://mqtt", "accuracy": float64(9000)},
		{"round_id": -1.0, "participant": "alice", "result_ref": "ipfs://mqtt", "accuracy": float64(9000)},
		{"round_id": float64(r.ID), "participant": "alice", "result_ref": "ipfs://mqtt", "accuracy": 9000.5},
		{"round_id": float64(r.ID), "participant": "alice", "result_ref": "ipfs://mqtt", "accuracy": float64(1 << 60)},
	} {
		err = handler(baseTopic+"/rounds/submissions", msg)
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidData)
	}
}

func TestListModelsAndRounds(t *testing.T) {
	l := ledger.NewInMemoryLedger(escrowID)
	svc, _, _ := newTestService(l)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.CreateModel(ctx, testModel())
		require.NoError(t, err)
	}

	page, err := svc.ListModels(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), page.Total)
	assert.Len(t, page.Models, 2)

	page, err = svc.ListModels(ctx, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Models, 1)

	rounds, err := svc.ListRounds(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rounds.Total)
}
