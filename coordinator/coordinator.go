package coordinator

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	"github.com/cotrain-ai/cotrain/round"
)

// Counters carries the current id allocators, for observability and tests.
type Counters struct {
	Models uint64 `json:"models"`
	Rounds uint64 `json:"rounds"`
}

// Service is the training-coordination engine: model registry, participant
// ledger, round lifecycle and reward distribution. Every mutating operation
// is serialized and all-or-nothing.
type Service interface {
	CreateModel(ctx context.Context, m model.Model) (model.Model, error)
	GetModel(ctx context.Context, modelID uint64) (model.Model, error)
	ListModels(ctx context.Context, offset, limit uint64) (model.Page, error)

	Stake(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error)
	Withdraw(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error)
	GetAccount(ctx context.Context, participantID string) (participant.Account, error)

	StartRound(ctx context.Context, modelID uint64, datasetRef string, duration time.Duration, rewardPool sdkmath.Int, initiator string) (round.Round, error)
	Submit(ctx context.Context, sub round.Submission) (round.Submission, error)
	SubmitCBOR(ctx context.Context, data []byte) (round.Submission, error)
	ForceComplete(ctx context.Context, roundID uint64, caller string) (round.Round, error)

	GetRound(ctx context.Context, roundID uint64) (round.Round, error)
	ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error)
	GetSubmission(ctx context.Context, roundID uint64, participantID string) (round.Submission, error)
	ListParticipants(ctx context.Context, roundID uint64) ([]round.Submission, error)
	IsRoundActive(ctx context.Context, roundID uint64) (bool, error)
	Counters(ctx context.Context) (Counters, error)

	Subscribe(ctx context.Context) error
}
