package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/benbjohnson/clock"

	"github.com/cotrain-ai/cotrain/consensus"
	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
	"github.com/cotrain-ai/cotrain/pkg/ledger"
	"github.com/cotrain-ai/cotrain/pkg/mqtt"
	"github.com/cotrain-ai/cotrain/pkg/storage"
	"github.com/cotrain-ai/cotrain/rewards"
	"github.com/cotrain-ai/cotrain/round"
)

const (
	counterModelsKey = "models"
	counterRoundsKey = "rounds"
)

type service struct {
	// mu serializes every mutating entry point: no two state-mutating
	// operations interleave, and none re-enters while a ledger call is
	// outstanding.
	mu sync.Mutex

	modelsDB      storage.Storage
	roundsDB      storage.Storage
	submissionsDB storage.Storage
	accountsDB    storage.Storage
	countersDB    storage.Storage

	tokens    ledger.Ledger
	escrow    string
	pubsub    mqtt.PubSub
	baseTopic string
	clock     clock.Clock
	logger    *slog.Logger
}

func NewService(modelsDB, roundsDB, submissionsDB, accountsDB, countersDB storage.Storage, tokens ledger.Ledger, escrow string, pubsub mqtt.PubSub, baseTopic string, clk clock.Clock, logger *slog.Logger) Service {
	return &service{
		modelsDB:      modelsDB,
		roundsDB:      roundsDB,
		submissionsDB: submissionsDB,
		accountsDB:    accountsDB,
		countersDB:    countersDB,
		tokens:        tokens,
		escrow:        escrow,
		pubsub:        pubsub,
		baseTopic:     baseTopic,
		clock:         clk,
		logger:        logger,
	}
}

func (svc *service) CreateModel(ctx context.Context, m model.Model) (model.Model, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if m.Name == "" || m.ArtifactRef == "" || m.Creator == "" {
		return model.Model{}, pkgerrors.ErrInvalidInput
	}
	if m.MinStake.IsNil() || m.MinStake.LT(model.MinStakeFloor) {
		return model.Model{}, pkgerrors.ErrInvalidInput
	}
	if m.AccuracyThreshold == 0 || m.AccuracyThreshold > model.MaxAccuracyBps {
		return model.Model{}, pkgerrors.ErrInvalidInput
	}

	var txn storage.Txn
	id, err := svc.allocateID(ctx, &txn, counterModelsKey)
	if err != nil {
		return model.Model{}, err
	}

	m.ID = id
	m.Status = model.Active
	m.TotalRewards = sdkmath.ZeroInt()
	m.CreatedAt = svc.clock.Now()

	if err := txn.Save(ctx, svc.modelsDB, model.Key(m.ID), m); err != nil {
		svc.rollback(ctx, &txn)

		return model.Model{}, err
	}

	svc.publish(ctx, topicModelCreated, map[string]any{
		"model_id":     m.ID,
		"creator":      m.Creator,
		"name":         m.Name,
		"artifact_ref": m.ArtifactRef,
		"min_stake":    m.MinStake.String(),
	})

	return m, nil
}

func (svc *service) GetModel(ctx context.Context, modelID uint64) (model.Model, error) {
	return svc.loadModel(ctx, modelID)
}

func (svc *service) ListModels(ctx context.Context, offset, limit uint64) (model.Page, error) {
	data, total, err := svc.modelsDB.List(ctx, offset, limit)
	if err != nil {
		return model.Page{}, err
	}

	models := make([]model.Model, 0, len(data))
	for i := range data {
		m, ok := data[i].(model.Model)
		if !ok {
			return model.Page{}, pkgerrors.ErrInvalidData
		}
		models = append(models, m)
	}

	return model.Page{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Models: models,
	}, nil
}

func (svc *service) Stake(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if participantID == "" || amount.IsNil() || !amount.IsPositive() {
		return participant.Account{}, pkgerrors.ErrInvalidInput
	}

	acct, err := svc.loadAccount(ctx, participantID)
	if err != nil {
		return participant.Account{}, err
	}
	acct.Stake = acct.Stake.Add(amount)

	var txn storage.Txn
	if err := txn.Save(ctx, svc.accountsDB, participantID, acct); err != nil {
		return participant.Account{}, err
	}

	if err := svc.tokens.TransferFrom(ctx, participantID, svc.escrow, amount); err != nil {
		svc.rollback(ctx, &txn)

		return participant.Account{}, errors.Join(pkgerrors.ErrTransferFailed, err)
	}

	return acct, nil
}

func (svc *service) Withdraw(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if participantID == "" || amount.IsNil() || !amount.IsPositive() {
		return participant.Account{}, pkgerrors.ErrInvalidInput
	}

	acct, err := svc.loadAccount(ctx, participantID)
	if err != nil {
		return participant.Account{}, err
	}
	if acct.Stake.LT(amount) {
		return participant.Account{}, pkgerrors.ErrInsufficientStake
	}
	acct.Stake = acct.Stake.Sub(amount)

	var txn storage.Txn
	if err := txn.Save(ctx, svc.accountsDB, participantID, acct); err != nil {
		return participant.Account{}, err
	}

	if err := svc.tokens.Transfer(ctx, participantID, amount); err != nil {
		svc.rollback(ctx, &txn)

		return participant.Account{}, errors.Join(pkgerrors.ErrTransferFailed, err)
	}

	return acct, nil
}

func (svc *service) GetAccount(ctx context.Context, participantID string) (participant.Account, error) {
	if participantID == "" {
		return participant.Account{}, pkgerrors.ErrInvalidInput
	}

	return svc.loadAccount(ctx, participantID)
}

func (svc *service) StartRound(ctx context.Context, modelID uint64, datasetRef string, duration time.Duration, rewardPool sdkmath.Int, initiator string) (round.Round, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if datasetRef == "" || initiator == "" {
		return round.Round{}, pkgerrors.ErrInvalidInput
	}
	if duration < round.MinDuration || duration > round.MaxDuration {
		return round.Round{}, pkgerrors.ErrInvalidInput
	}
	if rewardPool.IsNil() || !rewardPool.IsPositive() {
		return round.Round{}, pkgerrors.ErrInvalidInput
	}

	m, err := svc.loadModel(ctx, modelID)
	if err != nil {
		return round.Round{}, err
	}
	if m.Status != model.Active {
		return round.Round{}, pkgerrors.ErrInvalidState
	}
	if m.Creator != initiator {
		return round.Round{}, pkgerrors.ErrUnauthorized
	}

	var txn storage.Txn
	id, err := svc.allocateID(ctx, &txn, counterRoundsKey)
	if err != nil {
		return round.Round{}, err
	}

	now := svc.clock.Now()
	r := round.Round{
		ID:         id,
		ModelID:    modelID,
		DatasetRef: datasetRef,
		StartedAt:  now,
		EndsAt:     now.Add(duration),
		RewardPool: rewardPool,
		Members:    make(map[string]bool),
	}
	m.Status = model.Training

	if err := txn.Save(ctx, svc.roundsDB, round.Key(r.ID), r); err != nil {
		svc.rollback(ctx, &txn)

		return round.Round{}, err
	}
	if err := txn.Save(ctx, svc.modelsDB, model.Key(m.ID), m); err != nil {
		svc.rollback(ctx, &txn)

		return round.Round{}, err
	}

	if err := svc.tokens.TransferFrom(ctx, initiator, svc.escrow, rewardPool); err != nil {
		svc.rollback(ctx, &txn)

		return round.Round{}, errors.Join(pkgerrors.ErrTransferFailed, err)
	}

	svc.publish(ctx, topicRoundStarted, map[string]any{
		"round_id":    r.ID,
		"model_id":    r.ModelID,
		"dataset_ref": r.DatasetRef,
		"reward_pool": r.RewardPool.String(),
		"ends_at":     r.EndsAt,
	})

	return r, nil
}

func (svc *service) Submit(ctx context.Context, sub round.Submission) (round.Submission, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if sub.Participant == "" || sub.ResultRef == "" {
		return round.Submission{}, pkgerrors.ErrInvalidInput
	}
	if trivialProof(sub.Proof) {
		return round.Submission{}, pkgerrors.ErrInvalidInput
	}

	r, err := svc.loadRound(ctx, sub.RoundID)
	if err != nil {
		return round.Submission{}, err
	}
	if r.Completed {
		return round.Submission{}, pkgerrors.ErrInvalidState
	}
	now := svc.clock.Now()
	if r.Expired(now) {
		return round.Submission{}, pkgerrors.ErrInvalidState
	}

	m, err := svc.loadModel(ctx, r.ModelID)
	if err != nil {
		return round.Submission{}, err
	}
	acct, err := svc.loadAccount(ctx, sub.Participant)
	if err != nil {
		return round.Submission{}, err
	}
	if acct.Stake.LT(m.MinStake) {
		return round.Submission{}, pkgerrors.ErrInsufficientStake
	}
	if sub.Accuracy < m.AccuracyThreshold {
		return round.Submission{}, pkgerrors.ErrBelowAccuracyThreshold
	}

	joined := false
	if !r.Members[sub.Participant] {
		if len(r.Participants) >= round.MaxParticipants {
			return round.Submission{}, pkgerrors.ErrCapacityExceeded
		}
		if r.Members == nil {
			r.Members = make(map[string]bool)
		}
		r.Members[sub.Participant] = true
		r.Participants = append(r.Participants, sub.Participant)
		joined = true
	}

	sub.Stake = acct.Stake
	sub.Score = consensus.Score(sub.Proof, acct.Stake)
	sub.Validated = false
	sub.SubmittedAt = now

	// Strict > keeps the earlier submitter on an exact tie.
	if sub.Accuracy > r.BestAccuracy {
		r.BestAccuracy = sub.Accuracy
		r.BestPerformer = sub.Participant
		r.BestResultRef = sub.ResultRef
	}

	var txn storage.Txn
	if err := txn.Save(ctx, svc.submissionsDB, round.SubmissionKey(r.ID, sub.Participant), sub); err != nil {
		svc.rollback(ctx, &txn)

		return round.Submission{}, err
	}
	if err := txn.Save(ctx, svc.roundsDB, round.Key(r.ID), r); err != nil {
		svc.rollback(ctx, &txn)

		return round.Submission{}, err
	}

	subs, err := svc.roundSubmissions(ctx, r)
	if err != nil {
		svc.rollback(ctx, &txn)

		return round.Submission{}, err
	}

	var plan rewards.Plan
	completed := false
	if r.Expired(now) || consensus.Reached(r, subs) {
		plan, err = svc.complete(ctx, &txn, &r, &m, subs)
		if err != nil {
			svc.rollback(ctx, &txn)

			return round.Submission{}, err
		}
		completed = true
	}

	if joined {
		svc.publish(ctx, topicParticipantJoined, map[string]any{
			"round_id":    r.ID,
			"participant": sub.Participant,
			"stake":       sub.Stake.String(),
		})
	}
	svc.publish(ctx, topicSubmissionRecorded, map[string]any{
		"round_id":    r.ID,
		"participant": sub.Participant,
		"result_ref":  sub.ResultRef,
		"accuracy":    sub.Accuracy,
		"score":       sub.Score,
	})
	if completed {
		svc.publishCompletion(ctx, r, plan)
	}

	return sub, nil
}

func (svc *service) ForceComplete(ctx context.Context, roundID uint64, caller string) (round.Round, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	r, err := svc.loadRound(ctx, roundID)
	if err != nil {
		return round.Round{}, err
	}
	if r.Completed {
		return round.Round{}, pkgerrors.ErrAlreadyCompleted
	}
	if !r.Expired(svc.clock.Now()) {
		return round.Round{}, pkgerrors.ErrInvalidState
	}

	m, err := svc.loadModel(ctx, r.ModelID)
	if err != nil {
		return round.Round{}, err
	}
	subs, err := svc.roundSubmissions(ctx, r)
	if err != nil {
		return round.Round{}, err
	}

	var txn storage.Txn
	plan, err := svc.complete(ctx, &txn, &r, &m, subs)
	if err != nil {
		svc.rollback(ctx, &txn)

		return round.Round{}, err
	}

	svc.logger.InfoContext(ctx, "round force-completed",
		slog.Uint64("round_id", r.ID),
		slog.String("caller", caller),
	)
	svc.publishCompletion(ctx, r, plan)

	return r, nil
}

// complete runs the shared completion path: guard, distribution plan,
// internal state writes through txn, then the external payout transfers.
// Callers roll the txn back when it fails.
func (svc *service) complete(ctx context.Context, txn *storage.Txn, r *round.Round, m *model.Model, subs []round.Submission) (rewards.Plan, error) {
	if r.Completed {
		return rewards.Plan{}, pkgerrors.ErrAlreadyCompleted
	}
	if m.Status != model.Training {
		return rewards.Plan{}, pkgerrors.ErrInvalidState
	}

	priors := make(map[string]uint64, len(subs))
	accts := make(map[string]participant.Account, len(subs))
	for _, s := range subs {
		acct, err := svc.loadAccount(ctx, s.Participant)
		if err != nil {
			return rewards.Plan{}, err
		}
		priors[s.Participant] = acct.Reputation
		accts[s.Participant] = acct
	}

	plan := rewards.Compute(r.RewardPool, subs, r.BestPerformer, priors)

	r.Completed = true
	m.Status = model.Completed
	if plan.Distributed {
		m.TotalRewards = m.TotalRewards.Add(r.RewardPool)
	}

	if err := txn.Save(ctx, svc.roundsDB, round.Key(r.ID), *r); err != nil {
		return rewards.Plan{}, err
	}
	if err := txn.Save(ctx, svc.modelsDB, model.Key(m.ID), *m); err != nil {
		return rewards.Plan{}, err
	}
	if plan.Distributed {
		for _, s := range subs {
			acct := accts[s.Participant]
			acct.Reputation = plan.Reputations[s.Participant]
			if err := txn.Save(ctx, svc.accountsDB, s.Participant, acct); err != nil {
				return rewards.Plan{}, err
			}
		}
	}

	// Internal state is final; external transfers come last so a failure
	// rolls back the whole completion.
	if plan.Distributed {
		for _, p := range plan.Payouts {
			if !p.Amount.IsPositive() {
				continue
			}
			if err := svc.tokens.Transfer(ctx, p.Participant, p.Amount); err != nil {
				return rewards.Plan{}, errors.Join(pkgerrors.ErrTransferFailed, err)
			}
		}
		if plan.BestPerformer != "" && plan.Bonus.IsPositive() {
			if err := svc.tokens.Transfer(ctx, plan.BestPerformer, plan.Bonus); err != nil {
				return rewards.Plan{}, errors.Join(pkgerrors.ErrTransferFailed, err)
			}
		}
	}

	return plan, nil
}

func (svc *service) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	return svc.loadRound(ctx, roundID)
}

func (svc *service) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	data, total, err := svc.roundsDB.List(ctx, offset, limit)
	if err != nil {
		return round.Page{}, err
	}

	rounds := make([]round.Round, 0, len(data))
	for i := range data {
		r, ok := data[i].(round.Round)
		if !ok {
			return round.Page{}, pkgerrors.ErrInvalidData
		}
		rounds = append(rounds, r)
	}

	return round.Page{
		Offset: offset,
		Limit:  limit,
		Total:  total,
		Rounds: rounds,
	}, nil
}

func (svc *service) GetSubmission(ctx context.Context, roundID uint64, participantID string) (round.Submission, error) {
	if participantID == "" {
		return round.Submission{}, pkgerrors.ErrInvalidInput
	}

	data, err := svc.submissionsDB.Get(ctx, round.SubmissionKey(roundID, participantID))
	if err != nil {
		return round.Submission{}, err
	}
	sub, ok := data.(round.Submission)
	if !ok {
		return round.Submission{}, pkgerrors.ErrInvalidData
	}

	return sub, nil
}

func (svc *service) ListParticipants(ctx context.Context, roundID uint64) ([]round.Submission, error) {
	r, err := svc.loadRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	return svc.roundSubmissions(ctx, r)
}

func (svc *service) IsRoundActive(ctx context.Context, roundID uint64) (bool, error) {
	r, err := svc.loadRound(ctx, roundID)
	if err != nil {
		return false, err
	}

	return r.Active(svc.clock.Now()), nil
}

func (svc *service) Counters(ctx context.Context) (Counters, error) {
	models, err := svc.counter(ctx, counterModelsKey)
	if err != nil {
		return Counters{}, err
	}
	rounds, err := svc.counter(ctx, counterRoundsKey)
	if err != nil {
		return Counters{}, err
	}

	return Counters{Models: models, Rounds: rounds}, nil
}

func (svc *service) loadModel(ctx context.Context, id uint64) (model.Model, error) {
	data, err := svc.modelsDB.Get(ctx, model.Key(id))
	if err != nil {
		return model.Model{}, err
	}
	m, ok := data.(model.Model)
	if !ok {
		return model.Model{}, pkgerrors.ErrInvalidData
	}

	return m, nil
}

func (svc *service) loadRound(ctx context.Context, id uint64) (round.Round, error) {
	data, err := svc.roundsDB.Get(ctx, round.Key(id))
	if err != nil {
		return round.Round{}, err
	}
	r, ok := data.(round.Round)
	if !ok {
		return round.Round{}, pkgerrors.ErrInvalidData
	}

	// Detach membership state from the stored value: mutations must only
	// reach storage through a txn Save, never through an aliased map.
	r.Members = maps.Clone(r.Members)
	r.Participants = slices.Clone(r.Participants)

	return r, nil
}

func (svc *service) loadAccount(ctx context.Context, id string) (participant.Account, error) {
	data, err := svc.accountsDB.Get(ctx, id)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return participant.NewAccount(id), nil
	}
	if err != nil {
		return participant.Account{}, err
	}
	acct, ok := data.(participant.Account)
	if !ok {
		return participant.Account{}, pkgerrors.ErrInvalidData
	}

	return acct, nil
}

// roundSubmissions returns the round's submission records in join order.
func (svc *service) roundSubmissions(ctx context.Context, r round.Round) ([]round.Submission, error) {
	subs := make([]round.Submission, 0, len(r.Participants))
	for _, p := range r.Participants {
		data, err := svc.submissionsDB.Get(ctx, round.SubmissionKey(r.ID, p))
		if err != nil {
			return nil, err
		}
		sub, ok := data.(round.Submission)
		if !ok {
			return nil, pkgerrors.ErrInvalidData
		}
		subs = append(subs, sub)
	}

	return subs, nil
}

func (svc *service) allocateID(ctx context.Context, txn *storage.Txn, key string) (uint64, error) {
	current, err := svc.counter(ctx, key)
	if err != nil {
		return 0, err
	}
	next := current + 1
	if err := txn.Save(ctx, svc.countersDB, key, next); err != nil {
		return 0, err
	}

	return next, nil
}

func (svc *service) counter(ctx context.Context, key string) (uint64, error) {
	data, err := svc.countersDB.Get(ctx, key)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, ok := data.(uint64)
	if !ok {
		return 0, pkgerrors.ErrInvalidData
	}

	return n, nil
}

func (svc *service) rollback(ctx context.Context, txn *storage.Txn) {
	if err := txn.Rollback(ctx); err != nil {
		svc.logger.ErrorContext(ctx, "failed to roll back transaction", slog.Any("error", err))
	}
}

func trivialProof(proof []byte) bool {
	for _, b := range proof {
		if b != 0 {
			return false
		}
	}

	return true
}
