// Package rewards computes the payout plan for a completed round. It is pure
// arithmetic over the round's submissions; the coordinator applies the plan
// (reputation writes, ledger transfers) inside its completion transaction.
package rewards

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cotrain-ai/cotrain/round"
)

const (
	// BonusDivisor: the best performer receives pool/10 on top of their
	// base reward, but only when the pool holds at least MinBonusPool.
	BonusDivisor = 10
	MinBonusPool = 10

	// ReputationDecayNumerator/Denominator express the 95% retention
	// applied to prior reputation before the accuracy term is added.
	ReputationDecayNumerator   = 95
	ReputationDecayDenominator = 100

	// accuracyToPoints scales reported accuracy from basis points to whole
	// reputation points.
	accuracyToPoints = 100
)

// Payout is a single reward-transfer instruction.
type Payout struct {
	Participant string      `json:"participant"`
	Amount      sdkmath.Int `json:"amount"`
}

// Plan is the full outcome of distribution for one round. When Distributed
// is false (zero total score) the plan carries no transfers and no
// reputation changes; the pool stays escrowed.
type Plan struct {
	Distributed bool
	TotalScore  uint64

	// Payouts holds base rewards in submission join order. Amounts may be
	// zero; the coordinator only attempts transfers for positive amounts.
	Payouts []Payout

	// Bonus for the round's recorded best performer, zero when the pool is
	// below MinBonusPool or no best performer was recorded.
	BestPerformer string
	Bonus         sdkmath.Int

	// Reputations maps every submitter to their post-round reputation.
	Reputations map[string]uint64
}

// Compute builds the distribution plan. Integer division truncates
// throughout; the residual of the base split is deliberately not
// distributed.
func Compute(pool sdkmath.Int, subs []round.Submission, bestPerformer string, priorReputation map[string]uint64) Plan {
	plan := Plan{Bonus: sdkmath.ZeroInt()}

	var totalScore uint64
	for _, s := range subs {
		totalScore += s.Score
	}
	plan.TotalScore = totalScore
	if totalScore == 0 {
		return plan
	}
	plan.Distributed = true

	total := sdkmath.NewIntFromUint64(totalScore)
	plan.Payouts = make([]Payout, 0, len(subs))
	plan.Reputations = make(map[string]uint64, len(subs))
	for _, s := range subs {
		amount := pool.Mul(sdkmath.NewIntFromUint64(s.Score)).Quo(total)
		plan.Payouts = append(plan.Payouts, Payout{
			Participant: s.Participant,
			Amount:      amount,
		})
		plan.Reputations[s.Participant] = NextReputation(priorReputation[s.Participant], s.Accuracy)
	}

	if bestPerformer != "" && pool.GTE(sdkmath.NewInt(MinBonusPool)) {
		plan.BestPerformer = bestPerformer
		plan.Bonus = pool.QuoRaw(BonusDivisor)
	}

	return plan
}

// NextReputation applies the per-round reputation update: 5% decay of the
// prior score plus the reported accuracy scaled to whole points.
func NextReputation(prior uint64, accuracy uint64) uint64 {
	return prior*ReputationDecayNumerator/ReputationDecayDenominator + accuracy/accuracyToPoints
}
