// Package consensus holds the pure quorum-detection and contribution-score
// arithmetic. It never touches storage or the ledger; the coordinator feeds
// it a round and its recorded submissions.
package consensus

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/cotrain-ai/cotrain/round"
)

const (
	// MinQuorum is the minimum number of submitters before quorum can be
	// evaluated at all.
	MinQuorum = 3

	// QuorumNumerator/QuorumDenominator express the 2/3 agreement fraction.
	QuorumNumerator   = 2
	QuorumDenominator = 3

	// ToleranceBps is the absolute accuracy tolerance around the round's
	// current best, in basis points. The boundary is inclusive.
	ToleranceBps uint64 = 100

	proofModulus = 1000
)

var tokenUnit = sdkmath.NewIntWithDecimal(1, 18)

// Reached reports whether the round's submissions have reached quorum
// agreement: at least MinQuorum submitters, of which at least ceil(2/3)
// report an accuracy within ToleranceBps (inclusive) of the current best.
// The comparison is symmetric absolute difference.
func Reached(r round.Round, subs []round.Submission) bool {
	n := len(subs)
	if n < MinQuorum {
		return false
	}

	required := (QuorumNumerator*n + QuorumDenominator - 1) / QuorumDenominator

	agreeing := 0
	for _, s := range subs {
		if withinTolerance(s.Accuracy, r.BestAccuracy) {
			agreeing++
		}
	}

	return agreeing >= required
}

func withinTolerance(accuracy, best uint64) bool {
	var diff uint64
	if accuracy > best {
		diff = accuracy - best
	} else {
		diff = best - accuracy
	}

	return diff <= ToleranceBps
}

// Score derives a submission's contribution weight: the proof bytes taken as
// an unsigned integer mod 1000, plus the stake expressed in whole tokens with
// truncating division. Reward splitting depends on reproducing this exactly.
func Score(proof []byte, stake sdkmath.Int) uint64 {
	p := new(big.Int).SetBytes(proof)
	p.Mod(p, big.NewInt(proofModulus))

	return p.Uint64() + stake.Quo(tokenUnit).Uint64()
}
