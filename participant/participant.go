package participant

import (
	sdkmath "cosmossdk.io/math"
)

// Account tracks a participant's staked balance and reputation score. The
// coordinator is the sole writer: stake moves through Stake/Withdraw and
// reputation only through reward distribution.
type Account struct {
	ID         string      `json:"id"`
	Stake      sdkmath.Int `json:"stake"`
	Reputation uint64      `json:"reputation"`
}

// NewAccount returns a zero-valued account for an identity never seen
// before. Stake must never be a nil Int.
func NewAccount(id string) Account {
	return Account{
		ID:    id,
		Stake: sdkmath.ZeroInt(),
	}
}
