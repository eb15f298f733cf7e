package model

import (
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
)

type Status uint8

const (
	Active Status = iota
	Training
	Completed
	Deprecated
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Training:
		return "Training"
	case Completed:
		return "Completed"
	case Deprecated:
		return "Deprecated"
	default:
		return "Unknown"
	}
}

// MinStakeFloor is the global lower bound for a model's minimum stake
// policy: 0.01 token at 18 decimals.
var MinStakeFloor = sdkmath.NewIntWithDecimal(1, 16)

// MaxAccuracyBps is the upper bound for accuracy values, in basis points.
const MaxAccuracyBps uint64 = 10000

// Model is a registered model. Creation metadata and policy fields are
// immutable; only Status and TotalRewards change over its life.
type Model struct {
	ID                uint64      `json:"id"`
	Creator           string      `json:"creator"`
	Name              string      `json:"name"`
	Description       string      `json:"description,omitempty"`
	ArtifactRef       string      `json:"artifact_ref"`
	Status            Status      `json:"status"`
	MinStake          sdkmath.Int `json:"min_stake"`
	AccuracyThreshold uint64      `json:"accuracy_threshold"`
	TotalRewards      sdkmath.Int `json:"total_rewards"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Key returns the storage key for a model.
func Key(id uint64) string {
	return strconv.FormatUint(id, 10)
}

type Page struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Models []Model `json:"models"`
}
