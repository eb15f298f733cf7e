package round

import (
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
)

const (
	MinDuration = time.Hour
	MaxDuration = 7 * 24 * time.Hour

	MaxParticipants = 50
)

// Round is a time-boxed contribution window for one model, with an escrowed
// reward pool. Completed is monotonic and BestAccuracy is non-decreasing.
type Round struct {
	ID         uint64      `json:"id"`
	ModelID    uint64      `json:"model_id"`
	DatasetRef string      `json:"dataset_ref"`
	StartedAt  time.Time   `json:"started_at"`
	EndsAt     time.Time   `json:"ends_at"`
	RewardPool sdkmath.Int `json:"reward_pool"`
	// Participants holds identities in join order; Members is the
	// membership index so admission checks stay O(1).
	Participants []string        `json:"participants"`
	Members      map[string]bool `json:"members,omitempty"`
	Completed    bool            `json:"completed"`

	BestResultRef string `json:"best_result_ref,omitempty"`
	BestPerformer string `json:"best_performer,omitempty"`
	BestAccuracy  uint64 `json:"best_accuracy"`
}

// Expired reports whether the submission window has closed.
func (r Round) Expired(now time.Time) bool {
	return now.After(r.EndsAt)
}

// Active reports whether the round is open: within its window and not
// completed.
func (r Round) Active(now time.Time) bool {
	return !r.Completed && !now.Before(r.StartedAt) && !now.After(r.EndsAt)
}

// Submission is a participant's result record for one round. At most one
// exists per (round, participant); re-submitting before completion
// overwrites it.
type Submission struct {
	RoundID     uint64      `json:"round_id"`
	Participant string      `json:"participant"`
	ResultRef   string      `json:"result_ref"`
	Accuracy    uint64      `json:"accuracy"`
	Proof       []byte      `json:"proof"`
	Stake       sdkmath.Int `json:"stake"`
	Score       uint64      `json:"score"`
	Validated   bool        `json:"validated"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

type Page struct {
	Offset uint64  `json:"offset"`
	Limit  uint64  `json:"limit"`
	Total  uint64  `json:"total"`
	Rounds []Round `json:"rounds"`
}

// Key returns the storage key for a round.
func Key(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// SubmissionKey returns the storage key for a (round, participant) record.
func SubmissionKey(roundID uint64, participant string) string {
	return strconv.FormatUint(roundID, 10) + ":" + participant
}
