package coordinator

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"

	"github.com/fxamacker/cbor/v2"

	pkgerrors "github.com/cotrain-ai/cotrain/pkg/errors"
	"github.com/cotrain-ai/cotrain/rewards"
	"github.com/cotrain-ai/cotrain/round"
)

// Notification subtopics, published under the service base topic.
const (
	topicModelCreated       = "models/created"
	topicRoundStarted       = "rounds/started"
	topicParticipantJoined  = "rounds/participants/joined"
	topicSubmissionRecorded = "rounds/submissions/recorded"
	topicRoundCompleted     = "rounds/completed"
	topicRewardsDistributed = "rounds/rewards/distributed"

	// topicSubmissionIntake is the inbound topic carrying submissions from
	// contributors.
	topicSubmissionIntake = "rounds/submissions"
)

// submissionEnvelope is the wire form of an inbound submission, shared by
// the CBOR intake and the MQTT handler. Stake and score are always derived
// server-side.
type submissionEnvelope struct {
	RoundID     uint64 `json:"round_id"     cbor:"round_id"`
	Participant string `json:"participant"  cbor:"participant"`
	ResultRef   string `json:"result_ref"   cbor:"result_ref"`
	Accuracy    uint64 `json:"accuracy"     cbor:"accuracy"`
	Proof       []byte `json:"proof"        cbor:"proof"`
}

func (e submissionEnvelope) submission() round.Submission {
	return round.Submission{
		RoundID:     e.RoundID,
		Participant: e.Participant,
		ResultRef:   e.ResultRef,
		Accuracy:    e.Accuracy,
		Proof:       e.Proof,
	}
}

func (svc *service) SubmitCBOR(ctx context.Context, data []byte) (round.Submission, error) {
	var env submissionEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return round.Submission{}, fmt.Errorf("failed to decode CBOR submission: %w", err)
	}

	return svc.Submit(ctx, env.submission())
}

// Subscribe attaches the MQTT submission intake: contributors publish JSON
// submissions to <base>/rounds/submissions.
func (svc *service) Subscribe(ctx context.Context) error {
	topic := svc.baseTopic + "/" + topicSubmissionIntake

	return svc.pubsub.Subscribe(ctx, topic, func(_ string, msg map[string]any) error {
		env, err := envelopeFromMap(msg)
		if err != nil {
			return err
		}
		if _, err := svc.Submit(ctx, env.submission()); err != nil {
			return err
		}

		svc.logger.InfoContext(ctx, "submission accepted over MQTT",
			slog.Uint64("round_id", env.RoundID),
			slog.String("participant", env.Participant),
		)

		return nil
	})
}

// maxExactUint is the largest integer a float64 decoded from JSON still
// represents exactly.
const maxExactUint = uint64(1) << 53

// uintField reads a JSON number as an exact non-negative integer. Fractional
// or out-of-range values are invalid rather than silently truncated.
func uintField(msg map[string]any, key string) (uint64, error) {
	f, ok := msg[key].(float64)
	if !ok || f < 0 || f != math.Trunc(f) || f > float64(maxExactUint) {
		return 0, pkgerrors.ErrInvalidData
	}

	return uint64(f), nil
}

func envelopeFromMap(msg map[string]any) (submissionEnvelope, error) {
	var env submissionEnvelope

	var err error
	if env.RoundID, err = uintField(msg, "round_id"); err != nil {
		return env, err
	}

	var ok bool
	if env.Participant, ok = msg["participant"].(string); !ok {
		return env, pkgerrors.ErrInvalidData
	}
	if env.ResultRef, ok = msg["result_ref"].(string); !ok {
		return env, pkgerrors.ErrInvalidData
	}

	if env.Accuracy, err = uintField(msg, "accuracy"); err != nil {
		return env, err
	}

	if proof, ok := msg["proof"].(string); ok {
		decoded, err := base64.StdEncoding.DecodeString(proof)
		if err != nil {
			return env, pkgerrors.ErrInvalidData
		}
		env.Proof = decoded
	}

	return env, nil
}

// publish emits a notification. Notifications are observable side effects:
// a broker failure is logged and never fails the operation that emitted it.
func (svc *service) publish(ctx context.Context, subtopic string, payload map[string]any) {
	topic := svc.baseTopic + "/" + subtopic
	if err := svc.pubsub.Publish(ctx, topic, payload); err != nil {
		svc.logger.WarnContext(ctx, "failed to publish notification",
			slog.String("topic", topic),
			slog.Any("error", err),
		)
	}
}

func (svc *service) publishCompletion(ctx context.Context, r round.Round, plan rewards.Plan) {
	svc.publish(ctx, topicRoundCompleted, map[string]any{
		"round_id":       r.ID,
		"model_id":       r.ModelID,
		"best_performer": r.BestPerformer,
		"best_accuracy":  r.BestAccuracy,
		"participants":   len(r.Participants),
	})

	if !plan.Distributed {
		return
	}

	payouts := make([]map[string]any, 0, len(plan.Payouts))
	for _, p := range plan.Payouts {
		payouts = append(payouts, map[string]any{
			"participant": p.Participant,
			"amount":      p.Amount.String(),
		})
	}
	svc.publish(ctx, topicRewardsDistributed, map[string]any{
		"round_id":       r.ID,
		"reward_pool":    r.RewardPool.String(),
		"payouts":        payouts,
		"best_performer": plan.BestPerformer,
		"bonus":          plan.Bonus.String(),
	})
}
