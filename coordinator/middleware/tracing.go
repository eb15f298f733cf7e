package middleware

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	"github.com/cotrain-ai/cotrain/round"
)

var _ coordinator.Service = (*tracingMiddleware)(nil)

type tracingMiddleware struct {
	tracer trace.Tracer
	svc    coordinator.Service
}

func Tracing(tracer trace.Tracer, svc coordinator.Service) coordinator.Service {
	return &tracingMiddleware{
		tracer: tracer,
		svc:    svc,
	}
}

func (tm *tracingMiddleware) CreateModel(ctx context.Context, m model.Model) (model.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "create-model", trace.WithAttributes(
		attribute.String("name", m.Name),
		attribute.String("creator", m.Creator),
	))
	defer span.End()

	return tm.svc.CreateModel(ctx, m)
}

func (tm *tracingMiddleware) GetModel(ctx context.Context, modelID uint64) (model.Model, error) {
	ctx, span := tm.tracer.Start(ctx, "get-model", trace.WithAttributes(
		attribute.Int64("model_id", int64(modelID)),
	))
	defer span.End()

	return tm.svc.GetModel(ctx, modelID)
}

func (tm *tracingMiddleware) ListModels(ctx context.Context, offset, limit uint64) (model.Page, error) {
	ctx, span := tm.tracer.Start(ctx, "list-models", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListModels(ctx, offset, limit)
}

func (tm *tracingMiddleware) Stake(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	ctx, span := tm.tracer.Start(ctx, "stake", trace.WithAttributes(
		attribute.String("participant_id", participantID),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	return tm.svc.Stake(ctx, participantID, amount)
}

func (tm *tracingMiddleware) Withdraw(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	ctx, span := tm.tracer.Start(ctx, "withdraw", trace.WithAttributes(
		attribute.String("participant_id", participantID),
		attribute.String("amount", amount.String()),
	))
	defer span.End()

	return tm.svc.Withdraw(ctx, participantID, amount)
}

func (tm *tracingMiddleware) GetAccount(ctx context.Context, participantID string) (participant.Account, error) {
	ctx, span := tm.tracer.Start(ctx, "get-account", trace.WithAttributes(
		attribute.String("participant_id", participantID),
	))
	defer span.End()

	return tm.svc.GetAccount(ctx, participantID)
}

func (tm *tracingMiddleware) StartRound(ctx context.Context, modelID uint64, datasetRef string, duration time.Duration, rewardPool sdkmath.Int, initiator string) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "start-round", trace.WithAttributes(
		attribute.Int64("model_id", int64(modelID)),
		attribute.String("dataset_ref", datasetRef),
		attribute.String("reward_pool", rewardPool.String()),
		attribute.String("initiator", initiator),
	))
	defer span.End()

	return tm.svc.StartRound(ctx, modelID, datasetRef, duration, rewardPool, initiator)
}

func (tm *tracingMiddleware) Submit(ctx context.Context, sub round.Submission) (round.Submission, error) {
	ctx, span := tm.tracer.Start(ctx, "submit", trace.WithAttributes(
		attribute.Int64("round_id", int64(sub.RoundID)),
		attribute.String("participant", sub.Participant),
	))
	defer span.End()

	return tm.svc.Submit(ctx, sub)
}

func (tm *tracingMiddleware) SubmitCBOR(ctx context.Context, data []byte) (round.Submission, error) {
	ctx, span := tm.tracer.Start(ctx, "submit-cbor", trace.WithAttributes(
		attribute.Int("payload_size", len(data)),
	))
	defer span.End()

	return tm.svc.SubmitCBOR(ctx, data)
}

func (tm *tracingMiddleware) ForceComplete(ctx context.Context, roundID uint64, caller string) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "force-complete", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
		attribute.String("caller", caller),
	))
	defer span.End()

	return tm.svc.ForceComplete(ctx, roundID, caller)
}

func (tm *tracingMiddleware) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	ctx, span := tm.tracer.Start(ctx, "get-round", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.GetRound(ctx, roundID)
}

func (tm *tracingMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	ctx, span := tm.tracer.Start(ctx, "list-rounds", trace.WithAttributes(
		attribute.Int64("offset", int64(offset)),
		attribute.Int64("limit", int64(limit)),
	))
	defer span.End()

	return tm.svc.ListRounds(ctx, offset, limit)
}

func (tm *tracingMiddleware) GetSubmission(ctx context.Context, roundID uint64, participantID string) (round.Submission, error) {
	ctx, span := tm.tracer.Start(ctx, "get-submission", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
		attribute.String("participant_id", participantID),
	))
	defer span.End()

	return tm.svc.GetSubmission(ctx, roundID, participantID)
}

func (tm *tracingMiddleware) ListParticipants(ctx context.Context, roundID uint64) ([]round.Submission, error) {
	ctx, span := tm.tracer.Start(ctx, "list-participants", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.ListParticipants(ctx, roundID)
}

func (tm *tracingMiddleware) IsRoundActive(ctx context.Context, roundID uint64) (bool, error) {
	ctx, span := tm.tracer.Start(ctx, "is-round-active", trace.WithAttributes(
		attribute.Int64("round_id", int64(roundID)),
	))
	defer span.End()

	return tm.svc.IsRoundActive(ctx, roundID)
}

func (tm *tracingMiddleware) Counters(ctx context.Context) (coordinator.Counters, error) {
	ctx, span := tm.tracer.Start(ctx, "counters")
	defer span.End()

	return tm.svc.Counters(ctx)
}

func (tm *tracingMiddleware) Subscribe(ctx context.Context) error {
	ctx, span := tm.tracer.Start(ctx, "subscribe")
	defer span.End()

	return tm.svc.Subscribe(ctx)
}
