package middleware

import (
	"context"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	"github.com/cotrain-ai/cotrain/round"
)

var _ coordinator.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    coordinator.Service
}

func Logging(logger *slog.Logger, svc coordinator.Service) coordinator.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) CreateModel(ctx context.Context, m model.Model) (resp model.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("model",
				slog.String("name", m.Name),
				slog.String("creator", m.Creator),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Create model failed", args...)

			return
		}
		lm.logger.Info("Create model completed successfully", args...)
	}(time.Now())

	return lm.svc.CreateModel(ctx, m)
}

func (lm *loggingMiddleware) GetModel(ctx context.Context, modelID uint64) (resp model.Model, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("model_id", modelID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get model failed", args...)

			return
		}
		lm.logger.Info("Get model completed successfully", args...)
	}(time.Now())

	return lm.svc.GetModel(ctx, modelID)
}

func (lm *loggingMiddleware) ListModels(ctx context.Context, offset, limit uint64) (resp model.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List models failed", args...)

			return
		}
		lm.logger.Info("List models completed successfully", args...)
	}(time.Now())

	return lm.svc.ListModels(ctx, offset, limit)
}

func (lm *loggingMiddleware) Stake(ctx context.Context, participantID string, amount sdkmath.Int) (resp participant.Account, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", participantID),
				slog.String("amount", amount.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Stake failed", args...)

			return
		}
		lm.logger.Info("Stake completed successfully", args...)
	}(time.Now())

	return lm.svc.Stake(ctx, participantID, amount)
}

func (lm *loggingMiddleware) Withdraw(ctx context.Context, participantID string, amount sdkmath.Int) (resp participant.Account, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("participant",
				slog.String("id", participantID),
				slog.String("amount", amount.String()),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Withdraw failed", args...)

			return
		}
		lm.logger.Info("Withdraw completed successfully", args...)
	}(time.Now())

	return lm.svc.Withdraw(ctx, participantID, amount)
}

func (lm *loggingMiddleware) GetAccount(ctx context.Context, participantID string) (resp participant.Account, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("participant_id", participantID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get account failed", args...)

			return
		}
		lm.logger.Info("Get account completed successfully", args...)
	}(time.Now())

	return lm.svc.GetAccount(ctx, participantID)
}

func (lm *loggingMiddleware) StartRound(ctx context.Context, modelID uint64, datasetRef string, duration time.Duration, rewardPool sdkmath.Int, initiator string) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("round",
				slog.Uint64("model_id", modelID),
				slog.String("dataset_ref", datasetRef),
				slog.String("reward_pool", rewardPool.String()),
				slog.String("initiator", initiator),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Start round failed", args...)

			return
		}
		args = append(args, slog.Uint64("round_id", resp.ID))
		lm.logger.Info("Start round completed successfully", args...)
	}(time.Now())

	return lm.svc.StartRound(ctx, modelID, datasetRef, duration, rewardPool, initiator)
}

func (lm *loggingMiddleware) Submit(ctx context.Context, sub round.Submission) (resp round.Submission, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("submission",
				slog.Uint64("round_id", sub.RoundID),
				slog.String("participant", sub.Participant),
				slog.Uint64("accuracy", sub.Accuracy),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit failed", args...)

			return
		}
		lm.logger.Info("Submit completed successfully", args...)
	}(time.Now())

	return lm.svc.Submit(ctx, sub)
}

func (lm *loggingMiddleware) SubmitCBOR(ctx context.Context, data []byte) (resp round.Submission, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("payload_size", len(data)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Submit CBOR failed", args...)

			return
		}
		lm.logger.Info("Submit CBOR completed successfully", args...)
	}(time.Now())

	return lm.svc.SubmitCBOR(ctx, data)
}

func (lm *loggingMiddleware) ForceComplete(ctx context.Context, roundID uint64, caller string) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
			slog.String("caller", caller),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Force complete failed", args...)

			return
		}
		lm.logger.Info("Force complete completed successfully", args...)
	}(time.Now())

	return lm.svc.ForceComplete(ctx, roundID, caller)
}

func (lm *loggingMiddleware) GetRound(ctx context.Context, roundID uint64) (resp round.Round, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get round failed", args...)

			return
		}
		lm.logger.Info("Get round completed successfully", args...)
	}(time.Now())

	return lm.svc.GetRound(ctx, roundID)
}

func (lm *loggingMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (resp round.Page, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("offset", offset),
			slog.Uint64("limit", limit),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List rounds failed", args...)

			return
		}
		lm.logger.Info("List rounds completed successfully", args...)
	}(time.Now())

	return lm.svc.ListRounds(ctx, offset, limit)
}

func (lm *loggingMiddleware) GetSubmission(ctx context.Context, roundID uint64, participantID string) (resp round.Submission, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
			slog.String("participant_id", participantID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get submission failed", args...)

			return
		}
		lm.logger.Info("Get submission completed successfully", args...)
	}(time.Now())

	return lm.svc.GetSubmission(ctx, roundID, participantID)
}

func (lm *loggingMiddleware) ListParticipants(ctx context.Context, roundID uint64) (resp []round.Submission, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("List participants failed", args...)

			return
		}
		lm.logger.Info("List participants completed successfully", args...)
	}(time.Now())

	return lm.svc.ListParticipants(ctx, roundID)
}

func (lm *loggingMiddleware) IsRoundActive(ctx context.Context, roundID uint64) (resp bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Uint64("round_id", roundID),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Is round active failed", args...)

			return
		}
		lm.logger.Info("Is round active completed successfully", args...)
	}(time.Now())

	return lm.svc.IsRoundActive(ctx, roundID)
}

func (lm *loggingMiddleware) Counters(ctx context.Context) (resp coordinator.Counters, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Get counters failed", args...)

			return
		}
		lm.logger.Info("Get counters completed successfully", args...)
	}(time.Now())

	return lm.svc.Counters(ctx)
}

func (lm *loggingMiddleware) Subscribe(ctx context.Context) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Subscribe failed", args...)

			return
		}
		lm.logger.Info("Subscribe completed successfully", args...)
	}(time.Now())

	return lm.svc.Subscribe(ctx)
}
