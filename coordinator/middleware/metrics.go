package middleware

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/go-kit/kit/metrics"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	"github.com/cotrain-ai/cotrain/round"
)

var _ coordinator.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     coordinator.Service
}

func Metrics(counter metrics.Counter, latency metrics.Histogram, svc coordinator.Service) coordinator.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) CreateModel(ctx context.Context, m model.Model) (model.Model, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "create-model").Add(1)
		mm.latency.With("method", "create-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.CreateModel(ctx, m)
}

func (mm *metricsMiddleware) GetModel(ctx context.Context, modelID uint64) (model.Model, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-model").Add(1)
		mm.latency.With("method", "get-model").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetModel(ctx, modelID)
}

func (mm *metricsMiddleware) ListModels(ctx context.Context, offset, limit uint64) (model.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-models").Add(1)
		mm.latency.With("method", "list-models").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListModels(ctx, offset, limit)
}

func (mm *metricsMiddleware) Stake(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "stake").Add(1)
		mm.latency.With("method", "stake").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Stake(ctx, participantID, amount)
}

func (mm *metricsMiddleware) Withdraw(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "withdraw").Add(1)
		mm.latency.With("method", "withdraw").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Withdraw(ctx, participantID, amount)
}

func (mm *metricsMiddleware) GetAccount(ctx context.Context, participantID string) (participant.Account, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-account").Add(1)
		mm.latency.With("method", "get-account").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetAccount(ctx, participantID)
}

func (mm *metricsMiddleware) StartRound(ctx context.Context, modelID uint64, datasetRef string, duration time.Duration, rewardPool sdkmath.Int, initiator string) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "start-round").Add(1)
		mm.latency.With("method", "start-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.StartRound(ctx, modelID, datasetRef, duration, rewardPool, initiator)
}

func (mm *metricsMiddleware) Submit(ctx context.Context, sub round.Submission) (round.Submission, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit").Add(1)
		mm.latency.With("method", "submit").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Submit(ctx, sub)
}

func (mm *metricsMiddleware) SubmitCBOR(ctx context.Context, data []byte) (round.Submission, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "submit-cbor").Add(1)
		mm.latency.With("method", "submit-cbor").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.SubmitCBOR(ctx, data)
}

func (mm *metricsMiddleware) ForceComplete(ctx context.Context, roundID uint64, caller string) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "force-complete").Add(1)
		mm.latency.With("method", "force-complete").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ForceComplete(ctx, roundID, caller)
}

func (mm *metricsMiddleware) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-round").Add(1)
		mm.latency.With("method", "get-round").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetRound(ctx, roundID)
}

func (mm *metricsMiddleware) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-rounds").Add(1)
		mm.latency.With("method", "list-rounds").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListRounds(ctx, offset, limit)
}

func (mm *metricsMiddleware) GetSubmission(ctx context.Context, roundID uint64, participantID string) (round.Submission, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "get-submission").Add(1)
		mm.latency.With("method", "get-submission").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.GetSubmission(ctx, roundID, participantID)
}

func (mm *metricsMiddleware) ListParticipants(ctx context.Context, roundID uint64) ([]round.Submission, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "list-participants").Add(1)
		mm.latency.With("method", "list-participants").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.ListParticipants(ctx, roundID)
}

func (mm *metricsMiddleware) IsRoundActive(ctx context.Context, roundID uint64) (bool, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "is-round-active").Add(1)
		mm.latency.With("method", "is-round-active").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.IsRoundActive(ctx, roundID)
}

func (mm *metricsMiddleware) Counters(ctx context.Context) (coordinator.Counters, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "counters").Add(1)
		mm.latency.With("method", "counters").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Counters(ctx)
}

func (mm *metricsMiddleware) Subscribe(ctx context.Context) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "subscribe").Add(1)
		mm.latency.With("method", "subscribe").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Subscribe(ctx)
}
