package coordinator

import (
	"context"
	"log/slog"

	"github.com/benbjohnson/clock"

	"github.com/cotrain-ai/cotrain/pkg/cron"
)

const (
	sweeperCaller   = "sweeper"
	sweeperPageSize = 100
)

// Sweeper finalizes rounds whose window elapsed without reaching quorum.
// Participants can also trigger completion explicitly; the sweeper is the
// safety net for rounds nobody comes back to.
type Sweeper struct {
	svc      Service
	schedule *cron.Schedule
	clock    clock.Clock
	logger   *slog.Logger
}

func NewSweeper(svc Service, expr string, clk clock.Clock, logger *slog.Logger) (*Sweeper, error) {
	schedule, err := cron.Parse(expr)
	if err != nil {
		return nil, err
	}

	return &Sweeper{
		svc:      svc,
		schedule: schedule,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Run blocks, sweeping on each schedule activation until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		now := s.clock.Now()
		timer := s.clock.Timer(s.schedule.Next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()

			return nil
		case <-timer.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	var offset uint64
	for {
		page, err := s.svc.ListRounds(ctx, offset, sweeperPageSize)
		if err != nil {
			s.logger.WarnContext(ctx, "sweep failed to list rounds", slog.Any("error", err))

			return
		}

		for _, r := range page.Rounds {
			if r.Completed || !r.Expired(s.clock.Now()) {
				continue
			}
			if _, err := s.svc.ForceComplete(ctx, r.ID, sweeperCaller); err != nil {
				s.logger.WarnContext(ctx, "sweep failed to complete round",
					slog.Uint64("round_id", r.ID),
					slog.Any("error", err),
				)

				continue
			}
			s.logger.InfoContext(ctx, "expired round completed",
				slog.Uint64("round_id", r.ID),
			)
		}

		offset += uint64(len(page.Rounds))
		if len(page.Rounds) == 0 || offset >= page.Total {
			return
		}
	}
}
