// Package cron parses the five-field schedule expressions driving the
// coordinator's background sweeps.
package cron

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidExpression = errors.New("invalid cron expression")

type Schedule struct {
	spec cron.Schedule
}

func Parse(expr string) (*Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidExpression
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	spec, err := parser.Parse(expr)
	if err != nil {
		return nil, ErrInvalidExpression
	}

	return &Schedule{spec: spec}, nil
}

// Next returns the first activation after from.
func (s *Schedule) Next(from time.Time) time.Time {
	if s == nil || s.spec == nil {
		return time.Time{}
	}

	return s.spec.Next(from)
}
