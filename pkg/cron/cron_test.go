package cron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		err  error
	}{
		{name: "every five minutes", expr: "*/5 * * * *"},
		{name: "hourly", expr: "0 * * * *"},
		{name: "empty", expr: "", err: ErrInvalidExpression},
		{name: "malformed", expr: "not a schedule", err: ErrInvalidExpression},
		{name: "six fields", expr: "0 0 * * * *", err: ErrInvalidExpression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Parse(tt.expr)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)

				return
			}
			require.NoError(t, err)
			assert.NotNil(t, s)
		})
	}
}

func TestNext(t *testing.T) {
	s, err := Parse("*/5 * * * *")
	require.NoError(t, err)

	from := time.Date(2025, 1, 1, 12, 2, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 5, 0, 0, time.UTC), s.Next(from))

	var nilSchedule *Schedule
	assert.True(t, nilSchedule.Next(from).IsZero())
}
