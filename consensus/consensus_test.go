package consensus

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"

	"github.com/cotrain-ai/cotrain/round"
)

func subs(accuracies ...uint64) []round.Submission {
	s := make([]round.Submission, 0, len(accuracies))
	for _, a := range accuracies {
		s = append(s, round.Submission{Accuracy: a})
	}

	return s
}

func TestReached(t *testing.T) {
	tests := []struct {
		name       string
		best       uint64
		accuracies []uint64
		reached    bool
	}{
		{
			name:       "below minimum quorum size",
			best:       9000,
			accuracies: []uint64{9000, 9000},
			reached:    false,
		},
		{
			name:       "all agree at minimum size",
			best:       9000,
			accuracies: []uint64{9000, 8950, 8920},
			reached:    true,
		},
		{
			name:       "tolerance boundary is inclusive",
			best:       9000,
			accuracies: []uint64{9000, 8900, 8900},
			reached:    true,
		},
		{
			name:       "one past the tolerance boundary",
			best:       9000,
			accuracies: []uint64{9000, 8899, 8899},
			reached:    false,
		},
		{
			name:       "spread submissions do not agree",
			best:       9000,
			accuracies: []uint64{8500, 8550, 9000},
			reached:    false,
		},
		{
			name:       "two thirds of four rounds up to three",
			best:       9000,
			accuracies: []uint64{9000, 8950, 8920, 8000},
			reached:    true,
		},
		{
			name:       "two agreeing of four is below ceiling",
			best:       9000,
			accuracies: []uint64{9000, 8950, 8000, 8000},
			reached:    false,
		},
		{
			name:       "four agreeing of six meets ceiling",
			best:       9000,
			accuracies: []uint64{9000, 8950, 8920, 8910, 8000, 7000},
			reached:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := round.Round{BestAccuracy: tt.best}
			assert.Equal(t, tt.reached, Reached(r, subs(tt.accuracies...)))
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name  string
		proof []byte
		stake sdkmath.Int
		score uint64
	}{
		{
			name:  "empty proof and zero stake",
			proof: nil,
			stake: sdkmath.ZeroInt(),
			score: 0,
		},
		{
			name:  "proof value below modulus",
			proof: []byte{0x01, 0xc8}, // 456
			stake: sdkmath.ZeroInt(),
			score: 456,
		},
		{
			name:  "proof value wraps at modulus",
			proof: []byte{0x04, 0x00}, // 1024
			stake: sdkmath.ZeroInt(),
			score: 24,
		},
		{
			name:  "stake counted in whole tokens",
			proof: []byte{0x7b}, // 123
			stake: sdkmath.NewIntWithDecimal(5, 18),
			score: 128,
		},
		{
			name:  "fractional token truncates",
			proof: []byte{0x01},
			stake: sdkmath.NewIntWithDecimal(19, 17), // 1.9 tokens
			score: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.score, Score(tt.proof, tt.stake))
		})
	}
}
