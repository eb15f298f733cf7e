package mocks

import (
	"context"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/mock"

	"github.com/cotrain-ai/cotrain/coordinator"
	"github.com/cotrain-ai/cotrain/model"
	"github.com/cotrain-ai/cotrain/participant"
	"github.com/cotrain-ai/cotrain/round"
)

// MockService is a mock implementation of the coordinator.Service interface
type MockService struct {
	mock.Mock
}

// CreateModel registers a new model
func (m *MockService) CreateModel(ctx context.Context, mdl model.Model) (model.Model, error) {
	args := m.Called(ctx, mdl)
	return args.Get(0).(model.Model), args.Error(1)
}

// GetModel retrieves a model by ID
func (m *MockService) GetModel(ctx context.Context, modelID uint64) (model.Model, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(model.Model), args.Error(1)
}

// ListModels lists models with pagination
func (m *MockService) ListModels(ctx context.Context, offset, limit uint64) (model.Page, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(model.Page), args.Error(1)
}

// Stake deposits stake for a participant
func (m *MockService) Stake(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	args := m.Called(ctx, participantID, amount)
	return args.Get(0).(participant.Account), args.Error(1)
}

// Withdraw returns stake to a participant
func (m *MockService) Withdraw(ctx context.Context, participantID string, amount sdkmath.Int) (participant.Account, error) {
	args := m.Called(ctx, participantID, amount)
	return args.Get(0).(participant.Account), args.Error(1)
}

// GetAccount retrieves a participant account
func (m *MockService) GetAccount(ctx context.Context, participantID string) (participant.Account, error) {
	args := m.Called(ctx, participantID)
	return args.Get(0).(participant.Account), args.Error(1)
}

// StartRound opens a new training round
func (m *MockService) StartRound(ctx context.Context, modelID uint64, datasetRef string, duration time.Duration, rewardPool sdkmath.Int, initiator string) (round.Round, error) {
	args := m.Called(ctx, modelID, datasetRef, duration, rewardPool, initiator)
	return args.Get(0).(round.Round), args.Error(1)
}

// Submit records a training result
func (m *MockService) Submit(ctx context.Context, sub round.Submission) (round.Submission, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(round.Submission), args.Error(1)
}

// SubmitCBOR records a CBOR-encoded training result
func (m *MockService) SubmitCBOR(ctx context.Context, data []byte) (round.Submission, error) {
	args := m.Called(ctx, data)
	return args.Get(0).(round.Submission), args.Error(1)
}

// ForceComplete finalizes an expired round
func (m *MockService) ForceComplete(ctx context.Context, roundID uint64, caller string) (round.Round, error) {
	args := m.Called(ctx, roundID, caller)
	return args.Get(0).(round.Round), args.Error(1)
}

// GetRound retrieves a round by ID
func (m *MockService) GetRound(ctx context.Context, roundID uint64) (round.Round, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(round.Round), args.Error(1)
}

// ListRounds lists rounds with pagination
func (m *MockService) ListRounds(ctx context.Context, offset, limit uint64) (round.Page, error) {
	args := m.Called(ctx, offset, limit)
	return args.Get(0).(round.Page), args.Error(1)
}

// GetSubmission retrieves a submission by round and participant
func (m *MockService) GetSubmission(ctx context.Context, roundID uint64, participantID string) (round.Submission, error) {
	args := m.Called(ctx, roundID, participantID)
	return args.Get(0).(round.Submission), args.Error(1)
}

// ListParticipants lists the submissions of a round
func (m *MockService) ListParticipants(ctx context.Context, roundID uint64) ([]round.Submission, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).([]round.Submission), args.Error(1)
}

// IsRoundActive reports whether a round is open for submissions
func (m *MockService) IsRoundActive(ctx context.Context, roundID uint64) (bool, error) {
	args := m.Called(ctx, roundID)
	return args.Bool(0), args.Error(1)
}

// Counters reports the current id allocators
func (m *MockService) Counters(ctx context.Context) (coordinator.Counters, error) {
	args := m.Called(ctx)
	return args.Get(0).(coordinator.Counters), args.Error(1)
}

// Subscribe subscribes to MQTT topics
func (m *MockService) Subscribe(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
