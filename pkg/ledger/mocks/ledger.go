package mocks

import (
	"context"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/mock"
)

// MockLedger is a mock implementation of the ledger.Ledger interface
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Transfer(ctx context.Context, to string, amount sdkmath.Int) error {
	args := m.Called(ctx, to, amount)
	return args.Error(0)
}

func (m *MockLedger) TransferFrom(ctx context.Context, from, to string, amount sdkmath.Int) error {
	args := m.Called(ctx, from, to, amount)
	return args.Error(0)
}

func (m *MockLedger) BalanceOf(ctx context.Context, account string) (sdkmath.Int, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(sdkmath.Int), args.Error(1)
}

func (m *MockLedger) Allowance(ctx context.Context, owner, spender string) (sdkmath.Int, error) {
	args := m.Called(ctx, owner, spender)
	return args.Get(0).(sdkmath.Int), args.Error(1)
}

func (m *MockLedger) Approve(ctx context.Context, owner, spender string, amount sdkmath.Int) error {
	args := m.Called(ctx, owner, spender, amount)
	return args.Error(0)
}
