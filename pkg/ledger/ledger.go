// Package ledger defines the external token-ledger collaborator. The engine
// never moves value itself: stake escrow and reward payouts go through this
// interface, and any failure surfaces to the engine caller as a failed
// transfer.
package ledger

import (
	"context"

	sdkmath "cosmossdk.io/math"
)

type Ledger interface {
	// Transfer moves amount from the engine's own account to the recipient.
	Transfer(ctx context.Context, to string, amount sdkmath.Int) error

	// TransferFrom moves amount between third-party accounts within the
	// allowance granted to the engine.
	TransferFrom(ctx context.Context, from, to string, amount sdkmath.Int) error

	BalanceOf(ctx context.Context, account string) (sdkmath.Int, error)
	Allowance(ctx context.Context, owner, spender string) (sdkmath.Int, error)
	Approve(ctx context.Context, owner, spender string, amount sdkmath.Int) error
}
