package ledger

import (
	"context"
	"errors"
	"sync"

	sdkmath "cosmossdk.io/math"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

type inMemoryLedger struct {
	sync.Mutex

	// self is the identity the engine transacts as: Transfer debits it,
	// TransferFrom spends allowances granted to it.
	self       string
	balances   map[string]sdkmath.Int
	allowances map[string]map[string]sdkmath.Int
}

// NewInMemoryLedger returns a self-contained ledger for development and
// tests. self is the engine's own account identity.
func NewInMemoryLedger(self string) *inMemoryLedger {
	return &inMemoryLedger{
		self:       self,
		balances:   make(map[string]sdkmath.Int),
		allowances: make(map[string]map[string]sdkmath.Int),
	}
}

// Mint credits an account out of thin air. Test and bootstrap helper, not
// part of the Ledger interface.
func (l *inMemoryLedger) Mint(account string, amount sdkmath.Int) {
	l.Lock()
	defer l.Unlock()

	l.balances[account] = l.balance(account).Add(amount)
}

func (l *inMemoryLedger) Transfer(_ context.Context, to string, amount sdkmath.Int) error {
	l.Lock()
	defer l.Unlock()

	return l.move(l.self, to, amount)
}

func (l *inMemoryLedger) TransferFrom(_ context.Context, from, to string, amount sdkmath.Int) error {
	l.Lock()
	defer l.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	allowed := l.allowance(from, l.self)
	if allowed.LT(amount) {
		return ErrInsufficientAllowance
	}

	if err := l.move(from, to, amount); err != nil {
		return err
	}
	l.allowances[from][l.self] = allowed.Sub(amount)

	return nil
}

func (l *inMemoryLedger) BalanceOf(_ context.Context, account string) (sdkmath.Int, error) {
	l.Lock()
	defer l.Unlock()

	return l.balance(account), nil
}

func (l *inMemoryLedger) Allowance(_ context.Context, owner, spender string) (sdkmath.Int, error) {
	l.Lock()
	defer l.Unlock()

	return l.allowance(owner, spender), nil
}

func (l *inMemoryLedger) Approve(_ context.Context, owner, spender string, amount sdkmath.Int) error {
	l.Lock()
	defer l.Unlock()

	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}

	if _, ok := l.allowances[owner]; !ok {
		l.allowances[owner] = make(map[string]sdkmath.Int)
	}
	l.allowances[owner][spender] = amount

	return nil
}

func (l *inMemoryLedger) move(from, to string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return ErrInvalidAmount
	}

	fromBalance := l.balance(from)
	if fromBalance.LT(amount) {
		return ErrInsufficientBalance
	}

	l.balances[from] = fromBalance.Sub(amount)
	l.balances[to] = l.balance(to).Add(amount)

	return nil
}

func (l *inMemoryLedger) balance(account string) sdkmath.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}

	return sdkmath.ZeroInt()
}

func (l *inMemoryLedger) allowance(owner, spender string) sdkmath.Int {
	if a, ok := l.allowances[owner]; ok {
		if v, ok := a[spender]; ok {
			return v
		}
	}

	return sdkmath.ZeroInt()
}
