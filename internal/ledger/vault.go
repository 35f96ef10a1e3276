// internal/ledger/vault.go
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// DefaultMinimumBalance approximates the rent-exempt minimum of a market account.
const DefaultMinimumBalance uint64 = 1_670_400

// Vault is an in-memory lamport ledger with a flat resident floor for every account.
type Vault struct {
	mu       sync.RWMutex
	balances map[solana.PublicKey]uint64
	floor    uint64
	logger   *zap.Logger
}

func NewVault(minimumBalance uint64, logger *zap.Logger) *Vault {
	return &Vault{
		balances: make(map[solana.PublicKey]uint64),
		floor:    minimumBalance,
		logger:   logger.Named("vault"),
	}
}

// Fund adds lamports to account from outside the system.
func (v *Vault) Fund(account solana.PublicKey, amount uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.balances[account] += amount

	v.logger.Debug("Account funded", zap.String("account", account.String()), zap.Uint64("amount", amount))
}

func (v *Vault) Transfer(_ context.Context, from, to solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.balances[from] < amount {
		return fmt.Errorf("transfer from %s: has %d, needs %d: %w",
			from, v.balances[from], amount, errcode.ErrInsufficientFunds)
	}
	if from == to {
		return nil
	}
	if v.balances[to]+amount < v.balances[to] {
		return fmt.Errorf("transfer to %s: %w", to, errcode.ErrMathOverflow)
	}
	v.balances[from] -= amount
	v.balances[to] += amount
	return nil
}

func (v *Vault) Debit(_ context.Context, account solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.balances[account] < amount {
		return fmt.Errorf("debit %s: has %d, needs %d: %w",
			account, v.balances[account], amount, errcode.ErrInsufficientFunds)
	}
	v.balances[account] -= amount
	return nil
}

func (v *Vault) Credit(_ context.Context, account solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.balances[account]+amount < v.balances[account] {
		return fmt.Errorf("credit %s: %w", account, errcode.ErrMathOverflow)
	}
	v.balances[account] += amount
	return nil
}

func (v *Vault) Balance(_ context.Context, account solana.PublicKey) (uint64, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.balances[account], nil
}

func (v *Vault) MinimumBalance(_ context.Context, _ solana.PublicKey) (uint64, error) {
	return v.floor, nil
}
