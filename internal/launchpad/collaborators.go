// internal/launchpad/collaborators.go
package launchpad

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
)

// TokenLedger holds token balances. Every token movement made by the
// exchange goes through it.
type TokenLedger interface {
	// Mint creates new units of token. It fails once the mint authority is revoked.
	Mint(ctx context.Context, token, to solana.PublicKey, amount uint64) error
	Transfer(ctx context.Context, token, from, to solana.PublicKey, amount uint64) error
	Burn(ctx context.Context, token, from solana.PublicKey, amount uint64) error
	RevokeMintAuthority(ctx context.Context, token solana.PublicKey) error
	BalanceOf(ctx context.Context, token, owner solana.PublicKey) (uint64, error)
	Supply(ctx context.Context, token solana.PublicKey) (uint64, error)
}

// Vault holds native SOL balances. Transfer moves funds between user
// accounts and custody; Debit/Credit move funds out of program custody.
type Vault interface {
	Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error
	Debit(ctx context.Context, account solana.PublicKey, amount uint64) error
	Credit(ctx context.Context, account solana.PublicKey, amount uint64) error
	Balance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// MinimumBalance is the resident floor custody must keep after an outbound debit.
	MinimumBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// Clock returns unix seconds.
type Clock interface {
	Now() int64
}

// SystemClock reads wall time.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().Unix() }

// ManualClock is a settable clock for simulations and tests.
type ManualClock struct {
	now atomic.Int64
}

func NewManualClock(start int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Now() int64 { return c.now.Load() }

func (c *ManualClock) Set(ts int64) { c.now.Store(ts) }

// Advance moves the clock forward and returns the new time.
func (c *ManualClock) Advance(seconds int64) int64 { return c.now.Add(seconds) }
