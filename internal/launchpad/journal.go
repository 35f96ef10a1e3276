// internal/launchpad/journal.go
package launchpad

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// Changes lists the records an operation rewrote and the amounts it moved.
type Changes struct {
	Market  *Market
	Vesting *VestingSchedule
	Profile *CreatorProfile

	SolAmount   uint64
	TokenAmount uint64
	Fee         uint64
}

// Commit persists the changes of one operation. It runs after the operation's
// reversible custody steps; when it fails those steps are undone and the
// records handed to the operation keep their previous values. A nil Commit
// persists nothing.
type Commit func(ctx context.Context, ch Changes) error

// custody runs the ledger and vault calls of one operation. When a call fails
// the ones already applied are reversed, newest first, so the operation
// leaves no partial custody effect.
type custody struct {
	ctx    context.Context
	ledger TokenLedger
	vault  Vault
	logger *zap.Logger
	undo   []func(context.Context) error
}

func (e *Exchange) begin(ctx context.Context, op string) *custody {
	return &custody{
		ctx:    ctx,
		ledger: e.ledger,
		vault:  e.vault,
		logger: e.logger.With(zap.String("operation", op)),
	}
}

func (c *custody) do(step string, apply, revert func(context.Context) error) error {
	if err := apply(c.ctx); err != nil {
		c.rollback()
		return fmt.Errorf("%s: %w", step, err)
	}
	if revert != nil {
		c.undo = append(c.undo, revert)
	}
	return nil
}

func (c *custody) rollback() {
	// Compensation must run even if the caller's context is already cancelled.
	ctx := context.WithoutCancel(c.ctx)
	for i := len(c.undo) - 1; i >= 0; i-- {
		if err := c.undo[i](ctx); err != nil {
			c.logger.Error("Custody rollback step failed", zap.Int("step", i), zap.Error(err))
		}
	}
	c.undo = nil
}

// commit hands ch to fn. On failure every custody step so far is reversed.
func (c *custody) commit(fn Commit, ch Changes) error {
	if fn != nil {
		if err := fn(c.ctx, ch); err != nil {
			c.rollback()
			return fmt.Errorf("commit: %w", err)
		}
	}
	c.undo = nil
	return nil
}

// finalize runs a step that cannot be reversed after the commit. The
// operation stands either way; a failure leaves custody out of step with the
// committed records, which Reconcile reports.
func (c *custody) finalize(step string, apply func(context.Context) error) {
	if err := apply(context.WithoutCancel(c.ctx)); err != nil {
		c.logger.Error("Committed operation left custody incomplete",
			zap.String("step", step), zap.Error(err))
	}
}

func (c *custody) mint(token, to solana.PublicKey, amount uint64) error {
	return c.do("mint",
		func(ctx context.Context) error { return c.ledger.Mint(ctx, token, to, amount) },
		func(ctx context.Context) error { return c.ledger.Burn(ctx, token, to, amount) })
}

func (c *custody) transferTokens(token, from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return c.do("transfer tokens",
		func(ctx context.Context) error { return c.ledger.Transfer(ctx, token, from, to, amount) },
		func(ctx context.Context) error { return c.ledger.Transfer(ctx, token, to, from, amount) })
}

// burnAfterCommit destroys tokens once the operation is committed.
func (c *custody) burnAfterCommit(token, from solana.PublicKey, amount uint64) {
	if amount == 0 {
		return
	}
	c.finalize("burn", func(ctx context.Context) error { return c.ledger.Burn(ctx, token, from, amount) })
}

func (c *custody) revokeMint(token solana.PublicKey) error {
	return c.do("revoke mint authority",
		func(ctx context.Context) error { return c.ledger.RevokeMintAuthority(ctx, token) },
		nil)
}

func (c *custody) transferSol(from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return c.do("transfer sol",
		func(ctx context.Context) error { return c.vault.Transfer(ctx, from, to, amount) },
		func(ctx context.Context) error { return c.vault.Transfer(ctx, to, from, amount) })
}

// payout debits program custody and credits the recipient.
func (c *custody) payout(from, to solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := c.do("debit custody",
		func(ctx context.Context) error { return c.vault.Debit(ctx, from, amount) },
		func(ctx context.Context) error { return c.vault.Credit(ctx, from, amount) }); err != nil {
		return err
	}
	return c.do("credit recipient",
		func(ctx context.Context) error { return c.vault.Credit(ctx, to, amount) },
		func(ctx context.Context) error { return c.vault.Debit(ctx, to, amount) })
}

// checkFloor verifies custody keeps its resident minimum after paying out amount.
func (e *Exchange) checkFloor(ctx context.Context, account solana.PublicKey, amount uint64) error {
	balance, err := e.vault.Balance(ctx, account)
	if err != nil {
		return fmt.Errorf("custody balance: %w", err)
	}
	floor, err := e.vault.MinimumBalance(ctx, account)
	if err != nil {
		return fmt.Errorf("custody minimum balance: %w", err)
	}
	if balance < amount {
		return fmt.Errorf("custody balance %d below payout %d: %w", balance, amount, errcode.ErrInsufficientReserves)
	}
	if balance-amount < floor {
		return fmt.Errorf("payout %d leaves %d under floor %d: %w",
			amount, balance-amount, floor, errcode.ErrInsufficientReserves)
	}
	return nil
}

func add(op string, a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, fmt.Errorf("%s: %d + %d: %w", op, a, b, errcode.ErrMathOverflow)
	}
	return s, nil
}

func sub(op string, a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%s: %d - %d: %w", op, a, b, errcode.ErrMathOverflow)
	}
	return a - b, nil
}

// arith chains checked updates and keeps the first failure.
type arith struct{ err error }

func (a *arith) add(op string, dst *uint64, v uint64) {
	if a.err != nil {
		return
	}
	*dst, a.err = add(op, *dst, v)
}

func (a *arith) sub(op string, dst *uint64, v uint64) {
	if a.err != nil {
		return
	}
	*dst, a.err = sub(op, *dst, v)
}
