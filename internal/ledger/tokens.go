// internal/ledger/tokens.go
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

var (
	ErrMintAuthorityRevoked = errors.New("mint authority revoked")
	ErrUnknownToken         = errors.New("unknown token")
)

type holding struct {
	token solana.PublicKey
	owner solana.PublicKey
}

type mintState struct {
	supply  uint64
	revoked bool
}

// Tokens is an in-memory token ledger.
type Tokens struct {
	mu       sync.RWMutex
	mints    map[solana.PublicKey]*mintState
	balances map[holding]uint64
	logger   *zap.Logger
}

func NewTokens(logger *zap.Logger) *Tokens {
	return &Tokens{
		mints:    make(map[solana.PublicKey]*mintState),
		balances: make(map[holding]uint64),
		logger:   logger.Named("tokens"),
	}
}

func (l *Tokens) Mint(_ context.Context, token, to solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ms, ok := l.mints[token]
	if !ok {
		ms = &mintState{}
		l.mints[token] = ms
	}
	if ms.revoked {
		return fmt.Errorf("mint %s: %w", token, ErrMintAuthorityRevoked)
	}
	h := holding{token, to}
	if ms.supply+amount < ms.supply || l.balances[h]+amount < l.balances[h] {
		return fmt.Errorf("mint %s: %w", token, errcode.ErrMathOverflow)
	}
	ms.supply += amount
	l.balances[h] += amount

	l.logger.Debug("Minted", zap.String("token", token.String()), zap.String("to", to.String()), zap.Uint64("amount", amount))
	return nil
}

func (l *Tokens) Transfer(_ context.Context, token, from, to solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.mints[token]; !ok {
		return fmt.Errorf("transfer %s: %w", token, ErrUnknownToken)
	}
	src, dst := holding{token, from}, holding{token, to}
	if l.balances[src] < amount {
		return fmt.Errorf("transfer %s from %s: has %d, needs %d: %w",
			token, from, l.balances[src], amount, errcode.ErrInsufficientTokens)
	}
	if src == dst {
		return nil
	}
	if l.balances[dst]+amount < l.balances[dst] {
		return fmt.Errorf("transfer %s to %s: %w", token, to, errcode.ErrMathOverflow)
	}
	l.balances[src] -= amount
	l.balances[dst] += amount
	return nil
}

func (l *Tokens) Burn(_ context.Context, token, from solana.PublicKey, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ms, ok := l.mints[token]
	if !ok {
		return fmt.Errorf("burn %s: %w", token, ErrUnknownToken)
	}
	h := holding{token, from}
	if l.balances[h] < amount {
		return fmt.Errorf("burn %s from %s: has %d, needs %d: %w",
			token, from, l.balances[h], amount, errcode.ErrInsufficientTokens)
	}
	l.balances[h] -= amount
	ms.supply -= amount

	l.logger.Debug("Burned", zap.String("token", token.String()), zap.String("from", from.String()), zap.Uint64("amount", amount))
	return nil
}

func (l *Tokens) RevokeMintAuthority(_ context.Context, token solana.PublicKey) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ms, ok := l.mints[token]
	if !ok {
		return fmt.Errorf("revoke mint authority %s: %w", token, ErrUnknownToken)
	}
	ms.revoked = true
	return nil
}

func (l *Tokens) BalanceOf(_ context.Context, token, owner solana.PublicKey) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[holding{token, owner}], nil
}

func (l *Tokens) Supply(_ context.Context, token solana.PublicKey) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ms, ok := l.mints[token]
	if !ok {
		return 0, fmt.Errorf("supply %s: %w", token, ErrUnknownToken)
	}
	return ms.supply, nil
}

// MintRevoked reports whether minting of token has been disabled.
func (l *Tokens) MintRevoked(token solana.PublicKey) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ms, ok := l.mints[token]
	return ok && ms.revoked
}
