package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

func TestTokensLifecycle(t *testing.T) {
	ctx := context.Background()
	l := NewTokens(zaptest.NewLogger(t))
	token := solana.NewWallet().PublicKey()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	require.NoError(t, l.Mint(ctx, token, alice, 1_000))
	require.NoError(t, l.Transfer(ctx, token, alice, bob, 400))
	require.NoError(t, l.Burn(ctx, token, bob, 100))

	a, _ := l.BalanceOf(ctx, token, alice)
	b, _ := l.BalanceOf(ctx, token, bob)
	supply, err := l.Supply(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), a)
	assert.Equal(t, uint64(300), b)
	assert.Equal(t, uint64(900), supply)

	require.NoError(t, l.RevokeMintAuthority(ctx, token))
	assert.True(t, l.MintRevoked(token))
	err = l.Mint(ctx, token, alice, 1)
	assert.True(t, errors.Is(err, ErrMintAuthorityRevoked))
}

func TestTokensInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	l := NewTokens(zaptest.NewLogger(t))
	token := solana.NewWallet().PublicKey()
	alice := solana.NewWallet().PublicKey()
	require.NoError(t, l.Mint(ctx, token, alice, 10))

	err := l.Transfer(ctx, token, alice, solana.NewWallet().PublicKey(), 11)
	assert.True(t, errors.Is(err, errcode.ErrInsufficientTokens))
	err = l.Burn(ctx, token, alice, 11)
	assert.True(t, errors.Is(err, errcode.ErrInsufficientTokens))

	_, err = l.Supply(ctx, solana.NewWallet().PublicKey())
	assert.True(t, errors.Is(err, ErrUnknownToken))
}

func TestVault(t *testing.T) {
	ctx := context.Background()
	v := NewVault(500, zaptest.NewLogger(t))
	alice := solana.NewWallet().PublicKey()
	custody := solana.NewWallet().PublicKey()

	v.Fund(alice, 2_000)
	require.NoError(t, v.Transfer(ctx, alice, custody, 1_500))
	require.NoError(t, v.Debit(ctx, custody, 200))
	require.NoError(t, v.Credit(ctx, alice, 200))

	a, _ := v.Balance(ctx, alice)
	c, _ := v.Balance(ctx, custody)
	floor, _ := v.MinimumBalance(ctx, custody)
	assert.Equal(t, uint64(700), a)
	assert.Equal(t, uint64(1_300), c)
	assert.Equal(t, uint64(500), floor)

	err := v.Transfer(ctx, alice, custody, 701)
	assert.True(t, errors.Is(err, errcode.ErrInsufficientFunds))
	err = v.Debit(ctx, custody, 1_301)
	assert.True(t, errors.Is(err, errcode.ErrInsufficientFunds))
}
