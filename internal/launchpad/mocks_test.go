package launchpad

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

// MockTokenLedger implements TokenLedger
type MockTokenLedger struct {
	mock.Mock
}

func (m *MockTokenLedger) Mint(ctx context.Context, token, to solana.PublicKey, amount uint64) error {
	return m.Called(ctx, token, to, amount).Error(0)
}

func (m *MockTokenLedger) Transfer(ctx context.Context, token, from, to solana.PublicKey, amount uint64) error {
	return m.Called(ctx, token, from, to, amount).Error(0)
}

func (m *MockTokenLedger) Burn(ctx context.Context, token, from solana.PublicKey, amount uint64) error {
	return m.Called(ctx, token, from, amount).Error(0)
}

func (m *MockTokenLedger) RevokeMintAuthority(ctx context.Context, token solana.PublicKey) error {
	return m.Called(ctx, token).Error(0)
}

func (m *MockTokenLedger) BalanceOf(ctx context.Context, token, owner solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, token, owner)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockTokenLedger) Supply(ctx context.Context, token solana.PublicKey) (uint64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(uint64), args.Error(1)
}

var errLedgerOffline = errors.New("ledger offline")

func TestBuyRollsBackSolWhenTokenTransferFails(t *testing.T) {
	ctx := context.Background()
	tokens := new(MockTokenLedger)
	tokens.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(errLedgerOffline)
	vault := ledger.NewVault(testFloor, zaptest.NewLogger(t))
	ex := NewExchange(tokens, vault, nil, zaptest.NewLogger(t))

	cfg := &GlobalConfig{FeeBps: 100, PlatformFeeBps: 50, CreatorFeeBps: 50}
	m := &Market{
		Token:                solana.NewWallet().PublicKey(),
		VirtualTokenReserves: testVirtualTk,
		VirtualSolReserves:   testVirtualSo,
		RealTokenReserves:    900_000_000_000_000,
		TokenTotalSupply:     DefaultTotalSupply,
	}
	before := *m
	buyer := solana.NewWallet().PublicKey()
	vault.Fund(buyer, curve.LamportsPerSol)

	_, err := ex.Buy(ctx, cfg, m, buyer, curve.LamportsPerSol, 0, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errLedgerOffline))

	assert.Equal(t, before, *m)
	bal, _ := vault.Balance(ctx, buyer)
	assert.Equal(t, curve.LamportsPerSol, bal)
	custody, _ := vault.Balance(ctx, ex.Addresses().Market(m.Token))
	assert.Zero(t, custody)
	tokens.AssertNumberOfCalls(t, "Transfer", 1)
}

func TestLaunchRollsBackWhenRevokeFails(t *testing.T) {
	ctx := context.Background()
	tokens := new(MockTokenLedger)
	tokens.On("Mint", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tokens.On("Transfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tokens.On("Burn", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	tokens.On("RevokeMintAuthority", mock.Anything, mock.Anything).Return(errLedgerOffline)
	vault := ledger.NewVault(testFloor, zaptest.NewLogger(t))
	ex := NewExchange(tokens, vault, nil, zaptest.NewLogger(t))

	cfg, err := Initialize(InitParams{
		FeeBps:                      100,
		PlatformFeeBps:              50,
		CreatorFeeBps:               50,
		InitialVirtualTokenReserves: testVirtualTk,
		InitialVirtualSolReserves:   testVirtualSo,
	})
	require.NoError(t, err)
	creator := solana.NewWallet().PublicKey()
	token := solana.NewWallet().PublicKey()
	vault.Fund(creator, curve.LamportsPerSol)
	profile := NewCreatorProfile(creator)

	_, _, err = ex.Launch(ctx, cfg, profile, LaunchRequest{Creator: creator, Token: token}, testStart, nil)
	assert.True(t, errors.Is(err, errLedgerOffline))
	assert.Zero(t, profile.LaunchesCount)

	bal, _ := vault.Balance(ctx, creator)
	assert.Equal(t, curve.LamportsPerSol, bal)

	book := ex.Addresses()
	vestingAmount := DefaultTotalSupply / 10
	// Reversal runs newest first: un-transfer the allocation, then un-mint.
	tokens.AssertCalled(t, "Transfer", mock.Anything, token, book.VestingTokens(token), book.CurveTokens(token), vestingAmount)
	tokens.AssertCalled(t, "Burn", mock.Anything, token, book.CurveTokens(token), DefaultTotalSupply)
}
