package launchpad

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/errcode"
	"github.com/rovshanmuradov/launchpad/internal/ledger"
)

var errStoreUnavailable = errors.New("store unavailable")

func failingCommit(context.Context, Changes) error { return errStoreUnavailable }

type custodyState struct {
	Sol    map[solana.PublicKey]uint64
	Tokens map[solana.PublicKey]uint64
	Supply uint64
}

func (f *fixture) custody(t *testing.T, wallets ...solana.PublicKey) custodyState {
	t.Helper()
	addrs := f.ex.Addresses()
	accounts := append([]solana.PublicKey{
		f.creator,
		f.authority,
		addrs.Market(f.token),
		addrs.CurveTokens(f.token),
		addrs.VestingTokens(f.token),
		addrs.BurnEscrow(f.token),
	}, wallets...)

	st := custodyState{
		Sol:    make(map[solana.PublicKey]uint64, len(accounts)),
		Tokens: make(map[solana.PublicKey]uint64, len(accounts)),
	}
	for _, a := range accounts {
		st.Sol[a] = f.sol(t, a)
		st.Tokens[a] = f.held(t, a)
	}
	supply, err := f.tokens.Supply(f.ctx, f.token)
	require.NoError(t, err)
	st.Supply = supply
	return st
}

func TestFailedCommitLeavesCustodyUntouched(t *testing.T) {
	tests := []struct {
		name      string
		burnPrice uint64
		run       func(t *testing.T, f *fixture, m *Market, v *VestingSchedule, trader solana.PublicKey) error
	}{
		{"buy", 0, func(_ *testing.T, f *fixture, m *Market, _ *VestingSchedule, trader solana.PublicKey) error {
			_, err := f.ex.Buy(f.ctx, f.cfg, m, trader, curve.LamportsPerSol/2, 0, failingCommit)
			return err
		}},
		{"sell", 0, func(t *testing.T, f *fixture, m *Market, _ *VestingSchedule, trader solana.PublicKey) error {
			_, err := f.ex.Sell(f.ctx, f.cfg, m, trader, f.held(t, trader)/2, 0, failingCommit)
			return err
		}},
		{"burn for access", 1_000_000, func(_ *testing.T, f *fixture, m *Market, _ *VestingSchedule, trader solana.PublicKey) error {
			_, err := f.ex.BurnForAccess(f.ctx, f.cfg, m, trader, failingCommit)
			return err
		}},
		{"withdraw platform fees", 0, func(_ *testing.T, f *fixture, m *Market, _ *VestingSchedule, _ solana.PublicKey) error {
			_, err := f.ex.WithdrawPlatformFees(f.ctx, f.cfg, m, f.authority, failingCommit)
			return err
		}},
		{"withdraw creator fees", 0, func(_ *testing.T, f *fixture, m *Market, _ *VestingSchedule, _ solana.PublicKey) error {
			_, err := f.ex.WithdrawCreatorFees(f.ctx, m, f.creator, failingCommit)
			return err
		}},
		{"claim vested", 0, func(_ *testing.T, f *fixture, _ *Market, v *VestingSchedule, _ solana.PublicKey) error {
			now := testStart + f.cfg.VestingCliffSeconds + f.cfg.VestingClaimIntervalSeconds
			_, err := f.ex.Claim(f.ctx, f.cfg, v, f.creator, now, failingCommit)
			return err
		}},
		{"revoke vesting", 0, func(_ *testing.T, f *fixture, m *Market, v *VestingSchedule, _ solana.PublicKey) error {
			_, err := f.ex.Revoke(f.ctx, f.cfg, v, m, f.authority, failingCommit)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			m, v := f.launch(t, tt.burnPrice)
			trader := f.trader(2 * curve.LamportsPerSol)
			_, err := f.ex.Buy(f.ctx, f.cfg, m, trader, curve.LamportsPerSol, 0, nil)
			require.NoError(t, err)

			market, schedule := *m, *v
			before := f.custody(t, trader)

			err = tt.run(t, f, m, v, trader)
			assert.True(t, errors.Is(err, errStoreUnavailable), "got %v", err)

			assert.Equal(t, market, *m)
			assert.Equal(t, schedule, *v)
			assert.Equal(t, before, f.custody(t, trader))
			require.NoError(t, f.ex.Reconcile(f.ctx, m))
		})
	}
}

func TestFailedLaunchCommitReturnsFloorAndSupply(t *testing.T) {
	f := newFixture(t)
	addrs := f.ex.Addresses()

	_, _, err := f.ex.Launch(f.ctx, f.cfg, f.profile, LaunchRequest{Creator: f.creator, Token: f.token}, testStart, failingCommit)
	assert.True(t, errors.Is(err, errStoreUnavailable))

	assert.Zero(t, f.profile.LaunchesCount)
	assert.Equal(t, curve.LamportsPerSol, f.sol(t, f.creator))
	assert.Zero(t, f.sol(t, addrs.Market(f.token)))
	assert.Zero(t, f.held(t, addrs.CurveTokens(f.token)))
	assert.Zero(t, f.held(t, addrs.VestingTokens(f.token)))
	supply, err := f.tokens.Supply(f.ctx, f.token)
	require.NoError(t, err)
	assert.Zero(t, supply)

	// The emptied mint has no authority left; a fresh mint launches normally.
	f.token = solana.NewWallet().PublicKey()
	m, _ := f.launch(t, 0)
	require.NoError(t, f.ex.Reconcile(f.ctx, m))
	assert.Equal(t, uint32(1), f.profile.LaunchesCount)
}

func TestCommitSeesAppliedOperation(t *testing.T) {
	f := newFixture(t)
	m, _ := f.launch(t, 0)
	buyer := f.trader(curve.LamportsPerSol)

	var got Changes
	q, err := f.ex.Buy(f.ctx, f.cfg, m, buyer, curve.LamportsPerSol, 0, func(_ context.Context, ch Changes) error {
		got = ch
		assert.Equal(t, ch.TokenAmount, f.held(t, buyer), "tokens delivered before commit")
		assert.Equal(t, ch.Market.RealSolReserves, m.RealSolReserves)
		return nil
	})
	require.NoError(t, err)

	assert.Same(t, m, got.Market)
	assert.Nil(t, got.Vesting)
	assert.Nil(t, got.Profile)
	assert.Equal(t, curve.LamportsPerSol, got.SolAmount)
	assert.Equal(t, q.TokensOut, got.TokenAmount)
	assert.Equal(t, q.Fee.Total, got.Fee)
}

func TestAccessBurnWaitsForCommit(t *testing.T) {
	f := newFixture(t)
	m, _ := f.launch(t, 1_000_000)
	viewer := f.trader(curve.LamportsPerSol)
	_, err := f.ex.Buy(f.ctx, f.cfg, m, viewer, curve.LamportsPerSol, 0, nil)
	require.NoError(t, err)
	escrow := f.ex.Addresses().BurnEscrow(f.token)

	var escrowed uint64
	res, err := f.ex.BurnForAccess(f.ctx, f.cfg, m, viewer, func(context.Context, Changes) error {
		escrowed = f.held(t, escrow)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, res.TokensBurned, escrowed)
	assert.Zero(t, f.held(t, escrow))
	require.NoError(t, f.ex.Reconcile(f.ctx, m))
}

type burnFailingLedger struct {
	*ledger.Tokens
}

func (burnFailingLedger) Burn(context.Context, solana.PublicKey, solana.PublicKey, uint64) error {
	return errLedgerOffline
}

func TestRevokeStandsWhenBurnFailsAfterCommit(t *testing.T) {
	f := newFixture(t)
	m, v := f.launch(t, 0)
	ex := NewExchange(burnFailingLedger{f.tokens}, f.vault, f.ex.Addresses(), zaptest.NewLogger(t))

	burned, err := ex.Revoke(f.ctx, f.cfg, v, m, f.authority, nil)
	require.NoError(t, err)
	assert.Equal(t, v.TotalAllocation, burned)
	assert.True(t, v.Revoked)

	assert.Equal(t, v.TotalAllocation, f.held(t, f.ex.Addresses().VestingTokens(f.token)))
	assert.True(t, errors.Is(f.ex.Reconcile(f.ctx, m), errcode.ErrTokenSupplyMismatch))
}
