// internal/launchpad/vesting.go
package launchpad

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// ErrRecordMismatch is returned when a vesting schedule and market belong to different tokens.
var ErrRecordMismatch = errors.New("vesting schedule and market refer to different tokens")

// VestingState is the lifecycle stage of a schedule.
type VestingState string

const (
	VestingActive       VestingState = "active"
	VestingFullyClaimed VestingState = "fully_claimed"
	VestingRevoked      VestingState = "revoked"
)

// VestingSchedule releases the creator allocation in interval-sized steps
// after the cliff.
type VestingSchedule struct {
	Creator         solana.PublicKey `json:"creator"`
	Token           solana.PublicKey `json:"token"`
	TotalAllocation uint64           `json:"total_allocation"`
	ClaimedAmount   uint64           `json:"claimed_amount"`
	StartTimestamp  int64            `json:"start_timestamp"`
	Revoked         bool             `json:"revoked"`
}

func NewVestingSchedule(creator, token solana.PublicKey, allocation uint64, now int64) *VestingSchedule {
	return &VestingSchedule{
		Creator:         creator,
		Token:           token,
		TotalAllocation: allocation,
		StartTimestamp:  now,
	}
}

func (v *VestingSchedule) State() VestingState {
	switch {
	case v.Revoked:
		return VestingRevoked
	case v.ClaimedAmount >= v.TotalAllocation:
		return VestingFullyClaimed
	default:
		return VestingActive
	}
}

// CliffEnd is the first timestamp at which a claim can succeed.
func CliffEnd(cfg *GlobalConfig, v *VestingSchedule) (int64, error) {
	end := v.StartTimestamp + cfg.VestingCliffSeconds
	if (cfg.VestingCliffSeconds > 0 && end < v.StartTimestamp) || (cfg.VestingCliffSeconds < 0 && end > v.StartTimestamp) {
		return 0, fmt.Errorf("cliff end: %w", errcode.ErrMathOverflow)
	}
	return end, nil
}

// Vested returns the total amount unlocked at now, ignoring claims and
// revocation. Before the cliff it fails with VestingCliffNotReached.
func Vested(cfg *GlobalConfig, v *VestingSchedule, now int64) (uint64, error) {
	cliffEnd, err := CliffEnd(cfg, v)
	if err != nil {
		return 0, err
	}
	if now < cliffEnd {
		return 0, fmt.Errorf("cliff ends at %d: %w", cliffEnd, errcode.ErrVestingCliffNotReached)
	}
	if cfg.VestingClaimIntervalSeconds <= 0 || cfg.VestingDurationSeconds <= 0 {
		return 0, fmt.Errorf("vesting interval %d, duration %d: %w",
			cfg.VestingClaimIntervalSeconds, cfg.VestingDurationSeconds, errcode.ErrMathOverflow)
	}

	elapsed := now - cliffEnd
	if elapsed < 0 {
		return 0, fmt.Errorf("elapsed since cliff: %w", errcode.ErrMathOverflow)
	}
	elapsed = min(elapsed, cfg.VestingDurationSeconds)
	snapped := (elapsed / cfg.VestingClaimIntervalSeconds) * cfg.VestingClaimIntervalSeconds

	return curve.MulDiv(v.TotalAllocation, uint64(snapped), uint64(cfg.VestingDurationSeconds))
}

// Claimable previews what Claim would pay at now. It returns 0 wherever
// Claim would fail.
func Claimable(cfg *GlobalConfig, v *VestingSchedule, now int64) uint64 {
	if v.Revoked {
		return 0
	}
	vested, err := Vested(cfg, v, now)
	if err != nil || vested <= v.ClaimedAmount {
		return 0
	}
	return vested - v.ClaimedAmount
}

// Claim transfers the newly unlocked allocation to the creator.
func (e *Exchange) Claim(ctx context.Context, cfg *GlobalConfig, v *VestingSchedule,
	caller solana.PublicKey, now int64, commit Commit) (uint64, error) {
	if !caller.Equals(v.Creator) {
		return 0, fmt.Errorf("claim vested: %w", errcode.ErrUnauthorized)
	}
	if v.Revoked {
		return 0, fmt.Errorf("claim vested: %w", errcode.ErrVestingRevoked)
	}
	vested, err := Vested(cfg, v, now)
	if err != nil {
		return 0, fmt.Errorf("claim vested: %w", err)
	}
	if vested <= v.ClaimedAmount {
		return 0, fmt.Errorf("claim vested: %d of %d claimed: %w",
			v.ClaimedAmount, vested, errcode.ErrVestingFullyClaimed)
	}
	claimable := vested - v.ClaimedAmount
	claimed, err := add("claim vested: claimed", v.ClaimedAmount, claimable)
	if err != nil {
		return 0, err
	}

	c := e.begin(ctx, "claim_vested")
	if err := c.transferTokens(v.Token, e.addrs.VestingTokens(v.Token), v.Creator, claimable); err != nil {
		return 0, fmt.Errorf("claim vested: %w", err)
	}
	prev := v.ClaimedAmount
	v.ClaimedAmount = claimed
	if err := c.commit(commit, Changes{Vesting: v, TokenAmount: claimable}); err != nil {
		v.ClaimedAmount = prev
		return 0, fmt.Errorf("claim vested: %w", err)
	}

	e.logger.Info("Vesting claimed",
		zap.String("token", v.Token.String()),
		zap.String("creator", v.Creator.String()),
		zap.Uint64("amount", claimable),
		zap.Uint64("claimed_total", claimed),
		zap.Uint64("allocation", v.TotalAllocation))

	return claimable, nil
}

// Revoke ends a schedule and burns its unclaimed allocation once the change
// is committed. Revoking an already revoked schedule changes nothing.
func (e *Exchange) Revoke(ctx context.Context, cfg *GlobalConfig, v *VestingSchedule, m *Market,
	caller solana.PublicKey, commit Commit) (uint64, error) {
	if !caller.Equals(cfg.Authority) {
		return 0, fmt.Errorf("revoke vesting: %w", errcode.ErrUnauthorized)
	}
	if !v.Token.Equals(m.Token) {
		return 0, fmt.Errorf("revoke vesting: %w", ErrRecordMismatch)
	}
	if v.Revoked {
		return 0, nil
	}

	unvested, err := sub("revoke vesting: unvested", v.TotalAllocation, v.ClaimedAmount)
	if err != nil {
		return 0, err
	}
	supply, err := sub("revoke vesting: supply", m.TokenTotalSupply, unvested)
	if err != nil {
		return 0, err
	}

	vestingTokens := e.addrs.VestingTokens(v.Token)
	held, err := e.ledger.BalanceOf(ctx, v.Token, vestingTokens)
	if err != nil {
		return 0, fmt.Errorf("revoke vesting: custody balance: %w", err)
	}
	if held < unvested {
		return 0, fmt.Errorf("revoke vesting: custody holds %d, unvested %d: %w",
			held, unvested, errcode.ErrInsufficientTokens)
	}

	c := e.begin(ctx, "revoke_vesting")
	prevSupply := m.TokenTotalSupply
	m.TokenTotalSupply = supply
	v.Revoked = true
	if err := c.commit(commit, Changes{Market: m, Vesting: v, TokenAmount: unvested}); err != nil {
		m.TokenTotalSupply = prevSupply
		v.Revoked = false
		return 0, fmt.Errorf("revoke vesting: %w", err)
	}
	c.burnAfterCommit(v.Token, vestingTokens, unvested)

	e.logger.Info("Vesting revoked",
		zap.String("token", v.Token.String()),
		zap.Uint64("burned", unvested),
		zap.Uint64("claimed", v.ClaimedAmount))

	return unvested, nil
}
