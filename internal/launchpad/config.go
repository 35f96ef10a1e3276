// internal/launchpad/config.go
package launchpad

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// Fixed schedule parameters applied by Initialize.
const (
	DefaultVestingCliffSeconds         int64  = 2_592_000 // 30 days
	DefaultVestingDurationSeconds      int64  = 5_184_000 // 60 days
	DefaultVestingClaimIntervalSeconds int64  = 604_800   // 7 days
	DefaultLaunchCooldownSeconds       int64  = 7_776_000 // 90 days
	DefaultCreatorAllocationBps        uint16 = 1000      // 10%

	// MaxFeeBps caps the total trading fee at 10%.
	MaxFeeBps uint16 = 1000

	// DefaultTotalSupply is 1B tokens with 6 decimals.
	DefaultTotalSupply uint64 = 1_000_000_000_000_000
)

// GlobalConfig holds the exchange-wide parameters. It is created once by
// Initialize and passed explicitly to every operation that reads it.
type GlobalConfig struct {
	Authority                   solana.PublicKey `json:"authority"`
	FeeBps                      uint16           `json:"fee_bps"`
	PlatformFeeBps              uint16           `json:"platform_fee_bps"`
	CreatorFeeBps               uint16           `json:"creator_fee_bps"`
	InitialVirtualTokenReserves uint64           `json:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64           `json:"initial_virtual_sol_reserves"`
	VestingCliffSeconds         int64            `json:"vesting_cliff_seconds"`
	VestingDurationSeconds      int64            `json:"vesting_duration_seconds"`
	VestingClaimIntervalSeconds int64            `json:"vesting_claim_interval_seconds"`
	LaunchCooldownSeconds       int64            `json:"launch_cooldown_seconds"`
	CreatorAllocationBps        uint16           `json:"creator_allocation_bps"`
}

// InitParams are the caller-supplied inputs to Initialize.
type InitParams struct {
	Authority                   solana.PublicKey
	FeeBps                      uint16
	PlatformFeeBps              uint16
	CreatorFeeBps               uint16
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
}

// Initialize validates params and builds the global configuration.
func Initialize(p InitParams) (*GlobalConfig, error) {
	if uint32(p.PlatformFeeBps)+uint32(p.CreatorFeeBps) != uint32(p.FeeBps) {
		return nil, fmt.Errorf("initialize: fee %d != platform %d + creator %d: %w",
			p.FeeBps, p.PlatformFeeBps, p.CreatorFeeBps, errcode.ErrInvalidFeeConfiguration)
	}
	if p.FeeBps > MaxFeeBps {
		return nil, fmt.Errorf("initialize: fee %d above %d: %w",
			p.FeeBps, MaxFeeBps, errcode.ErrInvalidFeeConfiguration)
	}
	if p.InitialVirtualTokenReserves == 0 || p.InitialVirtualSolReserves == 0 {
		return nil, fmt.Errorf("initialize: %w", errcode.ErrInvalidReserveConfiguration)
	}

	return &GlobalConfig{
		Authority:                   p.Authority,
		FeeBps:                      p.FeeBps,
		PlatformFeeBps:              p.PlatformFeeBps,
		CreatorFeeBps:               p.CreatorFeeBps,
		InitialVirtualTokenReserves: p.InitialVirtualTokenReserves,
		InitialVirtualSolReserves:   p.InitialVirtualSolReserves,
		VestingCliffSeconds:         DefaultVestingCliffSeconds,
		VestingDurationSeconds:      DefaultVestingDurationSeconds,
		VestingClaimIntervalSeconds: DefaultVestingClaimIntervalSeconds,
		LaunchCooldownSeconds:       DefaultLaunchCooldownSeconds,
		CreatorAllocationBps:        DefaultCreatorAllocationBps,
	}, nil
}
