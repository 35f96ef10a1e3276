// internal/launchpad/cooldown.go
package launchpad

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// CreatorProfile gates how often a creator may launch.
type CreatorProfile struct {
	Creator             solana.PublicKey `json:"creator"`
	LastLaunchTimestamp int64            `json:"last_launch_timestamp"`
	LaunchesCount       uint32           `json:"launches_count"`
}

func NewCreatorProfile(creator solana.PublicKey) *CreatorProfile {
	return &CreatorProfile{Creator: creator}
}

// Admit fails with CooldownNotElapsed while the creator's last launch is
// more recent than the configured cooldown.
func Admit(cfg *GlobalConfig, p *CreatorProfile, now int64) error {
	if p.LaunchesCount == 0 {
		return nil
	}
	elapsed := now - p.LastLaunchTimestamp
	if now < p.LastLaunchTimestamp || elapsed < cfg.LaunchCooldownSeconds {
		return fmt.Errorf("last launch at %d, next allowed at %d: %w",
			p.LastLaunchTimestamp, NextLaunchAt(cfg, p), errcode.ErrCooldownNotElapsed)
	}
	return nil
}

// RecordLaunch returns the profile after a launch at now.
func RecordLaunch(p CreatorProfile, now int64) (CreatorProfile, error) {
	if p.LaunchesCount == math.MaxUint32 {
		return p, fmt.Errorf("launch count: %w", errcode.ErrMathOverflow)
	}
	p.LastLaunchTimestamp = now
	p.LaunchesCount++
	return p, nil
}

// NextLaunchAt is the earliest timestamp Admit accepts. Zero means no restriction.
func NextLaunchAt(cfg *GlobalConfig, p *CreatorProfile) int64 {
	if p.LaunchesCount == 0 {
		return 0
	}
	if p.LastLaunchTimestamp > math.MaxInt64-cfg.LaunchCooldownSeconds {
		return math.MaxInt64
	}
	return p.LastLaunchTimestamp + cfg.LaunchCooldownSeconds
}
