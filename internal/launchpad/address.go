// internal/launchpad/address.go
package launchpad

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Seed names the purpose of a derived address.
type Seed string

const (
	SeedGlobalConfig   Seed = "global_config"
	SeedBondingCurve   Seed = "bonding_curve"
	SeedCurveTokens    Seed = "curve_tokens"
	SeedVesting        Seed = "vesting"
	SeedVestingTokens  Seed = "vesting_tokens"
	SeedCreatorProfile Seed = "creator_profile"
	SeedBurnEscrow     Seed = "burn_escrow"
)

// DefaultProgramID anchors address derivation when none is configured.
var DefaultProgramID = solana.MustPublicKeyFromBase58("FTAssMPiQ8EQUeJA4Rnu6c71maCrUCdnvGetWnVdTXTG")

// AddressBook derives stable per-token and per-creator addresses.
// Results are memoised; derivation is deterministic so the cache never
// needs invalidation.
type AddressBook struct {
	programID solana.PublicKey
	cache     sync.Map // string -> solana.PublicKey
}

func NewAddressBook(programID solana.PublicKey) *AddressBook {
	if programID.IsZero() {
		programID = DefaultProgramID
	}
	return &AddressBook{programID: programID}
}

func (b *AddressBook) ProgramID() solana.PublicKey { return b.programID }

// Address returns the derived address for seed and key. The global config
// is derived from its seed alone.
func (b *AddressBook) Address(seed Seed, key solana.PublicKey) solana.PublicKey {
	cacheKey := string(seed) + ":" + key.String()
	if v, ok := b.cache.Load(cacheKey); ok {
		return v.(solana.PublicKey)
	}

	seeds := [][]byte{[]byte(seed)}
	if seed != SeedGlobalConfig {
		seeds = append(seeds, key.Bytes())
	}
	addr, _, err := solana.FindProgramAddress(seeds, b.programID)
	if err != nil {
		// FindProgramAddress only fails when all 256 bumps land on the curve.
		panic(fmt.Sprintf("derive %s address for %s: %v", seed, key, err))
	}

	actual, _ := b.cache.LoadOrStore(cacheKey, addr)
	return actual.(solana.PublicKey)
}

func (b *AddressBook) GlobalConfig() solana.PublicKey {
	return b.Address(SeedGlobalConfig, solana.PublicKey{})
}

func (b *AddressBook) Market(token solana.PublicKey) solana.PublicKey {
	return b.Address(SeedBondingCurve, token)
}

func (b *AddressBook) CurveTokens(token solana.PublicKey) solana.PublicKey {
	return b.Address(SeedCurveTokens, token)
}

func (b *AddressBook) Vesting(token solana.PublicKey) solana.PublicKey {
	return b.Address(SeedVesting, token)
}

func (b *AddressBook) VestingTokens(token solana.PublicKey) solana.PublicKey {
	return b.Address(SeedVestingTokens, token)
}

func (b *AddressBook) CreatorProfile(creator solana.PublicKey) solana.PublicKey {
	return b.Address(SeedCreatorProfile, creator)
}

// BurnEscrow holds tokens between an access burn's commit and the burn itself.
func (b *AddressBook) BurnEscrow(token solana.PublicKey) solana.PublicKey {
	return b.Address(SeedBurnEscrow, token)
}
