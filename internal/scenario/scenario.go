// =============================================
// File: internal/scenario/scenario.go
// =============================================
// Package scenario replays scripted exchange operations against a service
// under a simulated clock.
package scenario

import (
	"fmt"
	"math"

	"github.com/rovshanmuradov/launchpad/internal/curve"
)

// Operation names a scripted step.
type Operation string

const (
	OperationLaunch               Operation = "launch"
	OperationBuy                  Operation = "buy"
	OperationSell                 Operation = "sell"
	OperationBurnForAccess        Operation = "burn_for_access"
	OperationWithdrawPlatformFees Operation = "withdraw_platform_fees"
	OperationWithdrawCreatorFees  Operation = "withdraw_creator_fees"
	OperationClaimVested          Operation = "claim_vested"
	OperationRevokeVesting        Operation = "revoke_vesting"
)

// AuthorityWallet is the reserved wallet name bound to the exchange authority.
const AuthorityWallet = "authority"

// Wallet is a named identity funded before the first step.
type Wallet struct {
	Name string
	Sol  float64
}

// Token is a named mint launched by a scenario.
type Token struct {
	Name         string
	BurnPriceSol float64
	// Supply is in whole tokens; 0 uses the exchange default.
	Supply uint64
}

// Step is one operation at an offset from the scenario start.
type Step struct {
	ID        int
	Name      string
	Operation Operation
	Wallet    string
	Token     string
	// At is seconds since the scenario start.
	At int64

	AmountSol       float64 // buy: SOL to spend
	AmountTokens    float64 // sell: whole tokens to sell
	PercentToSell   float64 // sell: share of holdings when AmountTokens is 0
	SlippagePercent float64

	// ExpectError is an error code name such as "CooldownNotElapsed";
	// the step passes only if it fails with that code.
	ExpectError string
}

// Scenario is a validated script.
type Scenario struct {
	Name    string
	Wallets []Wallet
	Tokens  []Token
	Steps   []*Step
}

// Validate checks fields every operation needs.
func (s *Step) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("step name cannot be empty")
	}
	if s.Wallet == "" || s.Token == "" {
		return fmt.Errorf("step %q: wallet and token are required", s.Name)
	}
	if s.At < 0 {
		return fmt.Errorf("step %q: negative offset %d", s.Name, s.At)
	}
	switch s.Operation {
	case OperationBuy:
		if s.AmountSol <= 0 {
			return fmt.Errorf("step %q: buy amount must be positive", s.Name)
		}
	case OperationSell:
		if s.AmountTokens <= 0 && s.PercentToSell <= 0 {
			return fmt.Errorf("step %q: sell needs amount_tokens or percent_to_sell", s.Name)
		}
	}
	return nil
}

// Lamports converts SOL to lamports, rounding to the nearest unit.
func Lamports(sol float64) uint64 {
	return toBaseUnits(sol, curve.SolDecimals)
}

// BaseUnits converts whole tokens to base units.
func BaseUnits(tokens float64) uint64 {
	return toBaseUnits(tokens, curve.TokenDecimals)
}

func toBaseUnits(v float64, decimals int) uint64 {
	if v <= 0 {
		return 0
	}
	scaled := math.Round(v * math.Pow10(decimals))
	if scaled >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(scaled)
}
