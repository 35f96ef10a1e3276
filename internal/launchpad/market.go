// internal/launchpad/market.go
package launchpad

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// Market is the bonding-curve record of one token.
type Market struct {
	Token                solana.PublicKey `json:"token"`
	Creator              solana.PublicKey `json:"creator"`
	VirtualTokenReserves uint64           `json:"virtual_token_reserves"`
	VirtualSolReserves   uint64           `json:"virtual_sol_reserves"`
	RealTokenReserves    uint64           `json:"real_token_reserves"`
	RealSolReserves      uint64           `json:"real_sol_reserves"`
	TokenTotalSupply     uint64           `json:"token_total_supply"`
	BurnPrice            uint64           `json:"burn_price"`
	PlatformFeesAccrued  uint64           `json:"platform_fees_accrued"`
	CreatorFeesAccrued   uint64           `json:"creator_fees_accrued"`
}

// BurnEnabled reports whether BurnForAccess is accepted.
func (m *Market) BurnEnabled() bool { return m.BurnPrice > 0 }

// SpotPrice is the current price of one base unit in lamports.
func (m *Market) SpotPrice() curve.Price {
	return curve.SpotPrice(m.VirtualSolReserves, m.VirtualTokenReserves)
}

// Exchange applies launch, trade, burn, fee and vesting transitions to
// records supplied by the caller. It holds no records itself; the caller
// serialises access per token.
type Exchange struct {
	ledger TokenLedger
	vault  Vault
	addrs  *AddressBook
	logger *zap.Logger
}

func NewExchange(ledger TokenLedger, vault Vault, addrs *AddressBook, logger *zap.Logger) *Exchange {
	if addrs == nil {
		addrs = NewAddressBook(DefaultProgramID)
	}
	return &Exchange{
		ledger: ledger,
		vault:  vault,
		addrs:  addrs,
		logger: logger.Named("exchange"),
	}
}

func (e *Exchange) Addresses() *AddressBook { return e.addrs }

// LaunchRequest describes a new token market.
type LaunchRequest struct {
	Creator solana.PublicKey
	Token   solana.PublicKey
	// BurnPrice is the SOL value burned per access; 0 disables burning.
	BurnPrice uint64
	// TotalSupply defaults to DefaultTotalSupply.
	TotalSupply uint64
}

// Launch creates the market and vesting schedule for a new token. The creator
// pays the market custody floor, the full supply is minted to curve custody,
// the creator allocation moves to vesting custody and minting is disabled,
// all before commit. A failed commit returns the floor and burns the supply;
// the emptied mint keeps no authority.
func (e *Exchange) Launch(ctx context.Context, cfg *GlobalConfig, profile *CreatorProfile,
	req LaunchRequest, now int64, commit Commit) (*Market, *VestingSchedule, error) {
	if !profile.Creator.IsZero() && !profile.Creator.Equals(req.Creator) {
		return nil, nil, fmt.Errorf("launch: profile belongs to %s: %w", profile.Creator, errcode.ErrUnauthorized)
	}
	if err := Admit(cfg, profile, now); err != nil {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}

	supply := req.TotalSupply
	if supply == 0 {
		supply = DefaultTotalSupply
	}
	vestingAmount, err := curve.MulDiv(supply, uint64(cfg.CreatorAllocationBps), curve.BpsDenominator)
	if err != nil {
		return nil, nil, fmt.Errorf("launch: vesting allocation: %w", err)
	}
	curveAmount, err := sub("launch: curve allocation", supply, vestingAmount)
	if err != nil {
		return nil, nil, err
	}

	nextProfile, err := RecordLaunch(*profile, now)
	if err != nil {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}
	nextProfile.Creator = req.Creator

	marketCustody := e.addrs.Market(req.Token)
	curveTokens := e.addrs.CurveTokens(req.Token)
	floor, err := e.vault.MinimumBalance(ctx, marketCustody)
	if err != nil {
		return nil, nil, fmt.Errorf("launch: custody minimum balance: %w", err)
	}
	funds, err := e.vault.Balance(ctx, req.Creator)
	if err != nil {
		return nil, nil, fmt.Errorf("launch: creator balance: %w", err)
	}
	if funds < floor {
		return nil, nil, fmt.Errorf("launch: creator has %d, custody floor is %d: %w",
			funds, floor, errcode.ErrInsufficientFunds)
	}

	c := e.begin(ctx, "launch")
	if err := c.transferSol(req.Creator, marketCustody, floor); err != nil {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}
	if err := c.mint(req.Token, curveTokens, supply); err != nil {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}
	if err := c.transferTokens(req.Token, curveTokens, e.addrs.VestingTokens(req.Token), vestingAmount); err != nil {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}
	if err := c.revokeMint(req.Token); err != nil {
		return nil, nil, fmt.Errorf("launch: %w", err)
	}

	m := &Market{
		Token:                req.Token,
		Creator:              req.Creator,
		VirtualTokenReserves: cfg.InitialVirtualTokenReserves,
		VirtualSolReserves:   cfg.InitialVirtualSolReserves,
		RealTokenReserves:    curveAmount,
		TokenTotalSupply:     supply,
		BurnPrice:            req.BurnPrice,
	}
	v := NewVestingSchedule(req.Creator, req.Token, vestingAmount, now)
	prevProfile := *profile
	*profile = nextProfile
	if err := c.commit(commit, Changes{Market: m, Vesting: v, Profile: profile, TokenAmount: supply}); err != nil {
		*profile = prevProfile
		return nil, nil, fmt.Errorf("launch: %w", err)
	}

	e.logger.Info("Token launched",
		zap.String("token", req.Token.String()),
		zap.String("creator", req.Creator.String()),
		zap.Uint64("curve_tokens", curveAmount),
		zap.Uint64("vesting_tokens", vestingAmount),
		zap.Uint32("launches", profile.LaunchesCount))

	return m, v, nil
}

// Buy swaps solAmount lamports from buyer for tokens. The fee portion stays
// in market custody as accrued liability outside the virtual reserves.
func (e *Exchange) Buy(ctx context.Context, cfg *GlobalConfig, m *Market, buyer solana.PublicKey,
	solAmount, minTokensOut uint64, commit Commit) (*curve.BuyQuote, error) {
	if solAmount == 0 {
		return nil, fmt.Errorf("buy: %w", errcode.ErrZeroAmount)
	}
	q, err := curve.QuoteBuy(m.VirtualSolReserves, m.VirtualTokenReserves, solAmount, cfg.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if q.TokensOut < minTokensOut {
		return nil, fmt.Errorf("buy: %d tokens out, minimum %d: %w", q.TokensOut, minTokensOut, errcode.ErrSlippageExceeded)
	}
	if q.TokensOut > m.RealTokenReserves {
		return nil, fmt.Errorf("buy: %d tokens out, %d in reserve: %w",
			q.TokensOut, m.RealTokenReserves, errcode.ErrInsufficientReserves)
	}

	next := *m
	var a arith
	a.add("buy: virtual sol", &next.VirtualSolReserves, q.SolIntoCurve)
	a.sub("buy: virtual token", &next.VirtualTokenReserves, q.TokensOut)
	a.add("buy: real sol", &next.RealSolReserves, q.SolIntoCurve)
	a.sub("buy: real token", &next.RealTokenReserves, q.TokensOut)
	a.add("buy: platform fees", &next.PlatformFeesAccrued, q.Fee.Platform)
	a.add("buy: creator fees", &next.CreatorFeesAccrued, q.Fee.Creator)
	if a.err != nil {
		return nil, a.err
	}

	funds, err := e.vault.Balance(ctx, buyer)
	if err != nil {
		return nil, fmt.Errorf("buy: buyer balance: %w", err)
	}
	if funds < solAmount {
		return nil, fmt.Errorf("buy: buyer has %d, needs %d: %w", funds, solAmount, errcode.ErrInsufficientFunds)
	}

	c := e.begin(ctx, "buy")
	if err := c.transferSol(buyer, e.addrs.Market(m.Token), solAmount); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	if err := c.transferTokens(m.Token, e.addrs.CurveTokens(m.Token), buyer, q.TokensOut); err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}
	prev := *m
	*m = next
	if err := c.commit(commit, Changes{Market: m, SolAmount: solAmount, TokenAmount: q.TokensOut, Fee: q.Fee.Total}); err != nil {
		*m = prev
		return nil, fmt.Errorf("buy: %w", err)
	}

	e.logger.Debug("Buy executed",
		zap.String("token", m.Token.String()),
		zap.String("buyer", buyer.String()),
		zap.Uint64("sol_amount", solAmount),
		zap.Uint64("tokens_out", q.TokensOut),
		zap.Uint64("fee", q.Fee.Total))

	return &q, nil
}

// Sell swaps tokenAmount from seller for SOL net of the fee.
func (e *Exchange) Sell(ctx context.Context, cfg *GlobalConfig, m *Market, seller solana.PublicKey,
	tokenAmount, minSolOut uint64, commit Commit) (*curve.SellQuote, error) {
	if tokenAmount == 0 {
		return nil, fmt.Errorf("sell: %w", errcode.ErrZeroAmount)
	}
	q, err := curve.QuoteSell(m.VirtualSolReserves, m.VirtualTokenReserves, tokenAmount, cfg.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	if q.NetSol < minSolOut {
		return nil, fmt.Errorf("sell: %d lamports out, minimum %d: %w", q.NetSol, minSolOut, errcode.ErrSlippageExceeded)
	}
	if q.GrossSol > m.RealSolReserves {
		return nil, fmt.Errorf("sell: %d lamports gross, %d in reserve: %w",
			q.GrossSol, m.RealSolReserves, errcode.ErrInsufficientReserves)
	}

	next := *m
	var a arith
	a.sub("sell: virtual sol", &next.VirtualSolReserves, q.GrossSol)
	a.add("sell: virtual token", &next.VirtualTokenReserves, tokenAmount)
	a.sub("sell: real sol", &next.RealSolReserves, q.GrossSol)
	a.add("sell: real token", &next.RealTokenReserves, tokenAmount)
	a.add("sell: platform fees", &next.PlatformFeesAccrued, q.Fee.Platform)
	a.add("sell: creator fees", &next.CreatorFeesAccrued, q.Fee.Creator)
	if a.err != nil {
		return nil, a.err
	}

	held, err := e.ledger.BalanceOf(ctx, m.Token, seller)
	if err != nil {
		return nil, fmt.Errorf("sell: seller balance: %w", err)
	}
	if held < tokenAmount {
		return nil, fmt.Errorf("sell: seller holds %d, selling %d: %w", held, tokenAmount, errcode.ErrInsufficientTokens)
	}
	marketCustody := e.addrs.Market(m.Token)
	if err := e.checkFloor(ctx, marketCustody, q.NetSol); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}

	c := e.begin(ctx, "sell")
	if err := c.transferTokens(m.Token, seller, e.addrs.CurveTokens(m.Token), tokenAmount); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	if err := c.payout(marketCustody, seller, q.NetSol); err != nil {
		return nil, fmt.Errorf("sell: %w", err)
	}
	prev := *m
	*m = next
	if err := c.commit(commit, Changes{Market: m, SolAmount: q.NetSol, TokenAmount: tokenAmount, Fee: q.Fee.Total}); err != nil {
		*m = prev
		return nil, fmt.Errorf("sell: %w", err)
	}

	e.logger.Debug("Sell executed",
		zap.String("token", m.Token.String()),
		zap.String("seller", seller.String()),
		zap.Uint64("token_amount", tokenAmount),
		zap.Uint64("net_sol", q.NetSol),
		zap.Uint64("fee", q.Fee.Total))

	return &q, nil
}

// BurnResult describes a burn-for-access.
type BurnResult struct {
	TokensBurned uint64         `json:"tokens_burned"`
	SolValue     uint64         `json:"sol_value"`
	Fee          curve.FeeSplit `json:"fee"`
}

// BurnForAccess destroys the burn price worth of the viewer's tokens. The
// fee on the burn price is funded from the market's SOL reserves. The tokens
// wait in the burn escrow until the commit succeeds.
func (e *Exchange) BurnForAccess(ctx context.Context, cfg *GlobalConfig, m *Market,
	viewer solana.PublicKey, commit Commit) (*BurnResult, error) {
	if !m.BurnEnabled() {
		return nil, fmt.Errorf("burn for access: %w", errcode.ErrBurnDisabled)
	}

	tokens, err := curve.TokensForSolValue(m.VirtualSolReserves, m.VirtualTokenReserves, m.BurnPrice)
	if err != nil {
		return nil, fmt.Errorf("burn for access: %w", err)
	}
	held, err := e.ledger.BalanceOf(ctx, m.Token, viewer)
	if err != nil {
		return nil, fmt.Errorf("burn for access: viewer balance: %w", err)
	}
	if held < tokens {
		return nil, fmt.Errorf("burn for access: viewer holds %d, needs %d: %w",
			held, tokens, errcode.ErrInsufficientTokens)
	}

	total, err := curve.Fee(m.BurnPrice, cfg.FeeBps)
	if err != nil {
		return nil, fmt.Errorf("burn for access: %w", err)
	}
	fee := curve.SplitFee(total)

	next := *m
	var a arith
	a.sub("burn for access: real token", &next.RealTokenReserves, tokens)
	a.sub("burn for access: real sol", &next.RealSolReserves, fee.Total)
	a.sub("burn for access: virtual sol", &next.VirtualSolReserves, fee.Total)
	a.sub("burn for access: supply", &next.TokenTotalSupply, tokens)
	a.add("burn for access: platform fees", &next.PlatformFeesAccrued, fee.Platform)
	a.add("burn for access: creator fees", &next.CreatorFeesAccrued, fee.Creator)
	if a.err != nil {
		return nil, a.err
	}

	escrow := e.addrs.BurnEscrow(m.Token)
	c := e.begin(ctx, "burn_for_access")
	if err := c.transferTokens(m.Token, viewer, escrow, tokens); err != nil {
		return nil, fmt.Errorf("burn for access: %w", err)
	}
	prev := *m
	*m = next
	if err := c.commit(commit, Changes{Market: m, SolAmount: m.BurnPrice, TokenAmount: tokens, Fee: fee.Total}); err != nil {
		*m = prev
		return nil, fmt.Errorf("burn for access: %w", err)
	}
	c.burnAfterCommit(m.Token, escrow, tokens)

	e.logger.Debug("Access burn executed",
		zap.String("token", m.Token.String()),
		zap.String("viewer", viewer.String()),
		zap.Uint64("tokens_burned", tokens),
		zap.Uint64("fee", fee.Total))

	return &BurnResult{TokensBurned: tokens, SolValue: m.BurnPrice, Fee: fee}, nil
}

// WithdrawPlatformFees pays the platform's accrued fees to the config authority.
func (e *Exchange) WithdrawPlatformFees(ctx context.Context, cfg *GlobalConfig, m *Market,
	caller solana.PublicKey, commit Commit) (uint64, error) {
	if !caller.Equals(cfg.Authority) {
		return 0, fmt.Errorf("withdraw platform fees: %w", errcode.ErrUnauthorized)
	}
	return e.withdraw(ctx, "withdraw platform fees", m, caller, commit, func(m *Market) *uint64 {
		return &m.PlatformFeesAccrued
	})
}

// WithdrawCreatorFees pays the creator's accrued fees to the market creator.
func (e *Exchange) WithdrawCreatorFees(ctx context.Context, m *Market, caller solana.PublicKey, commit Commit) (uint64, error) {
	if !caller.Equals(m.Creator) {
		return 0, fmt.Errorf("withdraw creator fees: %w", errcode.ErrUnauthorized)
	}
	return e.withdraw(ctx, "withdraw creator fees", m, caller, commit, func(m *Market) *uint64 {
		return &m.CreatorFeesAccrued
	})
}

func (e *Exchange) withdraw(ctx context.Context, op string, m *Market, to solana.PublicKey,
	commit Commit, accrued func(*Market) *uint64) (uint64, error) {
	amount := *accrued(m)
	if amount == 0 {
		return 0, nil
	}

	marketCustody := e.addrs.Market(m.Token)
	if err := e.checkFloor(ctx, marketCustody, amount); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	c := e.begin(ctx, op)
	if err := c.payout(marketCustody, to, amount); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	*accrued(m) = 0
	if err := c.commit(commit, Changes{Market: m, SolAmount: amount}); err != nil {
		*accrued(m) = amount
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	e.logger.Info("Fees withdrawn",
		zap.String("operation", op),
		zap.String("token", m.Token.String()),
		zap.String("recipient", to.String()),
		zap.Uint64("amount", amount))

	return amount, nil
}

// Reconcile compares a market record with custody. The ledger supply must
// equal the recorded supply and market custody must cover its floor, real
// SOL reserves and both fee accruals.
func (e *Exchange) Reconcile(ctx context.Context, m *Market) error {
	supply, err := e.ledger.Supply(ctx, m.Token)
	if err != nil {
		return fmt.Errorf("reconcile: supply: %w", err)
	}
	if supply != m.TokenTotalSupply {
		return fmt.Errorf("reconcile: ledger supply %d, recorded %d: %w",
			supply, m.TokenTotalSupply, errcode.ErrTokenSupplyMismatch)
	}

	custody := e.addrs.Market(m.Token)
	balance, err := e.vault.Balance(ctx, custody)
	if err != nil {
		return fmt.Errorf("reconcile: custody balance: %w", err)
	}
	floor, err := e.vault.MinimumBalance(ctx, custody)
	if err != nil {
		return fmt.Errorf("reconcile: custody minimum balance: %w", err)
	}
	var owed uint64 = floor
	var a arith
	a.add("reconcile: owed", &owed, m.RealSolReserves)
	a.add("reconcile: owed", &owed, m.PlatformFeesAccrued)
	a.add("reconcile: owed", &owed, m.CreatorFeesAccrued)
	if a.err != nil {
		return a.err
	}
	if balance < owed {
		return fmt.Errorf("reconcile: custody holds %d, owes %d: %w", balance, owed, errcode.ErrInsufficientReserves)
	}
	return nil
}
