// internal/curve/quote.go
package curve

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

// FeeSplit is a total fee and its platform/creator shares.
type FeeSplit struct {
	Total    uint64 `json:"total"`
	Platform uint64 `json:"platform"`
	Creator  uint64 `json:"creator"`
}

// SplitFee halves a fee; the creator takes the odd unit.
func SplitFee(total uint64) FeeSplit {
	platform := total / 2
	return FeeSplit{Total: total, Platform: platform, Creator: total - platform}
}

// BuyQuote describes a buy of SolAmount lamports. The fee is taken before the curve.
type BuyQuote struct {
	SolAmount    uint64   `json:"sol_amount"`
	SolIntoCurve uint64   `json:"sol_into_curve"`
	TokensOut    uint64   `json:"tokens_out"`
	Fee          FeeSplit `json:"fee"`
}

// SellQuote describes a sell of TokenAmount base units. The fee is taken after the curve.
type SellQuote struct {
	TokenAmount uint64   `json:"token_amount"`
	GrossSol    uint64   `json:"gross_sol"`
	NetSol      uint64   `json:"net_sol"`
	Fee         FeeSplit `json:"fee"`
}

// QuoteBuy computes the outcome of a buy against the given virtual reserves.
func QuoteBuy(vSol, vToken, solAmount uint64, feeBps uint16) (BuyQuote, error) {
	q := BuyQuote{SolAmount: solAmount}
	if solAmount == 0 {
		return q, nil
	}

	total, err := Fee(solAmount, feeBps)
	if err != nil {
		return BuyQuote{}, err
	}
	if total > solAmount {
		return BuyQuote{}, fmt.Errorf("quote buy: fee exceeds amount: %w", errcode.ErrMathOverflow)
	}
	q.Fee = SplitFee(total)
	q.SolIntoCurve = solAmount - total

	q.TokensOut, err = BuyTokens(vSol, vToken, q.SolIntoCurve)
	if err != nil {
		return BuyQuote{}, err
	}
	return q, nil
}

// QuoteSell computes the outcome of a sell against the given virtual reserves.
func QuoteSell(vSol, vToken, tokenAmount uint64, feeBps uint16) (SellQuote, error) {
	q := SellQuote{TokenAmount: tokenAmount}
	if tokenAmount == 0 {
		return q, nil
	}

	gross, err := SellSol(vSol, vToken, tokenAmount)
	if err != nil {
		return SellQuote{}, err
	}
	total, err := Fee(gross, feeBps)
	if err != nil {
		return SellQuote{}, err
	}
	if total > gross {
		return SellQuote{}, fmt.Errorf("quote sell: fee exceeds proceeds: %w", errcode.ErrMathOverflow)
	}
	q.GrossSol = gross
	q.Fee = SplitFee(total)
	q.NetSol = gross - total
	return q, nil
}

// Price is a spot price in lamports per token base unit, kept as a ratio.
type Price struct {
	Num   uint64 `json:"num"`
	Denom uint64 `json:"denom"`
}

// SpotPrice returns vSol/vToken.
func SpotPrice(vSol, vToken uint64) Price {
	return Price{Num: vSol, Denom: vToken}
}

// SolPerToken converts the ratio to SOL per whole token. Display only.
func (p Price) SolPerToken() float64 {
	if p.Denom == 0 {
		return 0
	}
	sol := float64(p.Num) / math.Pow10(SolDecimals)
	tokens := float64(p.Denom) / math.Pow10(TokenDecimals)
	return sol / tokens
}

// Less reports whether p is strictly cheaper than o.
func (p Price) Less(o Price) bool {
	a := new(uint256.Int).Mul(u(p.Num), u(o.Denom))
	b := new(uint256.Int).Mul(u(o.Num), u(p.Denom))
	return a.Lt(b)
}

// MarketCap values supply at the spot price, in lamports.
func MarketCap(vSol, vToken, supply uint64) (uint64, error) {
	return MulDiv(supply, vSol, vToken)
}
