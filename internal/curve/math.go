// internal/curve/math.go
package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

const (
	SolDecimals   = 9
	TokenDecimals = 6

	LamportsPerSol uint64 = 1_000_000_000
	TokenUnit      uint64 = 1_000_000

	// BpsDenominator is 100% expressed in basis points.
	BpsDenominator = 10_000
)

func u(v uint64) *uint256.Int {
	return uint256.NewInt(v)
}

func narrow(op string, v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, fmt.Errorf("%s: narrowing %s: %w", op, v.Dec(), errcode.ErrMathOverflow)
	}
	return v.Uint64(), nil
}

func overflow(op, step string) error {
	return fmt.Errorf("%s: %s: %w", op, step, errcode.ErrMathOverflow)
}

// BuyTokens returns the tokens paid out for solIn under the constant product
// vSol*vToken. Rounds down.
func BuyTokens(vSol, vToken, solIn uint64) (uint64, error) {
	if solIn == 0 {
		return 0, nil
	}
	return swapOut("buy tokens", vSol, vToken, solIn)
}

// SellSol returns the SOL paid out for tokenIn. Rounds down.
func SellSol(vSol, vToken, tokenIn uint64) (uint64, error) {
	if tokenIn == 0 {
		return 0, nil
	}
	return swapOut("sell sol", vToken, vSol, tokenIn)
}

// swapOut moves amountIn into reserveIn and returns what leaves reserveOut.
func swapOut(op string, reserveIn, reserveOut, amountIn uint64) (uint64, error) {
	k, of := new(uint256.Int).MulOverflow(u(reserveIn), u(reserveOut))
	if of {
		return 0, overflow(op, "invariant")
	}
	newIn, of := new(uint256.Int).AddOverflow(u(reserveIn), u(amountIn))
	if of {
		return 0, overflow(op, "reserve in")
	}
	if newIn.IsZero() {
		return 0, overflow(op, "zero divisor")
	}
	newOut := new(uint256.Int).Div(k, newIn)
	out, of := new(uint256.Int).SubOverflow(u(reserveOut), newOut)
	if of {
		return 0, overflow(op, "reserve out")
	}
	return narrow(op, out)
}

// Fee returns ceil(amount*bps/10000), or 0 when either input is zero.
func Fee(amount uint64, bps uint16) (uint64, error) {
	if amount == 0 || bps == 0 {
		return 0, nil
	}
	num, of := new(uint256.Int).MulOverflow(u(amount), u(uint64(bps)))
	if of {
		return 0, overflow("fee", "product")
	}
	num, of = num.AddOverflow(num, u(BpsDenominator-1))
	if of {
		return 0, overflow("fee", "rounding")
	}
	return narrow("fee", num.Div(num, u(BpsDenominator)))
}

// TokensForSolValue prices solValue in tokens at the current virtual reserves.
// Rounds up.
func TokensForSolValue(vSol, vToken, solValue uint64) (uint64, error) {
	if solValue == 0 {
		return 0, nil
	}
	if vSol == 0 {
		return 0, overflow("tokens for sol value", "zero sol reserves")
	}
	num, of := new(uint256.Int).MulOverflow(u(solValue), u(vToken))
	if of {
		return 0, overflow("tokens for sol value", "product")
	}
	num, of = num.AddOverflow(num, u(vSol-1))
	if of {
		return 0, overflow("tokens for sol value", "rounding")
	}
	return narrow("tokens for sol value", num.Div(num, u(vSol)))
}

// MulDiv returns floor(a*b/c) computed without intermediate overflow.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, overflow("mul div", "zero divisor")
	}
	p, of := new(uint256.Int).MulOverflow(u(a), u(b))
	if of {
		return 0, overflow("mul div", "product")
	}
	return narrow("mul div", p.Div(p, u(c)))
}
