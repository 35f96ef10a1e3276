package curve

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/errcode"
)

const (
	testVirtualSol   uint64 = 30_000_000_000
	testVirtualToken uint64 = 1_073_000_000_000_000
)

func TestBuyTokens(t *testing.T) {
	tests := []struct {
		name  string
		solIn uint64
		want  uint64
	}{
		{"zero input", 0, 0},
		{"one sol", LamportsPerSol, 34_612_903_225_807},
		{"ten sol", 10 * LamportsPerSol, 268_250_000_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuyTokens(testVirtualSol, testVirtualToken, tt.solIn)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Less(t, got, testVirtualToken)
		})
	}
}

func TestSellSol(t *testing.T) {
	got, err := SellSol(testVirtualSol, testVirtualToken, 0)
	require.NoError(t, err)
	assert.Zero(t, got)

	got, err = SellSol(testVirtualSol, testVirtualToken, 34_000_000*TokenUnit)
	require.NoError(t, err)
	assert.Equal(t, uint64(921_409_215), got)
	t.Logf("34M tokens sell for %.6f SOL", float64(got)/float64(LamportsPerSol))
}

func TestBuySellRoundTrip(t *testing.T) {
	amounts := []uint64{1, 1_000, LamportsPerSol, 7 * LamportsPerSol, 85 * LamportsPerSol}

	for _, solIn := range amounts {
		tokens, err := BuyTokens(testVirtualSol, testVirtualToken, solIn)
		require.NoError(t, err)

		solOut, err := SellSol(testVirtualSol+solIn, testVirtualToken-tokens, tokens)
		require.NoError(t, err)

		assert.InDelta(t, float64(solIn), float64(solOut), 1, "sol in %d", solIn)
	}
}

func TestInvariantLossBoundedByQuantization(t *testing.T) {
	product := func(a, b uint64) *big.Int {
		return new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	}
	vSol, vToken := testVirtualSol, testVirtualToken

	solIn := 3*LamportsPerSol + 17
	tokens, err := BuyTokens(vSol, vToken, solIn)
	require.NoError(t, err)
	before := product(vSol, vToken)
	vSol, vToken = vSol+solIn, vToken-tokens
	loss := new(big.Int).Sub(before, product(vSol, vToken))
	assert.True(t, loss.Cmp(new(big.Int).SetUint64(vSol)) < 0, "buy loss %s", loss)

	tokenIn := tokens / 3
	sol, err := SellSol(vSol, vToken, tokenIn)
	require.NoError(t, err)
	before = product(vSol, vToken)
	vSol, vToken = vSol-sol, vToken+tokenIn
	loss = new(big.Int).Sub(before, product(vSol, vToken))
	assert.True(t, loss.Cmp(new(big.Int).SetUint64(vToken)) < 0, "sell loss %s", loss)
}

func TestFee(t *testing.T) {
	tests := []struct {
		name   string
		amount uint64
		bps    uint16
		want   uint64
	}{
		{"five percent of one sol", LamportsPerSol, 500, 50_000_000},
		{"rounds up", 1, 500, 1},
		{"two and a half percent", LamportsPerSol, 250, 25_000_000},
		{"zero amount", 0, 500, 0},
		{"zero bps", LamportsPerSol, 0, 0},
		{"both zero", 0, 0, 0},
		{"full fee on max amount", math.MaxUint64, 10_000, math.MaxUint64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Fee(tt.amount, tt.bps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeeMonotonic(t *testing.T) {
	var prev uint64
	for amount := uint64(0); amount < 50_000; amount += 37 {
		got, err := Fee(amount, 333)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}

	prev = 0
	for bps := uint16(0); bps <= 1000; bps += 7 {
		got, err := Fee(123_456_789, bps)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got, prev)
		prev = got
	}
}

func TestFeeOverflow(t *testing.T) {
	_, err := Fee(math.MaxUint64, math.MaxUint16)
	assert.True(t, errors.Is(err, errcode.ErrMathOverflow))
}

func TestTokensForSolValue(t *testing.T) {
	got, err := TokensForSolValue(3, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), got)

	got, err = TokensForSolValue(testVirtualSol, testVirtualToken, LamportsPerSol)
	require.NoError(t, err)
	assert.Equal(t, uint64(35_766_666_666_667), got)

	got, err = TokensForSolValue(testVirtualSol, testVirtualToken, 0)
	require.NoError(t, err)
	assert.Zero(t, got)

	_, err = TokensForSolValue(0, testVirtualToken, 1)
	assert.True(t, errors.Is(err, errcode.ErrMathOverflow))

	_, err = TokensForSolValue(1, math.MaxUint64, 2)
	assert.True(t, errors.Is(err, errcode.ErrMathOverflow))
}

func TestExtremeReservesDoNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		_, _ = BuyTokens(math.MaxUint64, math.MaxUint64, math.MaxUint64)
		_, _ = SellSol(math.MaxUint64, math.MaxUint64, math.MaxUint64)
		_, _ = BuyTokens(0, 0, 1)
	})

	got, err := BuyTokens(math.MaxUint64, math.MaxUint64, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64/2+1), got)
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(100_000_000, 604_800, 5_184_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(11_666_666), got)

	_, err = MulDiv(1, 1, 0)
	assert.True(t, errors.Is(err, errcode.ErrMathOverflow))

	_, err = MulDiv(math.MaxUint64, 2, 1)
	assert.True(t, errors.Is(err, errcode.ErrMathOverflow))
}
