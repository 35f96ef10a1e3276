package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodesAreSequential(t *testing.T) {
	codes := All()
	require.Len(t, codes, 14)
	for i, e := range codes {
		assert.Equal(t, Code(6000+i), e.Code, e.Name)

		found, ok := FromCode(e.Code)
		require.True(t, ok)
		assert.Same(t, e, found)
	}

	_, ok := FromCode(5999)
	assert.False(t, ok)
	_, ok = FromCode(CodeZeroAmount + 1)
	assert.False(t, ok)
}

func TestWrappedErrorsMatch(t *testing.T) {
	err := Wrap("buy", fmt.Errorf("quote: %w", ErrSlippageExceeded))

	assert.True(t, errors.Is(err, ErrSlippageExceeded))
	assert.False(t, errors.Is(err, ErrMathOverflow))
	assert.Equal(t, KindEconomic, KindOf(err))
	assert.Contains(t, err.Error(), "buy: quote: SlippageExceeded (6002)")

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeSlippageExceeded, e.Code)
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Nil(t, Wrap("noop", nil))
}

func TestCopiesCompareByCode(t *testing.T) {
	copied := *ErrVestingRevoked
	assert.True(t, errors.Is(&copied, ErrVestingRevoked))
}
