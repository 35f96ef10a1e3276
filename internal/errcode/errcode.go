// internal/errcode/errcode.go
package errcode

import (
	"errors"
	"fmt"
)

// Kind groups error codes by the class of failure.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindArithmetic    Kind = "arithmetic"
	KindEconomic      Kind = "economic"
	KindConfiguration Kind = "configuration"
	KindVesting       Kind = "vesting"
	KindLifecycle     Kind = "lifecycle"
	KindStorage       Kind = "storage"
	KindUnknown       Kind = "unknown"
)

// Code is the numeric error code exposed to clients. Numbering starts at 6000.
type Code uint32

const (
	CodeUnauthorized Code = 6000 + iota
	CodeMathOverflow
	CodeSlippageExceeded
	CodeInsufficientFunds
	CodeInsufficientTokens
	CodeInsufficientReserves
	CodeCooldownNotElapsed
	CodeVestingCliffNotReached
	CodeVestingFullyClaimed
	CodeVestingRevoked
	CodeBurnDisabled
	CodeInvalidFeeConfiguration
	CodeInvalidReserveConfiguration
	CodeTokenSupplyMismatch
	CodeZeroAmount
)

// Error is a classified exchange failure. Sentinels below are compared with errors.Is.
type Error struct {
	Kind    Kind
	Code    Code
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// Is matches on the code so that copies of a sentinel compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newError(kind Kind, code Code, name, msg string) *Error {
	return &Error{Kind: kind, Code: code, Name: name, Message: msg}
}

var (
	ErrUnauthorized = newError(KindAuthorization, CodeUnauthorized, "Unauthorized",
		"signer is not the expected authority")
	ErrMathOverflow = newError(KindArithmetic, CodeMathOverflow, "MathOverflow",
		"math overflow occurred")
	ErrSlippageExceeded = newError(KindEconomic, CodeSlippageExceeded, "SlippageExceeded",
		"slippage tolerance exceeded")
	ErrInsufficientFunds = newError(KindEconomic, CodeInsufficientFunds, "InsufficientFunds",
		"insufficient SOL funds")
	ErrInsufficientTokens = newError(KindEconomic, CodeInsufficientTokens, "InsufficientTokens",
		"insufficient token balance")
	ErrInsufficientReserves = newError(KindEconomic, CodeInsufficientReserves, "InsufficientReserves",
		"insufficient reserves for this operation")
	ErrCooldownNotElapsed = newError(KindLifecycle, CodeCooldownNotElapsed, "CooldownNotElapsed",
		"creator must wait for cooldown period to elapse before launching another token")
	ErrVestingCliffNotReached = newError(KindVesting, CodeVestingCliffNotReached, "VestingCliffNotReached",
		"vesting cliff period has not been reached")
	ErrVestingFullyClaimed = newError(KindVesting, CodeVestingFullyClaimed, "VestingFullyClaimed",
		"vesting allocation has been fully claimed")
	ErrVestingRevoked = newError(KindVesting, CodeVestingRevoked, "VestingRevoked",
		"vesting has been revoked")
	ErrBurnDisabled = newError(KindLifecycle, CodeBurnDisabled, "BurnDisabled",
		"token burning is disabled for this bonding curve")
	ErrInvalidFeeConfiguration = newError(KindConfiguration, CodeInvalidFeeConfiguration, "InvalidFeeConfiguration",
		"fee_bps must equal platform_fee_bps + creator_fee_bps and not exceed 1000")
	ErrInvalidReserveConfiguration = newError(KindConfiguration, CodeInvalidReserveConfiguration, "InvalidReserveConfiguration",
		"reserves must be greater than zero")
	ErrTokenSupplyMismatch = newError(KindConfiguration, CodeTokenSupplyMismatch, "TokenSupplyMismatch",
		"token supply does not match expected value")
	ErrZeroAmount = newError(KindEconomic, CodeZeroAmount, "ZeroAmount",
		"trade amount must be greater than zero")
)

var all = []*Error{
	ErrUnauthorized,
	ErrMathOverflow,
	ErrSlippageExceeded,
	ErrInsufficientFunds,
	ErrInsufficientTokens,
	ErrInsufficientReserves,
	ErrCooldownNotElapsed,
	ErrVestingCliffNotReached,
	ErrVestingFullyClaimed,
	ErrVestingRevoked,
	ErrBurnDisabled,
	ErrInvalidFeeConfiguration,
	ErrInvalidReserveConfiguration,
	ErrTokenSupplyMismatch,
	ErrZeroAmount,
}

// All returns every known error code in numeric order.
func All() []*Error {
	out := make([]*Error, len(all))
	copy(out, all)
	return out
}

// FromCode looks up the sentinel for a numeric code.
func FromCode(code Code) (*Error, bool) {
	idx := int(code) - int(CodeUnauthorized)
	if idx < 0 || idx >= len(all) {
		return nil, false
	}
	return all[idx], true
}

// As extracts the classified error from a wrapped chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Wrap annotates err with the operation name, keeping it matchable with errors.Is.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}
