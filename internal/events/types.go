// internal/events/types.go
package events

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	TokenLaunched  EventType = "token.launched"
	TradeBuy       EventType = "trade.buy"
	TradeSell      EventType = "trade.sell"
	AccessBurned   EventType = "access.burned"
	FeesWithdrawn  EventType = "fees.withdrawn"
	VestingClaimed EventType = "vesting.claimed"
	VestingRevoked EventType = "vesting.revoked"

	// AllEvents subscribes a handler to every event type.
	AllEvents EventType = "*"
)

// Event is the base interface for all events.
type Event interface {
	ID() string
	Type() EventType
	Timestamp() time.Time
	Token() solana.PublicKey
	// Seq is the bus sequence number, zero until published.
	Seq() uint64
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventID   string           `json:"id"`
	EventType EventType        `json:"type"`
	EventTime time.Time        `json:"time"`
	TokenMint solana.PublicKey `json:"token"`
	Sequence  uint64           `json:"seq"`
}

// NewBase stamps a fresh event id. at is the exchange clock reading.
func NewBase(t EventType, token solana.PublicKey, at int64) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: t,
		EventTime: time.Unix(at, 0).UTC(),
		TokenMint: token,
	}
}

func (e BaseEvent) ID() string { return e.EventID }

// Type returns the event type.
func (e BaseEvent) Type() EventType { return e.EventType }

// Timestamp returns when the event occurred on the exchange clock.
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

func (e BaseEvent) Token() solana.PublicKey { return e.TokenMint }

func (e BaseEvent) Seq() uint64 { return e.Sequence }

func (e *BaseEvent) stamp(seq uint64) { e.Sequence = seq }

// TokenLaunchedEvent is emitted when a market and vesting schedule are created.
type TokenLaunchedEvent struct {
	BaseEvent
	Creator         solana.PublicKey `json:"creator"`
	CurveTokens     uint64           `json:"curve_tokens"`
	VestingTokens   uint64           `json:"vesting_tokens"`
	BurnPrice       uint64           `json:"burn_price"`
	CreatorLaunches uint32           `json:"creator_launches"`
}

// TradeEvent is emitted for buys and sells.
type TradeEvent struct {
	BaseEvent
	Trader      solana.PublicKey `json:"trader"`
	SolAmount   uint64           `json:"sol_amount"`
	TokenAmount uint64           `json:"token_amount"`
	Fee         uint64           `json:"fee"`
	PlatformFee uint64           `json:"platform_fee"`
	CreatorFee  uint64           `json:"creator_fee"`
	// SpotPrice is lamports per whole token after the trade, for display.
	SpotPrice float64 `json:"spot_price"`
}

// AccessBurnedEvent is emitted when a viewer burns tokens for access.
type AccessBurnedEvent struct {
	BaseEvent
	Viewer       solana.PublicKey `json:"viewer"`
	TokensBurned uint64           `json:"tokens_burned"`
	SolValue     uint64           `json:"sol_value"`
	Fee          uint64           `json:"fee"`
}

// FeeRecipient names whose accrual a withdrawal drained.
type FeeRecipient string

const (
	RecipientPlatform FeeRecipient = "platform"
	RecipientCreator  FeeRecipient = "creator"
)

// FeesWithdrawnEvent is emitted when accrued fees are paid out.
type FeesWithdrawnEvent struct {
	BaseEvent
	Recipient FeeRecipient     `json:"recipient"`
	To        solana.PublicKey `json:"to"`
	Amount    uint64           `json:"amount"`
}

// VestingClaimedEvent is emitted when a creator claims unlocked tokens.
type VestingClaimedEvent struct {
	BaseEvent
	Creator      solana.PublicKey `json:"creator"`
	Amount       uint64           `json:"amount"`
	ClaimedTotal uint64           `json:"claimed_total"`
}

// VestingRevokedEvent is emitted when a schedule is revoked.
type VestingRevokedEvent struct {
	BaseEvent
	Burned uint64 `json:"burned"`
}
