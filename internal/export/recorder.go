package export

import (
	"context"
	"strconv"

	"github.com/rovshanmuradov/launchpad/internal/events"
)

// RowWriter appends one CSV row.
type RowWriter interface {
	WriteRecord(record []string) error
}

// EventHeaders is the CSV header of the live event log.
func EventHeaders() []string {
	return []string{"event_id", "time", "type", "token", "actor", "sol_amount", "token_amount", "fee", "seq"}
}

// EventRecorder appends every bus event it receives as a CSV row. Rows land
// in bus sequence order when it is subscribed for queued delivery.
type EventRecorder struct {
	w RowWriter
}

func NewEventRecorder(w RowWriter) *EventRecorder {
	return &EventRecorder{w: w}
}

// Handle implements events.Handler.
func (r *EventRecorder) Handle(_ context.Context, e events.Event) error {
	return r.w.WriteRecord(EventRow(e))
}

// EventRow flattens an event into EventHeaders columns.
func EventRow(e events.Event) []string {
	var actor string
	var sol, tokens, fee uint64

	switch ev := e.(type) {
	case *events.TokenLaunchedEvent:
		actor, tokens = ev.Creator.String(), ev.CurveTokens+ev.VestingTokens
	case *events.TradeEvent:
		actor, sol, tokens, fee = ev.Trader.String(), ev.SolAmount, ev.TokenAmount, ev.Fee
	case *events.AccessBurnedEvent:
		actor, sol, tokens, fee = ev.Viewer.String(), ev.SolValue, ev.TokensBurned, ev.Fee
	case *events.FeesWithdrawnEvent:
		actor, sol = ev.To.String(), ev.Amount
	case *events.VestingClaimedEvent:
		actor, tokens = ev.Creator.String(), ev.Amount
	case *events.VestingRevokedEvent:
		tokens = ev.Burned
	}

	return []string{
		e.ID(),
		strconv.FormatInt(e.Timestamp().Unix(), 10),
		string(e.Type()),
		e.Token().String(),
		actor,
		strconv.FormatUint(sol, 10),
		strconv.FormatUint(tokens, 10),
		strconv.FormatUint(fee, 10),
		strconv.FormatUint(e.Seq(), 10),
	}
}
