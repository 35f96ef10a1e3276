// internal/events/handler.go
package events

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Handler processes exchange events. Queued deliveries to one handler never
// overlap and arrive in sequence order.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc is an adapter to allow the use of ordinary functions as event handlers.
type HandlerFunc func(ctx context.Context, event Event) error

// Handle calls f(ctx, event).
func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Typed adapts a handler of one concrete event, such as *TradeEvent. Events
// of any other concrete type are skipped.
func Typed[E Event](fn func(context.Context, E) error) Handler {
	return HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(E)
		if !ok {
			return nil
		}
		return fn(ctx, e)
	})
}

// Subscription ends delivery to its handler. Events already queued are
// still delivered.
type Subscription interface {
	Unsubscribe()
}

// filter selects events by type and, when token is set, by token mint.
type filter struct {
	typ   EventType
	token solana.PublicKey
}

func (f filter) matches(e Event) bool {
	if f.typ != AllEvents && f.typ != e.Type() {
		return false
	}
	return f.token.IsZero() || f.token.Equals(e.Token())
}

// subscription owns a queue drained by one goroutine.
type subscription struct {
	id      string
	filter  filter
	handler Handler
	queue   chan Event
	bus     *Bus
	logger  *zap.Logger
}

func (s *subscription) run() {
	for event := range s.queue {
		if err := s.handler.Handle(context.Background(), event); err != nil {
			s.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.Uint64("seq", event.Seq()),
				zap.String("subscription_id", s.id),
				zap.Error(err))
		}
	}
}

func (s *subscription) Unsubscribe() {
	s.bus.unsubscribe(s.id)
}
