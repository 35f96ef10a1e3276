// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed  = errors.New("event bus is shutting down")
	ErrBufferFull = errors.New("subscriber queue full")
)

// Bus fans exchange events out to subscribers. Publish stamps each event
// with the next sequence number and queues it to every matching subscription
// under one lock, so all subscribers see events in publish order. The
// service publishes after commit while holding the token's lock, which makes
// that order the commit order for each token.
type Bus struct {
	mu        sync.Mutex
	subs      []*subscription
	seq       uint64
	dropped   uint64
	closed    bool
	queueSize int
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewBus creates a bus whose subscriptions each queue up to queueSize events.
func NewBus(logger *zap.Logger, queueSize int) *Bus {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Bus{
		queueSize: queueSize,
		logger:    logger.Named("event_bus"),
	}
}

// Subscribe registers handler for one event type, or for every type with AllEvents.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	return b.subscribe(filter{typ: eventType}, handler)
}

// SubscribeFunc is a convenience method for subscribing with a function.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// SubscribeToken registers handler for every event of one token.
func (b *Bus) SubscribeToken(token solana.PublicKey, handler Handler) Subscription {
	return b.subscribe(filter{typ: AllEvents, token: token}, handler)
}

func (b *Bus) subscribe(f filter, handler Handler) Subscription {
	s := &subscription{
		id:      uuid.New().String(),
		filter:  f,
		handler: handler,
		queue:   make(chan Event, b.queueSize),
		bus:     b,
		logger:  b.logger,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.queue)
		return s
	}
	b.subs = append(b.subs, s)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		s.run()
	}()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(f.typ)),
		zap.String("token", tokenLabel(f.token)),
		zap.String("subscription_id", s.id))
	return s
}

func (b *Bus) unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.queue)
			b.logger.Debug("Handler unsubscribed", zap.String("subscription_id", id))
			return
		}
	}
}

// stamp assigns the next sequence number. Callers hold b.mu.
func (b *Bus) stamp(event Event) {
	if s, ok := event.(interface{ stamp(uint64) }); ok {
		b.seq++
		s.stamp(b.seq)
	}
}

// Publish queues event to every matching subscription without blocking. A
// subscriber whose queue is full misses the event and ErrBufferFull is
// returned; the others still receive it.
func (b *Bus) Publish(event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	b.stamp(event)

	var full int
	for _, s := range b.subs {
		if !s.filter.matches(event) {
			continue
		}
		select {
		case s.queue <- event:
		default:
			full++
		}
	}
	if full > 0 {
		b.dropped += uint64(full)
		b.logger.Warn("Subscriber queue full, dropping event",
			zap.String("event_type", string(event.Type())),
			zap.Uint64("seq", event.Seq()),
			zap.Int("subscribers", full))
		return fmt.Errorf("%d subscribers: %w", full, ErrBufferFull)
	}
	return nil
}

// PublishSync runs every matching handler on the caller's goroutine, in
// subscription order, bypassing the queues.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.stamp(event)
	var matched []*subscription
	for _, s := range b.subs {
		if s.filter.matches(event) {
			matched = append(matched, s)
		}
	}
	b.mu.Unlock()

	var errs []error
	for _, s := range matched {
		if err := s.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.Uint64("seq", event.Seq()),
				zap.String("subscription_id", s.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d handlers failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Shutdown stops publishing and waits until every queued event is handled
// or ctx expires.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, s := range b.subs {
			close(s.queue)
		}
		b.subs = nil
		b.logger.Info("Shutting down event bus", zap.Uint64("published", b.seq))
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}

// Stats describes the bus backlog and subscriptions.
type Stats struct {
	QueueSize       int
	PendingEvents   int
	Published       uint64
	Dropped         uint64
	HandlersPerType map[EventType]int
}

func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := Stats{
		QueueSize:       b.queueSize,
		Published:       b.seq,
		Dropped:         b.dropped,
		HandlersPerType: make(map[EventType]int),
	}
	for _, s := range b.subs {
		stats.PendingEvents += len(s.queue)
		stats.HandlersPerType[s.filter.typ]++
	}
	return stats
}

func tokenLabel(token solana.PublicKey) string {
	if token.IsZero() {
		return "*"
	}
	return token.String()
}
