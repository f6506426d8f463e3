// Package events delivers domain events to interested collaborators. The
// lifecycle engine collects events in an Outbox per operation and flushes the
// batch here after the aggregate write commits; sink failures are logged and
// never affect committed contract state.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

// Sink receives dispatched events. Implementations must not block for long;
// the dispatcher calls sinks synchronously in registration order.
type Sink interface {
	Deliver(ctx context.Context, event domain.Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, event domain.Event) error

func (f SinkFunc) Deliver(ctx context.Context, event domain.Event) error { return f(ctx, event) }

// Dispatcher fans events out to registered sinks.
type Dispatcher struct {
	mu    sync.RWMutex
	sinks []Sink
	log   zerolog.Logger
}

// NewDispatcher creates a dispatcher with no sinks.
func NewDispatcher(log zerolog.Logger) *Dispatcher {
	return &Dispatcher{log: log.With().Str("component", "event_dispatcher").Logger()}
}

// Register adds a sink. Sinks are normally all registered at startup.
func (d *Dispatcher) Register(sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, sink)
}

// Dispatch delivers each event to every sink. A failing sink is logged and
// skipped; remaining sinks still receive the event.
func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.Event) {
	d.mu.RLock()
	sinks := d.sinks
	d.mu.RUnlock()

	for _, event := range events {
		for _, sink := range sinks {
			if err := sink.Deliver(ctx, event); err != nil {
				d.log.Warn().Err(err).
					Str("event_type", string(event.Type)).
					Str("contract_id", event.ContractID).
					Msg("event sink delivery failed (non-fatal)")
			}
		}
	}
}

// Outbox accumulates the events of one mutating operation.
type Outbox struct {
	events []domain.Event
}

// Add appends an event, stamping OccurredAt if unset.
func (o *Outbox) Add(eventType domain.EventType, contractID string, data map[string]any) {
	o.events = append(o.events, domain.Event{
		Type:       eventType,
		ContractID: contractID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
}

// Events returns the accumulated batch.
func (o *Outbox) Events() []domain.Event { return o.events }
