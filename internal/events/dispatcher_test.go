package events

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

func TestDispatcherFansOut(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	var first, second []domain.Event
	d.Register(SinkFunc(func(_ context.Context, e domain.Event) error {
		first = append(first, e)
		return nil
	}))
	d.Register(SinkFunc(func(_ context.Context, e domain.Event) error {
		second = append(second, e)
		return nil
	}))

	var out Outbox
	out.Add(domain.EventContractCreated, "c1", nil)
	out.Add(domain.EventContractSent, "c1", map[string]any{"k": "v"})
	d.Dispatch(context.Background(), out.Events())

	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("expected both sinks to receive 2 events, got %d and %d", len(first), len(second))
	}
	if first[0].Type != domain.EventContractCreated || first[1].Type != domain.EventContractSent {
		t.Fatalf("events delivered out of order: %+v", first)
	}
}

func TestDispatcherSurvivesFailingSink(t *testing.T) {
	d := NewDispatcher(zerolog.Nop())

	d.Register(SinkFunc(func(context.Context, domain.Event) error {
		return fmt.Errorf("broker down")
	}))
	var delivered int
	d.Register(SinkFunc(func(context.Context, domain.Event) error {
		delivered++
		return nil
	}))

	var out Outbox
	out.Add(domain.EventContractSigned, "c1", nil)
	d.Dispatch(context.Background(), out.Events())

	if delivered != 1 {
		t.Fatalf("later sink starved by a failing one: delivered=%d", delivered)
	}
}

func TestOutboxStampsOccurredAt(t *testing.T) {
	var out Outbox
	out.Add(domain.EventContractCreated, "c1", nil)

	events := out.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].OccurredAt.IsZero() {
		t.Fatalf("occurredAt not stamped")
	}
	if events[0].ContractID != "c1" {
		t.Fatalf("contract id not carried: %+v", events[0])
	}
}
