package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/covenant-ai/be-contracts/internal/domain"
)

// EventPublisher publishes contract domain events to NATS for consumption by
// the notification and analytics services.
//
// Subject convention: contracts.events.<event_type>
// Event types: contract:created, contract:sent, contract:signed,
//              contract:completed, contract:expired, ...
//
// Publish errors are logged but never propagated, so a broker outage never
// interrupts lifecycle operations.
type EventPublisher struct {
	conn *nats.Conn
	log  zerolog.Logger
}

// NewEventPublisher connects to NATS at the given URL.
func NewEventPublisher(url string, log zerolog.Logger) (*EventPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("be-contracts"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &EventPublisher{
		conn: conn,
		log:  log.With().Str("component", "event_publisher").Logger(),
	}, nil
}

// Close drains the connection.
func (p *EventPublisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

// Deliver implements events.Sink by publishing the event to NATS.
// Subject: contracts.events.<event_type> with ':' replaced by '.'.
func (p *EventPublisher) Deliver(_ context.Context, event domain.Event) error {
	if p.conn == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", string(event.Type)).Msg("failed to marshal event")
		return nil
	}

	subject := "contracts.events." + strings.ReplaceAll(string(event.Type), ":", ".")
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("contract_id", event.ContractID).
			Msg("failed to publish NATS event (non-fatal)")
		return nil
	}

	p.log.Debug().
		Str("subject", subject).
		Str("contract_id", event.ContractID).
		Msg("event published")
	return nil
}
