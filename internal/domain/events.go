package domain

import "time"

// EventType labels a domain event emitted by the lifecycle engine.
type EventType string

const (
	EventContractCreated    EventType = "contract:created"
	EventContractUpdated    EventType = "contract:updated"
	EventContractSent       EventType = "contract:sent"
	EventContractViewed     EventType = "contract:viewed"
	EventContractSigned     EventType = "contract:signed"
	EventContractCompleted  EventType = "contract:completed"
	EventContractExpired    EventType = "contract:expired"
	EventContractRenewed    EventType = "contract:renewed"
	EventContractTerminated EventType = "contract:terminated"
	EventContractCancelled  EventType = "contract:cancelled"
	EventContractDeleted    EventType = "contract:deleted"
	EventContractReminder   EventType = "contract:reminder"
)

// Event is one domain event. Mutating operations collect events in an outbox
// and hand the batch to the dispatcher after the aggregate write commits, so
// listener failures can never affect contract state.
type Event struct {
	Type       EventType      `json:"type"`
	ContractID string         `json:"contractId"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}
