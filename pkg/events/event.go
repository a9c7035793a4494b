package events

import "time"

// Event is anything the agent announces on the outbound bus.
type Event interface {
	EventType() string
	// Key identifies the occurrence so brokers can drop redeliveries.
	Key() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}
