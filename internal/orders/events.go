package orders

import (
	"encoding/json"
	"time"
)

// Event names shared by the websocket channel and the Kafka stream. Payload is
// always the full hydrated order; viewers filter client-side.
const (
	EventOrderNew    = "order:new"
	EventOrderUpdate = "order:update"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}
