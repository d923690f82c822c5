package domain

import (
	"encoding/json"
	"time"
)

// Event is one telemetry record: an RPC outcome or a mirrored audit event.
type Event struct {
	UserID    string          `json:"user_id,omitempty"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
