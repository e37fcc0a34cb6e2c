package audit

import (
	"encoding/json"
	"time"
)

// Entry is one immutable audit record as read back from storage.
type Entry struct {
	ID         int64           `json:"id"`
	ActorID    int64           `json:"actor_id"`
	ActorName  string          `json:"actor_name,omitempty"`
	Action     string          `json:"action"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Filter narrows audit listings.
type Filter struct {
	Entity  string
	Action  string
	ActorID int64
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}
