package model

import "time"

type EventType string

const (
	EventLeadSubmitted  EventType = "lead.submitted"
	EventLeadFollowedUp EventType = "lead.followed_up"
	EventLeadOptedOut   EventType = "lead.opted_out"
)

func (t EventType) String() string { return string(t) }

// LeadEvent is the payload published to Kafka and stored in ClickHouse lead_events.
type LeadEvent struct {
	ID           string    `json:"id"            db:"id"` // ULID
	Type         EventType `json:"type"          db:"type"`
	Email        string    `json:"email"         db:"email"`
	Service      string    `json:"service"       db:"service"`
	BusinessType string    `json:"business_type" db:"business_type"`
	Status       string    `json:"status"        db:"status"`
	OccurredAt   time.Time `json:"occurred_at"   db:"occurred_at"`
}
