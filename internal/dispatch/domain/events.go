package domain

import "time"

// StatusChangedSubject is the NATS subject delivery state transitions are
// published on.
const StatusChangedSubject = "sms.status.changed"

// StatusChangedEvent is emitted whenever a delivery report (pushed or polled)
// moves a message to a new delivery status.
type StatusChangedEvent struct {
	MessageID      string    `json:"message_id"`
	ExternalID     string    `json:"external_id,omitempty"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Source         string    `json:"source"` // "callback" or "reconciliation"
	OccurredAt     time.Time `json:"occurred_at"`
}
